package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/okapi-pay/okapi_pay/internal/config"
	"github.com/okapi-pay/okapi_pay/internal/events"
	"github.com/okapi-pay/okapi_pay/internal/idempotency"
	"github.com/okapi-pay/okapi_pay/internal/ledger"
	"github.com/okapi-pay/okapi_pay/internal/middleware"
	"github.com/okapi-pay/okapi_pay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development; the in-memory backends take over.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Events events.Publisher
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.HTTPMetrics())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var idemStore idempotency.Store
	if d.Cache != nil {
		idemStore = idempotency.NewRedis(d.Cache, d.Cfg.IdempotencyTTL)
	} else {
		idemStore = idempotency.NewInMemory()
	}

	walletSvc := wallet.NewService(ledgerBackend, idemStore, d.Cfg.IdempotencyWait, d.Events, d.Logger)
	walletHandler := wallet.NewHandler(walletSvc)

	RegisterWalletRoutes(app, walletHandler)

	return nil
}
