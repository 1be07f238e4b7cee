package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/okapi-pay/okapi_pay/internal/wallet"
)

// RegisterWalletRoutes wires the wallet endpoints consumed by the driver.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallet", h.Create)
	r.Get("/wallet/:wallet_name", h.Get)
	r.Post("/deposit", h.Deposit)
	r.Post("/transfer", h.Transfer)
	r.Get("/history/:wallet_name", h.History)
}
