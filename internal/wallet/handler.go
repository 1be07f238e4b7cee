package wallet

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/okapi-pay/okapi_pay/internal/idempotency"
	"github.com/okapi-pay/okapi_pay/internal/ledger"
	"github.com/okapi-pay/okapi_pay/internal/reports"
)

const idempotencyKeyHeader = "Idempotency-Key"

const dateLayout = "2006-01-02"

// Handler exposes the wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	WalletName string `json:"wallet_name"`
}

// The driver sends amounts as decimal strings, hence the string fields.
type depositRequest struct {
	WalletName string `json:"wallet_name"`
	Amount     string `json:"amount"`
}

type transferRequest struct {
	WalletNameFrom string `json:"wallet_name_from"`
	WalletNameTo   string `json:"wallet_name_to"`
	Amount         string `json:"amount"`
}

// Create registers a wallet. 200 on fresh creation, 201 when the same
// (token, name) pair replays, 409 when the name is taken under another token.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "cannot parse request")
	}
	if req.WalletName == "" {
		return badRequest(c, "required `wallet_name` not found")
	}

	resp, replayed, err := h.service.CreateWallet(c.UserContext(), token(c), req.WalletName)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(successStatus(replayed)).JSON(resp)
}

// Get returns the `{name, balance}` snapshot.
func (h *Handler) Get(c *fiber.Ctx) error {
	resp, err := h.service.Wallet(c.UserContext(), c.Params("wallet_name"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Deposit credits a wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "cannot parse request")
	}
	if req.WalletName == "" {
		return badRequest(c, "required `wallet_name` not found")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, replayed, err := h.service.Deposit(c.UserContext(), token(c), req.WalletName, amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(successStatus(replayed)).JSON(resp)
}

// Transfer moves funds between wallets. A self-transfer succeeds without
// changing the balance and still records both entries.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "cannot parse request")
	}
	if req.WalletNameFrom == "" {
		return badRequest(c, "required `wallet_name_from` not found")
	}
	if req.WalletNameTo == "" {
		return badRequest(c, "required `wallet_name_to` not found")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, replayed, err := h.service.Transfer(c.UserContext(), token(c), req.WalletNameFrom, req.WalletNameTo, amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(successStatus(replayed)).JSON(resp)
}

// History returns the wallet's entries, optionally filtered by direction,
// date window, limit and offset, rendered as JSON or CSV.
func (h *Handler) History(c *fiber.Ctx) error {
	f, err := parseHistoryFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	entries, err := h.service.History(c.UserContext(), c.Params("wallet_name"), f)
	if err != nil {
		return respondError(c, err)
	}

	var writer reports.ReportWriter
	switch c.Query("format") {
	case "", "json":
		writer = &reports.JSON{}
	case "csv":
		writer = &reports.CSV{WithHeader: true}
		c.Set(fiber.HeaderContentType, "text/csv")
	default:
		return badRequest(c, "unexpected `format`")
	}

	var buf bytes.Buffer
	if err := writer.WriteInto(&buf, entries); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).Send(buf.Bytes())
}

// token returns the caller's idempotency token. A missing header is allowed:
// the empty string becomes the token for that exact call.
func token(c *fiber.Ctx) string {
	return c.Get(idempotencyKeyHeader)
}

func successStatus(replayed bool) int {
	if replayed {
		return http.StatusCreated
	}
	return http.StatusOK
}

func parseAmount(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("required `amount` not found")
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("malformed `amount`")
	}
	return amount, nil
}

func parseHistoryFilter(c *fiber.Ctx) (ledger.Filter, error) {
	var f ledger.Filter

	direction := c.Query("direction")
	if !ledger.ValidDirection(direction) {
		return f, errors.New("unexpected `direction`")
	}
	f.Direction = ledger.EntryType(direction)

	var err error
	if raw := c.Query("start_date"); raw != "" {
		if f.StartDate, err = time.Parse(dateLayout, raw); err != nil {
			return f, errors.New("cannot parse `start_date`; `" + dateLayout + "` expected")
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if f.EndDate, err = time.Parse(dateLayout, raw); err != nil {
			return f, errors.New("cannot parse `end_date`; `" + dateLayout + "` expected")
		}
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.StartDate.After(f.EndDate) {
		return f, errors.New("time bounds error; start date greater than end date")
	}

	if raw := c.Query("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil || f.Limit < 0 {
			return f, errors.New("malformed `limit`")
		}
	}
	if raw := c.Query("offset_by_id"); raw != "" {
		if f.OffsetByID, err = strconv.ParseInt(raw, 10, 64); err != nil || f.OffsetByID < 0 {
			return f, errors.New("malformed `offset_by_id`")
		}
	}

	return f, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return writeError(c, http.StatusBadRequest, message)
}

// respondError turns business errors into their contractual status codes.
// Anything unclassified is a storage-level failure and surfaces as a 500.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrWalletAlreadyExists):
		return writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		return writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return writeError(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, idempotency.ErrConflict):
		return writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, idempotency.ErrAborted):
		return writeError(c, http.StatusConflict, "original request did not complete; retry")
	case errors.Is(err, ErrDuplicateTimeout):
		return writeError(c, http.StatusRequestTimeout, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
}

func writeError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"ok": 0, "message": message})
}
