package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/okapi-pay/okapi_pay/internal/events"
	"github.com/okapi-pay/okapi_pay/internal/idempotency"
	"github.com/okapi-pay/okapi_pay/internal/ledger"
	"github.com/okapi-pay/okapi_pay/internal/metrics"
)

// ErrDuplicateTimeout occurs when a request waited the full grace period for
// an in-flight duplicate and the original still had no recorded outcome.
// Proceeding instead would break at-most-once execution.
var ErrDuplicateTimeout = errors.New("timed out waiting for in-flight duplicate")

// Business error codes stored in the idempotency record so a replayed failure
// reproduces the original classification.
const (
	codeNotFound      = "wallet_not_found"
	codeAlreadyExists = "wallet_already_exists"
	codeInvalidAmount = "invalid_amount"
	codeInsufficient  = "insufficient_funds"
)

func codeFor(err error) string {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		return codeNotFound
	case errors.Is(err, ledger.ErrWalletAlreadyExists):
		return codeAlreadyExists
	case errors.Is(err, ledger.ErrInvalidAmount):
		return codeInvalidAmount
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return codeInsufficient
	default:
		return ""
	}
}

func errFor(code string) error {
	switch code {
	case codeNotFound:
		return ledger.ErrWalletNotFound
	case codeAlreadyExists:
		return ledger.ErrWalletAlreadyExists
	case codeInvalidAmount:
		return ledger.ErrInvalidAmount
	case codeInsufficient:
		return ledger.ErrInsufficientFunds
	default:
		return fmt.Errorf("unrecognized stored error code %q", code)
	}
}

// Service coordinates every wallet operation: mutations go through the
// idempotency store before touching the ledger, reads go to the ledger
// directly.
type Service struct {
	ledger ledger.Ledger
	idem   idempotency.Store
	wait   time.Duration
	events events.Publisher
	logger *slog.Logger
}

// NewService builds the coordinator. wait bounds how long a duplicate request
// blocks on an in-flight original.
func NewService(l ledger.Ledger, idem idempotency.Store, wait time.Duration, pub events.Publisher, logger *slog.Logger) *Service {
	return &Service{ledger: l, idem: idem, wait: wait, events: pub, logger: logger}
}

// CreateWallet registers a wallet. replayed reports whether the result came
// from the idempotency store rather than a fresh execution.
func (s *Service) CreateWallet(ctx context.Context, token, name string) (WalletResponse, bool, error) {
	var resp WalletResponse
	replayed, err := s.coordinate(ctx, idempotency.KindCreate, token,
		idempotency.CreateFingerprint(name), &resp,
		func(ctx context.Context) (interface{}, error) {
			snap, err := s.ledger.CreateWallet(ctx, name)
			if err != nil {
				return nil, err
			}
			metrics.TransactionsTotal.WithLabelValues("create").Inc()
			return WalletResponse{Name: snap.Name, Balance: snap.Balance}, nil
		})
	return resp, replayed, err
}

// Deposit credits a wallet.
func (s *Service) Deposit(ctx context.Context, token, name string, amount int64) (DepositResponse, bool, error) {
	var resp DepositResponse
	replayed, err := s.coordinate(ctx, idempotency.KindDeposit, token,
		idempotency.DepositFingerprint(name, amount), &resp,
		func(ctx context.Context) (interface{}, error) {
			res, err := s.ledger.Deposit(ctx, name, amount)
			if err != nil {
				return nil, err
			}
			metrics.TransactionsTotal.WithLabelValues("deposit").Inc()
			s.publish(ctx, events.TransactionEvent{
				ID:         uuid.NewString(),
				Type:       "deposit",
				Wallet:     res.Wallet,
				Amount:     amount,
				OccurredAt: time.Now().UTC(),
			})
			return DepositResponse{WalletName: res.Wallet, Balance: res.NewBalance}, nil
		})
	return resp, replayed, err
}

// Transfer moves funds between two wallets.
func (s *Service) Transfer(ctx context.Context, token, from, to string, amount int64) (TransferResponse, bool, error) {
	var resp TransferResponse
	replayed, err := s.coordinate(ctx, idempotency.KindTransfer, token,
		idempotency.TransferFingerprint(from, to, amount), &resp,
		func(ctx context.Context) (interface{}, error) {
			res, err := s.ledger.Transfer(ctx, from, to, amount)
			if err != nil {
				return nil, err
			}
			metrics.TransactionsTotal.WithLabelValues("transfer").Inc()
			s.publish(ctx, events.TransactionEvent{
				ID:          res.TransactionID,
				Type:        "transfer",
				Wallet:      res.From,
				Counterpart: res.To,
				Amount:      res.Amount,
				OccurredAt:  time.Now().UTC(),
			})
			return TransferResponse{
				TransactionID:  res.TransactionID,
				WalletNameFrom: res.From,
				WalletNameTo:   res.To,
				Amount:         res.Amount,
				BalanceFrom:    res.FromBalance,
				BalanceTo:      res.ToBalance,
			}, nil
		})
	return resp, replayed, err
}

// Wallet returns the current snapshot. Reads bypass the idempotency store.
func (s *Service) Wallet(ctx context.Context, name string) (WalletResponse, error) {
	snap, err := s.ledger.Wallet(ctx, name)
	if err != nil {
		return WalletResponse{}, err
	}
	return WalletResponse{Name: snap.Name, Balance: snap.Balance}, nil
}

// History returns the wallet's ledger entries in append order.
func (s *Service) History(ctx context.Context, name string, f ledger.Filter) ([]ledger.Entry, error) {
	return s.ledger.History(ctx, name, f)
}

// coordinate implements the begin -> execute -> complete cycle around a
// mutation. On success the marshaled payload is decoded into out; on a
// replayed failure the stored business error comes back as err.
func (s *Service) coordinate(ctx context.Context, kind idempotency.Kind, token, fingerprint string, out interface{}, mutate func(context.Context) (interface{}, error)) (bool, error) {
	begun, err := s.idem.Begin(ctx, kind, token, fingerprint)
	if err != nil {
		return false, err
	}

	switch begun.Decision {
	case idempotency.Replay:
		metrics.IdempotentReplays.Inc()
		return true, decodeResult(begun.Result, out)

	case idempotency.InProgress:
		waitCtx, cancel := context.WithTimeout(ctx, s.wait)
		defer cancel()
		res, err := s.idem.Await(waitCtx, kind, token)
		if errors.Is(err, context.DeadlineExceeded) {
			return false, ErrDuplicateTimeout
		}
		if err != nil {
			return false, err
		}
		metrics.IdempotentReplays.Inc()
		return true, decodeResult(res, out)
	}

	// Proceed. The mutation must run to completion even if the caller
	// disconnects, so detach from the request's cancellation.
	execCtx := context.WithoutCancel(ctx)

	payload, mErr := mutate(execCtx)
	if mErr != nil {
		code := codeFor(mErr)
		if code == "" {
			// Unclassified failure: nothing was applied that we can vouch for,
			// release the key so a retry may execute afresh.
			if aErr := s.idem.Abort(execCtx, kind, token); aErr != nil {
				s.logger.Error("release idempotency key",
					slog.String("kind", string(kind)), slog.Any("error", aErr))
			}
			return false, mErr
		}
		if cErr := s.idem.Complete(execCtx, kind, token, idempotency.Result{Error: code}); cErr != nil {
			s.logger.Error("record failed outcome",
				slog.String("kind", string(kind)), slog.Any("error", cErr))
		}
		return false, mErr
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode outcome: %w", err)
	}
	if cErr := s.idem.Complete(execCtx, kind, token, idempotency.Result{OK: true, Body: body}); cErr != nil {
		// The mutation is already applied; the caller still deserves its
		// definite success even if the record could not be stored.
		s.logger.Error("record successful outcome",
			slog.String("kind", string(kind)), slog.Any("error", cErr))
	}
	return false, json.Unmarshal(body, out)
}

func decodeResult(res idempotency.Result, out interface{}) error {
	if !res.OK {
		return errFor(res.Error)
	}
	return json.Unmarshal(res.Body, out)
}

func (s *Service) publish(ctx context.Context, evt events.TransactionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish transaction event",
			slog.String("id", evt.ID), slog.Any("error", err))
	}
}
