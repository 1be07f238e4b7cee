package events

import (
	"context"
	"log/slog"
	"time"
)

// TransactionEvent describes a completed balance mutation, published for
// downstream consumers (reporting, reconciliation).
type TransactionEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // deposit | transfer
	Wallet      string    `json:"wallet"`
	Counterpart string    `json:"counterpart,omitempty"`
	Amount      int64     `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher delivers transaction events. Delivery is best effort; the ledger
// is the source of truth regardless of what happens here.
type Publisher interface {
	Publish(ctx context.Context, evt TransactionEvent) error
	Close() error
}

type logPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher that only logs events. Used when no
// broker is configured.
func NewLogPublisher(logger *slog.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, evt TransactionEvent) error {
	p.logger.Info("transaction completed",
		slog.String("id", evt.ID),
		slog.String("type", evt.Type),
		slog.String("wallet", evt.Wallet),
		slog.Int64("amount", evt.Amount),
	)
	return nil
}

func (p *logPublisher) Close() error { return nil }
