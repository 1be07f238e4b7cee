package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
        name       text PRIMARY KEY,
        balance    bigint NOT NULL DEFAULT 0 CHECK (balance >= 0),
        created_at timestamptz NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
        id                bigserial PRIMARY KEY,
        wallet            text NOT NULL REFERENCES wallets (name),
        entry_type        text NOT NULL,
        amount            bigint NOT NULL CHECK (amount > 0),
        counterpart       text,
        resulting_balance bigint NOT NULL,
        created_at        timestamptz NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_wallet_id_idx
        ON ledger_entries (wallet, id)`,
}

// Migrate applies the wallet schema. Statements are idempotent so running at
// every startup is safe.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
