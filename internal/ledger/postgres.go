package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// PostgresLedger persists wallets and ledger entries in PostgreSQL. Per-wallet
// serialization comes from row locks; the balance >= 0 table constraint is the
// last line of defense behind the explicit funds check.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateWallet registers a wallet with a zero balance.
func (l *PostgresLedger) CreateWallet(ctx context.Context, name string) (Snapshot, error) {
	var createdAt time.Time
	err := l.db.QueryRow(ctx, `INSERT INTO wallets (name, balance) VALUES ($1, 0)
        RETURNING created_at`, name).Scan(&createdAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return Snapshot{}, ErrWalletAlreadyExists
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("create wallet: %w", err)
	}
	return Snapshot{Name: name, Balance: 0, CreatedAt: createdAt.UTC()}, nil
}

// Wallet fetches the current balance snapshot for a wallet.
func (l *PostgresLedger) Wallet(ctx context.Context, name string) (Snapshot, error) {
	var s Snapshot
	err := l.db.QueryRow(ctx, `SELECT name, balance, created_at FROM wallets
        WHERE name = $1`, name).Scan(&s.Name, &s.Balance, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrWalletNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch wallet: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

// Deposit atomically increments the balance and appends a deposit entry.
func (l *PostgresLedger) Deposit(ctx context.Context, name string, amount int64) (DepositResult, error) {
	if amount <= 0 {
		return DepositResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return DepositResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var newBalance int64
	err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1
        WHERE name = $2 RETURNING balance`, amount, name).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return DepositResult{}, ErrWalletNotFound
	}
	if err != nil {
		return DepositResult{}, fmt.Errorf("apply deposit: %w", err)
	}

	if err := appendEntry(ctx, tx, Entry{
		Wallet:           name,
		Type:             EntryDeposit,
		Amount:           amount,
		ResultingBalance: newBalance,
	}); err != nil {
		return DepositResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DepositResult{}, fmt.Errorf("commit deposit: %w", err)
	}
	return DepositResult{Wallet: name, NewBalance: newBalance}, nil
}

// Transfer moves amount between two wallets, recording a balanced pair of
// entries in the same transaction. Rows are locked in name order.
func (l *PostgresLedger) Transfer(ctx context.Context, from, to string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// ORDER BY name makes concurrent opposite-direction transfers take row
	// locks in the same sequence.
	rows, err := tx.Query(ctx, `SELECT name, balance FROM wallets
        WHERE name = $1 OR name = $2 ORDER BY name FOR UPDATE`, from, to)
	if err != nil {
		return TransferResult{}, fmt.Errorf("lock wallets: %w", err)
	}
	balances := make(map[string]int64, 2)
	for rows.Next() {
		var name string
		var balance int64
		if err := rows.Scan(&name, &balance); err != nil {
			rows.Close()
			return TransferResult{}, fmt.Errorf("scan wallet: %w", err)
		}
		balances[name] = balance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return TransferResult{}, fmt.Errorf("lock wallets: %w", err)
	}

	fromBalance, ok := balances[from]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if _, ok := balances[to]; !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if fromBalance < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance - $1
        WHERE name = $2`, amount, from); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return TransferResult{}, ErrInsufficientFunds
		}
		return TransferResult{}, fmt.Errorf("debit source: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance + $1
        WHERE name = $2`, amount, to); err != nil {
		return TransferResult{}, fmt.Errorf("credit destination: %w", err)
	}

	var res TransferResult
	res.TransactionID = uuid.NewString()
	res.From, res.To, res.Amount = from, to, amount
	if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE name = $1`, from).Scan(&res.FromBalance); err != nil {
		return TransferResult{}, fmt.Errorf("read source balance: %w", err)
	}
	if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE name = $1`, to).Scan(&res.ToBalance); err != nil {
		return TransferResult{}, fmt.Errorf("read destination balance: %w", err)
	}

	if err := appendEntry(ctx, tx, Entry{
		Wallet:           from,
		Type:             EntryTransferOut,
		Amount:           amount,
		Counterpart:      to,
		ResultingBalance: res.FromBalance,
	}); err != nil {
		return TransferResult{}, err
	}
	if err := appendEntry(ctx, tx, Entry{
		Wallet:           to,
		Type:             EntryTransferIn,
		Amount:           amount,
		Counterpart:      from,
		ResultingBalance: res.ToBalance,
	}); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, fmt.Errorf("commit transfer: %w", err)
	}
	return res, nil
}

// History returns the wallet's entries in append order, narrowed by filter.
func (l *PostgresLedger) History(ctx context.Context, name string, f Filter) ([]Entry, error) {
	if _, err := l.Wallet(ctx, name); err != nil {
		return nil, err
	}

	query, args := historyQuery(name, f)
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var counterpart *string
		if err := rows.Scan(&e.ID, &e.Wallet, &e.Type, &e.Amount, &counterpart, &e.ResultingBalance, &e.Time); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if counterpart != nil {
			e.Counterpart = *counterpart
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return out, nil
}

func appendEntry(ctx context.Context, tx pgx.Tx, e Entry) error {
	var counterpart *string
	if e.Counterpart != "" {
		counterpart = &e.Counterpart
	}
	_, err := tx.Exec(ctx, `INSERT INTO ledger_entries
        (wallet, entry_type, amount, counterpart, resulting_balance)
        VALUES ($1, $2, $3, $4, $5)`,
		e.Wallet, string(e.Type), e.Amount, counterpart, e.ResultingBalance)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func historyQuery(name string, f Filter) (string, []interface{}) {
	query := `SELECT id, wallet, entry_type, amount, counterpart, resulting_balance, created_at
        FROM ledger_entries WHERE wallet = $1`
	args := []interface{}{name}
	next := 2

	if f.Direction != "" {
		query += " AND entry_type = $" + strconv.Itoa(next)
		args = append(args, string(f.Direction))
		next++
	}
	if !f.StartDate.IsZero() {
		query += fmt.Sprintf(" AND DATE(created_at) >= DATE($%d)", next)
		args = append(args, f.StartDate)
		next++
	}
	if !f.EndDate.IsZero() {
		query += fmt.Sprintf(" AND DATE(created_at) <= DATE($%d)", next)
		args = append(args, f.EndDate)
		next++
	}
	if f.OffsetByID > 0 {
		query += " AND id > $" + strconv.Itoa(next)
		args = append(args, f.OffsetByID)
		next++
	}

	query += " ORDER BY id"

	if f.Limit > 0 {
		query += " LIMIT $" + strconv.Itoa(next)
		args = append(args, f.Limit)
	}

	return query, args
}
