package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWalletNotFound occurs when an operation references a wallet name that
	// was never registered.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletAlreadyExists indicates a create collided with an existing wallet
	// name. Names are reserved forever, there is no delete.
	ErrWalletAlreadyExists = errors.New("wallet already exists")

	// ErrInsufficientFunds occurs when a transfer debit would drive the source
	// wallet below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount indicates a non-positive deposit or transfer amount.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryDeposit     EntryType = "deposit"
	EntryTransferOut EntryType = "transfer_out"
	EntryTransferIn  EntryType = "transfer_in"
)

// ValidDirection reports whether s names an entry type usable as a history
// filter. The empty string means "no filter".
func ValidDirection(s string) bool {
	switch EntryType(s) {
	case EntryDeposit, EntryTransferOut, EntryTransferIn, "":
		return true
	default:
		return false
	}
}

// Entry is one immutable record of a balance-affecting event. A transfer
// produces exactly two entries, a transfer_out on the source and a transfer_in
// on the destination, each naming the other wallet as counterpart.
type Entry struct {
	ID               int64     `json:"id"`
	Wallet           string    `json:"wallet"`
	Type             EntryType `json:"type"`
	Amount           int64     `json:"amount"`
	Counterpart      string    `json:"counterpart,omitempty"`
	ResultingBalance int64     `json:"resulting_balance"`
	Time             time.Time `json:"time"`
}

// Snapshot is an immutable view of a wallet at read time.
type Snapshot struct {
	Name      string
	Balance   int64
	CreatedAt time.Time
}

// DepositResult captures the outcome of a completed deposit.
type DepositResult struct {
	Wallet     string
	NewBalance int64
}

// TransferResult captures the outcome of a completed transfer.
type TransferResult struct {
	TransactionID string
	From          string
	To            string
	Amount        int64
	FromBalance   int64
	ToBalance     int64
}

// Filter narrows a history read. Zero values mean "no constraint". Dates are
// compared at day granularity, matching the start_date/end_date wire format.
type Filter struct {
	Direction  EntryType
	StartDate  time.Time
	EndDate    time.Time
	Limit      int
	OffsetByID int64
}

// Ledger is the contract implemented by ledger backends. All mutations on a
// single wallet are serialized; transfers acquire both wallets in lexicographic
// name order so concurrent opposite-direction transfers cannot deadlock.
type Ledger interface {
	CreateWallet(ctx context.Context, name string) (Snapshot, error)
	Wallet(ctx context.Context, name string) (Snapshot, error)
	Deposit(ctx context.Context, name string, amount int64) (DepositResult, error)
	Transfer(ctx context.Context, from, to string, amount int64) (TransferResult, error)
	History(ctx context.Context, name string, f Filter) ([]Entry, error)
}

func (f Filter) matches(e Entry) bool {
	if f.Direction != "" && e.Type != f.Direction {
		return false
	}
	if !f.StartDate.IsZero() && dayOf(e.Time).Before(dayOf(f.StartDate)) {
		return false
	}
	if !f.EndDate.IsZero() && dayOf(e.Time).After(dayOf(f.EndDate)) {
		return false
	}
	if f.OffsetByID > 0 && e.ID <= f.OffsetByID {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
