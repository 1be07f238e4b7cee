package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type account struct {
	mu        sync.Mutex
	name      string
	balance   int64
	createdAt time.Time
	entries   []Entry
}

type memoryLedger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	nextID   int64
	idMu     sync.Mutex
}

// NewInMemory creates a concurrency-safe in-memory ledger. It backs the
// service when no DATABASE_URL is configured and is the reference
// implementation for unit tests.
func NewInMemory() Ledger {
	return &memoryLedger{accounts: make(map[string]*account)}
}

func (l *memoryLedger) CreateWallet(_ context.Context, name string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[name]; exists {
		return Snapshot{}, ErrWalletAlreadyExists
	}
	acc := &account{name: name, createdAt: time.Now().UTC()}
	l.accounts[name] = acc
	return Snapshot{Name: acc.name, Balance: 0, CreatedAt: acc.createdAt}, nil
}

func (l *memoryLedger) Wallet(_ context.Context, name string) (Snapshot, error) {
	acc, err := l.account(name)
	if err != nil {
		return Snapshot{}, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return Snapshot{Name: acc.name, Balance: acc.balance, CreatedAt: acc.createdAt}, nil
}

func (l *memoryLedger) Deposit(_ context.Context, name string, amount int64) (DepositResult, error) {
	if amount <= 0 {
		return DepositResult{}, ErrInvalidAmount
	}
	acc, err := l.account(name)
	if err != nil {
		return DepositResult{}, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.balance += amount
	acc.entries = append(acc.entries, Entry{
		ID:               l.allocID(),
		Wallet:           acc.name,
		Type:             EntryDeposit,
		Amount:           amount,
		ResultingBalance: acc.balance,
		Time:             time.Now().UTC(),
	})
	return DepositResult{Wallet: acc.name, NewBalance: acc.balance}, nil
}

func (l *memoryLedger) Transfer(_ context.Context, from, to string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}

	src, err := l.account(from)
	if err != nil {
		return TransferResult{}, err
	}
	dst, err := l.account(to)
	if err != nil {
		return TransferResult{}, err
	}

	// Lock both accounts in lexicographic name order. Concurrent transfers on
	// the same pair in opposite directions then always contend on the same
	// first lock instead of deadlocking.
	first, second := src, dst
	if second.name < first.name {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if second != first {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	if src.balance < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	src.balance -= amount
	dst.balance += amount

	now := time.Now().UTC()
	src.entries = append(src.entries, Entry{
		ID:               l.allocID(),
		Wallet:           src.name,
		Type:             EntryTransferOut,
		Amount:           amount,
		Counterpart:      dst.name,
		ResultingBalance: src.balance,
		Time:             now,
	})
	dst.entries = append(dst.entries, Entry{
		ID:               l.allocID(),
		Wallet:           dst.name,
		Type:             EntryTransferIn,
		Amount:           amount,
		Counterpart:      src.name,
		ResultingBalance: dst.balance,
		Time:             now,
	})

	return TransferResult{
		TransactionID: uuid.NewString(),
		From:          src.name,
		To:            dst.name,
		Amount:        amount,
		FromBalance:   src.balance,
		ToBalance:     dst.balance,
	}, nil
}

func (l *memoryLedger) History(_ context.Context, name string, f Filter) ([]Entry, error) {
	acc, err := l.account(name)
	if err != nil {
		return nil, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	out := make([]Entry, 0, len(acc.entries))
	for _, e := range acc.entries {
		if !f.matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (l *memoryLedger) account(name string) (*account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[name]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return acc, nil
}

func (l *memoryLedger) allocID() int64 {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	l.nextID++
	return l.nextID
}
