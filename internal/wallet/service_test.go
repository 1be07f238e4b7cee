package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okapi-pay/okapi_pay/internal/idempotency"
	"github.com/okapi-pay/okapi_pay/internal/ledger"
	"github.com/okapi-pay/okapi_pay/internal/logging"
)

func newTestService(t *testing.T) (*Service, ledger.Ledger, idempotency.Store) {
	t.Helper()
	l := ledger.NewInMemory()
	store := idempotency.NewInMemory()
	svc := NewService(l, store, time.Second, nil, logging.Discard())
	return svc, l, store
}

func TestCreateWalletIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	resp, replayed, err := svc.CreateWallet(ctx, "create_key_1", "myWallet")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if replayed {
		t.Fatal("first create must be fresh")
	}
	if resp.Name != "myWallet" || resp.Balance != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp2, replayed, err := svc.CreateWallet(ctx, "create_key_1", "myWallet")
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if !replayed {
		t.Fatal("repeat create must replay")
	}
	if resp2 != resp {
		t.Fatalf("replayed response differs: %+v vs %+v", resp2, resp)
	}
}

func TestCreateWalletNameConflictUnderDifferentToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateWallet(ctx, "create_key_1", "myWallet"); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, _, err := svc.CreateWallet(ctx, "create_key_2", "myWallet")
	if !errors.Is(err, ledger.ErrWalletAlreadyExists) {
		t.Fatalf("expected ErrWalletAlreadyExists, got %v", err)
	}

	// The failure is terminal for that token and replays identically.
	_, _, err = svc.CreateWallet(ctx, "create_key_2", "myWallet")
	if !errors.Is(err, ledger.ErrWalletAlreadyExists) {
		t.Fatalf("expected replayed ErrWalletAlreadyExists, got %v", err)
	}
}

func TestTokenReuseAcrossDifferentRequests(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateWallet(ctx, "tok", "myWallet"); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, _, err := svc.CreateWallet(ctx, "tok", "anotherWallet")
	if !errors.Is(err, idempotency.ErrConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestDepositExecutesExactlyOnce(t *testing.T) {
	svc, l, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateWallet(ctx, "ck", "myWallet"); err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, replayed, err := svc.Deposit(ctx, "deposit_1", "myWallet", 10_000)
	if err != nil || replayed {
		t.Fatalf("fresh deposit: replayed=%v err=%v", replayed, err)
	}
	if resp.Balance != 10_000 {
		t.Fatalf("expected balance 10000, got %d", resp.Balance)
	}

	resp2, replayed, err := svc.Deposit(ctx, "deposit_1", "myWallet", 10_000)
	if err != nil || !replayed {
		t.Fatalf("repeat deposit: replayed=%v err=%v", replayed, err)
	}
	if resp2.Balance != 10_000 {
		t.Fatalf("replayed balance must match original, got %d", resp2.Balance)
	}

	// The mutation ran once: balance and log both say so.
	snap, _ := l.Wallet(ctx, "myWallet")
	if snap.Balance != 10_000 {
		t.Fatalf("deposit applied more than once: %d", snap.Balance)
	}
	hist, _ := l.History(ctx, "myWallet", ledger.Filter{})
	if len(hist) != 1 {
		t.Fatalf("expected single ledger entry, got %d", len(hist))
	}
}

func TestTransferScenario(t *testing.T) {
	svc, l, _ := newTestService(t)
	ctx := context.Background()

	for name, token := range map[string]string{"myWallet": "ck1", "anotherWallet": "ck2"} {
		if _, _, err := svc.CreateWallet(ctx, token, name); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, _, err := svc.Deposit(ctx, "deposit_1", "myWallet", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	tokens := []string{"transfer_0", "transfer_1", "transfer_2"}
	for _, token := range tokens {
		resp, replayed, err := svc.Transfer(ctx, token, "myWallet", "anotherWallet", 100)
		if err != nil || replayed {
			t.Fatalf("transfer %s: replayed=%v err=%v", token, replayed, err)
		}
		if resp.Amount != 100 {
			t.Fatalf("unexpected transfer response: %+v", resp)
		}
	}

	from, _ := l.Wallet(ctx, "myWallet")
	to, _ := l.Wallet(ctx, "anotherWallet")
	if from.Balance != 9_700 || to.Balance != 300 {
		t.Fatalf("unexpected balances: from=%d to=%d", from.Balance, to.Balance)
	}

	// Oversized transfer fails and mutates nothing.
	_, _, err := svc.Transfer(ctx, "transfer_1000", "myWallet", "anotherWallet", 100_000)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	from, _ = l.Wallet(ctx, "myWallet")
	to, _ = l.Wallet(ctx, "anotherWallet")
	if from.Balance != 9_700 || to.Balance != 300 {
		t.Fatalf("failed transfer mutated balances: from=%d to=%d", from.Balance, to.Balance)
	}

	histFrom, _ := l.History(ctx, "myWallet", ledger.Filter{})
	if len(histFrom) != 4 {
		t.Fatalf("expected 1 deposit + 3 transfer_out entries, got %d", len(histFrom))
	}
	histTo, _ := l.History(ctx, "anotherWallet", ledger.Filter{})
	if len(histTo) != 3 {
		t.Fatalf("expected 3 transfer_in entries, got %d", len(histTo))
	}
}

func TestConcurrentDepositsSameToken(t *testing.T) {
	svc, l, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateWallet(ctx, "ck", "myWallet"); err != nil {
		t.Fatalf("create: %v", err)
	}

	const callers = 12
	var wg sync.WaitGroup
	responses := make([]DepositResponse, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], _, errs[i] = svc.Deposit(ctx, "deposit_1", "myWallet", 10_000)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if responses[i].Balance != 10_000 {
			t.Fatalf("caller %d observed balance %d", i, responses[i].Balance)
		}
	}

	snap, _ := l.Wallet(ctx, "myWallet")
	if snap.Balance != 10_000 {
		t.Fatalf("mutation executed more than once: %d", snap.Balance)
	}
	hist, _ := l.History(ctx, "myWallet", ledger.Filter{})
	if len(hist) != 1 {
		t.Fatalf("expected single ledger entry, got %d", len(hist))
	}
}

func TestDuplicateWaitTimesOut(t *testing.T) {
	l := ledger.NewInMemory()
	store := idempotency.NewInMemory()
	svc := NewService(l, store, 50*time.Millisecond, nil, logging.Discard())
	ctx := context.Background()

	if _, err := l.CreateWallet(ctx, "myWallet"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Claim the key directly and never complete it, simulating a stuck
	// original request.
	fp := idempotency.DepositFingerprint("myWallet", 100)
	if _, err := store.Begin(ctx, idempotency.KindDeposit, "stuck", fp); err != nil {
		t.Fatalf("claim: %v", err)
	}

	_, _, err := svc.Deposit(ctx, "stuck", "myWallet", 100)
	if !errors.Is(err, ErrDuplicateTimeout) {
		t.Fatalf("expected ErrDuplicateTimeout, got %v", err)
	}

	snap, _ := l.Wallet(ctx, "myWallet")
	if snap.Balance != 0 {
		t.Fatalf("timed-out duplicate must not execute, balance=%d", snap.Balance)
	}
}

func TestEmptyTokenIsAValidToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateWallet(ctx, "", "myWallet"); err != nil {
		t.Fatalf("create with empty token: %v", err)
	}
	_, replayed, err := svc.CreateWallet(ctx, "", "myWallet")
	if err != nil || !replayed {
		t.Fatalf("empty token must behave like any token: replayed=%v err=%v", replayed, err)
	}
}
