package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(client, time.Minute), mr
}

func TestRedisBeginProceedThenReplay(t *testing.T) {
	s, _ := setupRedisStore(t)
	ctx := context.Background()
	fp := CreateFingerprint("alpha")

	begun, err := s.Begin(ctx, KindCreate, "tok-1", fp)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if begun.Decision != Proceed {
		t.Fatalf("expected Proceed, got %v", begun.Decision)
	}

	res := Result{OK: true, Body: json.RawMessage(`{"name":"alpha"}`)}
	if err := s.Complete(ctx, KindCreate, "tok-1", res); err != nil {
		t.Fatalf("complete: %v", err)
	}

	begun, err = s.Begin(ctx, KindCreate, "tok-1", fp)
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if begun.Decision != Replay {
		t.Fatalf("expected Replay, got %v", begun.Decision)
	}
	if !begun.Result.OK || string(begun.Result.Body) != `{"name":"alpha"}` {
		t.Fatalf("unexpected replayed result: %+v", begun.Result)
	}
}

func TestRedisDuplicateWhileInProgress(t *testing.T) {
	s, _ := setupRedisStore(t)
	ctx := context.Background()
	fp := DepositFingerprint("alpha", 100)

	if _, err := s.Begin(ctx, KindDeposit, "tok-1", fp); err != nil {
		t.Fatalf("begin: %v", err)
	}

	begun, err := s.Begin(ctx, KindDeposit, "tok-1", fp)
	if err != nil {
		t.Fatalf("duplicate begin: %v", err)
	}
	if begun.Decision != InProgress {
		t.Fatalf("expected InProgress, got %v", begun.Decision)
	}
}

func TestRedisFingerprintConflict(t *testing.T) {
	s, _ := setupRedisStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, KindCreate, "tok-1", CreateFingerprint("alpha")); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := s.Begin(ctx, KindCreate, "tok-1", CreateFingerprint("beta")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRedisAwaitReceivesOutcome(t *testing.T) {
	s, _ := setupRedisStore(t)
	ctx := context.Background()
	fp := DepositFingerprint("alpha", 100)

	if _, err := s.Begin(ctx, KindDeposit, "tok-1", fp); err != nil {
		t.Fatalf("begin: %v", err)
	}

	go func() {
		time.Sleep(pollInterval * 2)
		_ = s.Complete(context.Background(), KindDeposit, "tok-1", Result{OK: true, Body: json.RawMessage(`{"balance":100}`)})
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := s.Await(waitCtx, KindDeposit, "tok-1")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if string(res.Body) != `{"balance":100}` {
		t.Fatalf("unexpected awaited result: %+v", res)
	}
}

func TestRedisAwaitTimesOut(t *testing.T) {
	s, _ := setupRedisStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, KindDeposit, "tok-1", "fp"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 3*pollInterval)
	defer cancel()
	if _, err := s.Await(waitCtx, KindDeposit, "tok-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRedisAbortFreesKey(t *testing.T) {
	s, _ := setupRedisStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, KindTransfer, "tok-1", "fp"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Abort(ctx, KindTransfer, "tok-1"); err != nil {
		t.Fatalf("abort: %v", err)
	}

	begun, err := s.Begin(ctx, KindTransfer, "tok-1", "fp")
	if err != nil {
		t.Fatalf("begin after abort: %v", err)
	}
	if begun.Decision != Proceed {
		t.Fatalf("expected Proceed after abort, got %v", begun.Decision)
	}
}

func TestRedisExpiredClaimIsReclaimable(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	if _, err := s.Begin(ctx, KindCreate, "tok-1", "fp"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	begun, err := s.Begin(ctx, KindCreate, "tok-1", "fp")
	if err != nil {
		t.Fatalf("begin after expiry: %v", err)
	}
	if begun.Decision != Proceed {
		t.Fatalf("expected Proceed after expiry, got %v", begun.Decision)
	}
}
