package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "idempotency:v1:"

	statusInProgress = "in_progress"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)

// pollInterval paces Await for a store with no native notification channel.
const pollInterval = 50 * time.Millisecond

type storedRecord struct {
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint"`
	Result      Result `json:"result"`
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates an idempotency store backed by Redis. Records expire after
// ttl so the keyspace does not grow without bound; within the ttl retries of
// the same operation replay the stored outcome.
func NewRedis(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) redisKey(kind Kind, token string) string {
	return keyPrefix + string(kind) + ":" + token
}

func (s *redisStore) Begin(ctx context.Context, kind Kind, token, fingerprint string) (Begun, error) {
	key := s.redisKey(kind, token)

	claim, err := json.Marshal(storedRecord{Status: statusInProgress, Fingerprint: fingerprint})
	if err != nil {
		return Begun{}, fmt.Errorf("encode claim: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, key, claim, s.ttl).Result()
	if err != nil {
		return Begun{}, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return Begun{Decision: Proceed}, nil
	}

	rec, err := s.fetch(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Claim expired or was aborted between SetNX and Get; treat the retry
		// as a fresh claim.
		return s.Begin(ctx, kind, token, fingerprint)
	}
	if err != nil {
		return Begun{}, err
	}

	if rec.Fingerprint != fingerprint {
		return Begun{}, ErrConflict
	}
	if rec.Status == statusInProgress {
		return Begun{Decision: InProgress}, nil
	}
	return Begun{Decision: Replay, Result: rec.Result}, nil
}

func (s *redisStore) Complete(ctx context.Context, kind Kind, token string, res Result) error {
	key := s.redisKey(kind, token)

	rec, err := s.fetch(ctx, key)
	if errors.Is(err, redis.Nil) {
		rec = storedRecord{}
	} else if err != nil {
		return err
	}

	rec.Status = statusSucceeded
	if !res.OK {
		rec.Status = statusFailed
	}
	rec.Result = res

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist outcome: %w", err)
	}
	return nil
}

func (s *redisStore) Abort(ctx context.Context, kind Kind, token string) error {
	if err := s.client.Del(ctx, s.redisKey(kind, token)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *redisStore) Await(ctx context.Context, kind Kind, token string) (Result, error) {
	key := s.redisKey(kind, token)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rec, err := s.fetch(ctx, key)
		if errors.Is(err, redis.Nil) {
			return Result{}, ErrAborted
		}
		if err != nil {
			return Result{}, err
		}
		if rec.Status != statusInProgress {
			return rec.Result, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *redisStore) fetch(ctx context.Context, key string) (storedRecord, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storedRecord{}, redis.Nil
		}
		return storedRecord{}, fmt.Errorf("fetch idempotency record: %w", err)
	}
	var rec storedRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return storedRecord{}, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec, nil
}
