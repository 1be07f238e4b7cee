package idempotency

import (
	"context"
	"sync"
)

type recordState int

const (
	stateInProgress recordState = iota
	stateTerminal
)

type record struct {
	fingerprint string
	state       recordState
	result      Result
	aborted     bool
	done        chan struct{}
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*record
}

// NewInMemory creates an idempotency store held entirely in process memory.
// It backs the service when no REDIS_URL is configured and all unit tests.
func NewInMemory() Store {
	return &memoryStore{records: make(map[string]*record)}
}

func recordKey(kind Kind, token string) string {
	return string(kind) + ":" + token
}

func (s *memoryStore) Begin(_ context.Context, kind Kind, token, fingerprint string) (Begun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(kind, token)
	rec, exists := s.records[key]
	if !exists {
		s.records[key] = &record{
			fingerprint: fingerprint,
			state:       stateInProgress,
			done:        make(chan struct{}),
		}
		return Begun{Decision: Proceed}, nil
	}

	if rec.fingerprint != fingerprint {
		return Begun{}, ErrConflict
	}
	if rec.state == stateInProgress {
		return Begun{Decision: InProgress}, nil
	}
	return Begun{Decision: Replay, Result: rec.result}, nil
}

func (s *memoryStore) Complete(_ context.Context, kind Kind, token string, res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[recordKey(kind, token)]
	if !exists || rec.state != stateInProgress {
		return nil
	}
	rec.result = res
	rec.state = stateTerminal
	close(rec.done)
	return nil
}

func (s *memoryStore) Abort(_ context.Context, kind Kind, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(kind, token)
	rec, exists := s.records[key]
	if !exists || rec.state != stateInProgress {
		return nil
	}
	rec.aborted = true
	delete(s.records, key)
	close(rec.done)
	return nil
}

func (s *memoryStore) Await(ctx context.Context, kind Kind, token string) (Result, error) {
	s.mu.Lock()
	rec, exists := s.records[recordKey(kind, token)]
	if !exists {
		s.mu.Unlock()
		return Result{}, ErrAborted
	}
	if rec.state == stateTerminal {
		res := rec.result
		s.mu.Unlock()
		return res, nil
	}
	done := rec.done
	s.mu.Unlock()

	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if rec.aborted {
			return Result{}, ErrAborted
		}
		return rec.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
