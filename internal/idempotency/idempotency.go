// Package idempotency implements at-most-once execution of mutating wallet
// operations. Every mutation is keyed by (operation kind, caller token); the
// first request to claim a key executes, everyone else replays its stored
// outcome or waits for it.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrConflict indicates a token was reused with a different request
	// fingerprint, i.e. for a logically different operation.
	ErrConflict = errors.New("idempotency key reused with different request")

	// ErrAborted indicates the original holder of the key gave up without
	// recording an outcome; waiting duplicates cannot replay anything.
	ErrAborted = errors.New("original request aborted")
)

// Kind scopes tokens per operation so similarly shaped tokens for different
// operations never collide.
type Kind string

const (
	KindCreate   Kind = "create"
	KindDeposit  Kind = "deposit"
	KindTransfer Kind = "transfer"
)

// Result is the replayable outcome of a completed operation. OK results carry
// the operation payload; failed results carry the business error code so a
// retry observes the same classified failure.
type Result struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// Decision classifies the outcome of Begin.
type Decision int

const (
	// Proceed means the caller claimed the key and must execute the mutation,
	// then call Complete (or Abort if it cannot record an outcome).
	Proceed Decision = iota
	// Replay means the key already holds a terminal outcome; return it
	// unchanged without re-executing.
	Replay
	// InProgress means another request holds the key; call Await.
	InProgress
)

// Begun is the outcome of Begin. Result is populated only for Replay.
type Begun struct {
	Decision Decision
	Result   Result
}

// Store records operation outcomes keyed by (kind, token). A key moves
// absent -> in progress -> terminal; its fingerprint is fixed when claimed and
// terminal records never change.
type Store interface {
	// Begin claims the key or classifies the duplicate. Returns ErrConflict
	// when the key exists under a different fingerprint.
	Begin(ctx context.Context, kind Kind, token, fingerprint string) (Begun, error)

	// Complete records the terminal outcome for a key claimed by this caller.
	Complete(ctx context.Context, kind Kind, token string, res Result) error

	// Abort releases a claimed key without an outcome, letting a later retry
	// execute afresh. Waiters receive ErrAborted.
	Abort(ctx context.Context, kind Kind, token string) error

	// Await blocks until the key reaches a terminal outcome or ctx expires.
	Await(ctx context.Context, kind Kind, token string) (Result, error)
}
