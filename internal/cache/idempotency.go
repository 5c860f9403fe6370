package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry states
const (
	StatePending   = "pending"
	StateCompleted = "completed"
)

// Entry is what an idempotency key maps to: a marker for a request still in
// flight, or the stored response of a completed one. Fingerprint identifies
// the request body the key was first used with.
type Entry struct {
	State       string          `json:"state"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsPending reports whether the original request is still running
func (e *Entry) IsPending() bool {
	return e.State == StatePending
}

// Matches reports whether the entry was created for the request with the
// given fingerprint. An entry without a fingerprint matches nothing.
func (e *Entry) Matches(fingerprint string) bool {
	return e.Fingerprint != "" && e.Fingerprint == fingerprint
}

// IdempotencyStore records request outcomes by idempotency key
type IdempotencyStore interface {
	// Acquire atomically claims key for the request with the given
	// fingerprint. It returns nil when the caller now owns the key, or the
	// existing entry otherwise.
	Acquire(ctx context.Context, key, fingerprint string) (*Entry, error)
	// Complete stores the final response for key
	Complete(ctx context.Context, key, fingerprint string, statusCode int, body []byte) error
	// Release drops a pending key so the request can be retried
	Release(ctx context.Context, key string) error
}
