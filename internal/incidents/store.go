package incidents

import (
	"context"
	"fmt"
	"time"
)

// Store is the interface for incident persistence backends. Appended
// incidents are owned by the store thereafter; the detection engine keeps
// no reference. Implementations are responsible for their own concurrency
// safety and deliver appends at-least-once, so callers must tolerate the
// occasional duplicate row on retry.
type Store interface {
	// Append durably records an incident. An empty ID is assigned by the
	// store.
	Append(ctx context.Context, inc *Incident) error

	// ListAll returns all stored incidents ordered by timestamp descending.
	ListAll(ctx context.Context) ([]*Incident, error)

	// Cleanup removes incidents older than the retention window.
	Cleanup(ctx context.Context, retention time.Duration) error

	// Close closes the store.
	Close() error
}

// StoreError reports a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("incident store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
