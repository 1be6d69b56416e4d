package metrics

import (
	"context"
	"fmt"
)

// Source fetches telemetry for one resource over a trailing window.
// Implementations wrap a cloud monitoring backend or a simulator; they
// normalize vendor payloads into the Snapshot model before returning.
//
// A fetch that succeeds but finds no data returns an empty snapshot and a
// nil error; a FetchError always means no snapshot could be produced.
type Source interface {
	Fetch(ctx context.Context, resourceID string, windowMinutes int, kind Kind) (*Snapshot, error)
}

// FetchError reports that a source could not produce a snapshot for a
// metric kind (transport, auth, quota, or decode failure).
type FetchError struct {
	Kind       Kind
	ResourceID string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s metrics for %s: %v", e.Kind, e.ResourceID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
