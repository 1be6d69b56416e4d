package detection

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nimbusops/incidentwatch/internal/incidents"
	"github.com/nimbusops/incidentwatch/internal/metrics"
)

// Config holds detection engine configuration
type Config struct {
	ResourceID      string
	LookbackMinutes int
	PollInterval    time.Duration
}

// CycleResult is the outcome of one detection cycle. Incidents preserves
// rule evaluation order and includes every detected incident even when some
// appends failed; FetchErrors holds the kinds whose fetch produced no
// snapshot.
type CycleResult struct {
	Incidents   []*incidents.Incident  `json:"incidents"`
	FetchErrors map[metrics.Kind]error `json:"-"`
	StoreErrors int                    `json:"store_errors"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
}

// AllFetchesFailed reports whether no metric kind could be fetched.
func (r *CycleResult) AllFetchesFailed() bool {
	return len(r.FetchErrors) > 0 && len(r.FetchErrors) == len(metrics.Kinds)
}

// Engine runs detection cycles against a metrics source and persists fired
// incidents. It is stateless between cycles; collaborators are injected at
// construction and the engine holds no other shared state, so concurrent
// cycles are safe.
type Engine struct {
	config Config
	source metrics.Source
	store  incidents.Store
	rules  []Rule

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewEngine creates a detection engine with the given rules. Rules are
// evaluated in slice order each cycle.
func NewEngine(cfg Config, source metrics.Source, store incidents.Store, rules []Rule) *Engine {
	if cfg.LookbackMinutes <= 0 {
		cfg.LookbackMinutes = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Engine{
		config: cfg,
		source: source,
		store:  store,
		rules:  rules,
		stopCh: make(chan struct{}),
	}
}

// Start begins the background poll loop, running one cycle per interval.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.pollLoop(ctx)

	return nil
}

// Stop stops the poll loop and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.running {
		close(e.stopCh)
		e.running = false
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			result := e.RunCycle(ctx)
			if len(result.Incidents) > 0 {
				log.Printf("detection cycle: %d incident(s) detected, %d store error(s)",
					len(result.Incidents), result.StoreErrors)
			}
		}
	}
}

// RunCycle performs one fetch -> evaluate -> persist pass. The three metric
// kinds are fetched concurrently; a failed fetch skips only that kind's
// rules. Every fired incident is appended to the store, and an append
// failure never removes an incident from the result nor stops the
// remaining appends.
func (e *Engine) RunCycle(ctx context.Context) *CycleResult {
	now := time.Now().UTC()
	result := &CycleResult{
		FetchErrors: make(map[metrics.Kind]error),
		EvaluatedAt: now,
	}

	snapshots := e.fetchAll(ctx, result)

	for _, rule := range e.rules {
		snap, ok := snapshots[rule.Kind()]
		if !ok {
			continue
		}
		inc := rule.Evaluate(snap, now)
		if inc != nil {
			result.Incidents = append(result.Incidents, inc)
		}
	}

	for _, inc := range result.Incidents {
		if err := e.store.Append(ctx, inc); err != nil {
			log.Printf("failed to store %s incident for %s: %v", inc.Type, inc.ResourceID, err)
			result.StoreErrors++
		}
	}

	return result
}

func (e *Engine) fetchAll(ctx context.Context, result *CycleResult) map[metrics.Kind]*metrics.Snapshot {
	type fetchOutcome struct {
		kind metrics.Kind
		snap *metrics.Snapshot
		err  error
	}

	outcomes := make(chan fetchOutcome, len(metrics.Kinds))
	var wg sync.WaitGroup

	for _, kind := range metrics.Kinds {
		wg.Add(1)
		go func(kind metrics.Kind) {
			defer wg.Done()
			snap, err := e.source.Fetch(ctx, e.config.ResourceID, e.config.LookbackMinutes, kind)
			outcomes <- fetchOutcome{kind: kind, snap: snap, err: err}
		}(kind)
	}
	wg.Wait()
	close(outcomes)

	snapshots := make(map[metrics.Kind]*metrics.Snapshot, len(metrics.Kinds))
	for o := range outcomes {
		if o.err != nil {
			log.Printf("metrics fetch failed: %v", o.err)
			result.FetchErrors[o.kind] = o.err
			continue
		}
		snapshots[o.kind] = o.snap
	}
	return snapshots
}
