package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nimbusops/incidentwatch/internal/incidents"
	"github.com/nimbusops/incidentwatch/internal/metrics"
)

// mockSource implements metrics.Source for testing. Fetches happen
// concurrently, so call tracking is locked.
type mockSource struct {
	snapshots map[metrics.Kind]*metrics.Snapshot
	errs      map[metrics.Kind]error

	mu    sync.Mutex
	calls []metrics.Kind
}

func (m *mockSource) Fetch(ctx context.Context, resourceID string, windowMinutes int, kind metrics.Kind) (*metrics.Snapshot, error) {
	m.mu.Lock()
	m.calls = append(m.calls, kind)
	m.mu.Unlock()
	if err, ok := m.errs[kind]; ok {
		return nil, &metrics.FetchError{Kind: kind, ResourceID: resourceID, Err: err}
	}
	if snap, ok := m.snapshots[kind]; ok {
		return snap, nil
	}
	return &metrics.Snapshot{Kind: kind}, nil
}

// mockStore implements incidents.Store for testing
type mockStore struct {
	appended []*incidents.Incident
	failFor  incidents.Type
}

func (m *mockStore) Append(ctx context.Context, inc *incidents.Incident) error {
	if m.failFor != "" && inc.Type == m.failFor {
		return &incidents.StoreError{Op: "append", Err: errors.New("write refused")}
	}
	m.appended = append(m.appended, inc)
	return nil
}

func (m *mockStore) ListAll(ctx context.Context) ([]*incidents.Incident, error) {
	return m.appended, nil
}

func (m *mockStore) Cleanup(ctx context.Context, retention time.Duration) error {
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

func defaultRules() []Rule {
	return []Rule{
		NewCPURule(80.0, 5),
		NewMemoryRule(2.0, 5),
		NewNetworkRule(100.0, 5),
	}
}

func newTestEngine(src *mockSource, store *mockStore) *Engine {
	return NewEngine(Config{
		ResourceID:      testResource,
		LookbackMinutes: 10,
	}, src, store, defaultRules())
}

func allFiringSource(now time.Time) *mockSource {
	return &mockSource{
		snapshots: map[metrics.Kind]*metrics.Snapshot{
			metrics.KindCPU:     cpuSnapshot(85.0, now),
			metrics.KindMemory:  memorySnapshot(1.5*1024*1024*1024, now),
			metrics.KindNetwork: networkSnapshot(60*1024, 50*1024, now),
		},
	}
}

func TestEngine_RunCycle_NoIncidents(t *testing.T) {
	now := time.Now().UTC()
	src := &mockSource{
		snapshots: map[metrics.Kind]*metrics.Snapshot{
			metrics.KindCPU:     cpuSnapshot(20.0, now),
			metrics.KindMemory:  memorySnapshot(8*1024*1024*1024, now),
			metrics.KindNetwork: networkSnapshot(5*1024, 5*1024, now),
		},
	}
	store := &mockStore{}

	result := newTestEngine(src, store).RunCycle(context.Background())

	if len(result.Incidents) != 0 {
		t.Errorf("expected no incidents, got %d", len(result.Incidents))
	}
	if len(store.appended) != 0 {
		t.Errorf("expected zero store appends, got %d", len(store.appended))
	}
	if result.StoreErrors != 0 {
		t.Errorf("StoreErrors = %d, want 0", result.StoreErrors)
	}
	if len(result.FetchErrors) != 0 {
		t.Errorf("FetchErrors = %d, want 0", len(result.FetchErrors))
	}
}

func TestEngine_RunCycle_AllRulesFire_OrderPreserved(t *testing.T) {
	now := time.Now().UTC()
	store := &mockStore{}

	result := newTestEngine(allFiringSource(now), store).RunCycle(context.Background())

	if len(result.Incidents) != 3 {
		t.Fatalf("expected 3 incidents, got %d", len(result.Incidents))
	}

	wantOrder := []incidents.Type{
		incidents.TypeHighCPU,
		incidents.TypeLowMemory,
		incidents.TypeHighNetworkTraffic,
	}
	for i, want := range wantOrder {
		if result.Incidents[i].Type != want {
			t.Errorf("Incidents[%d].Type = %s, want %s", i, result.Incidents[i].Type, want)
		}
	}

	// One append per fired incident, in the same order
	if len(store.appended) != 3 {
		t.Fatalf("expected 3 appends, got %d", len(store.appended))
	}
	for i, want := range wantOrder {
		if store.appended[i].Type != want {
			t.Errorf("appended[%d].Type = %s, want %s", i, store.appended[i].Type, want)
		}
	}
}

func TestEngine_RunCycle_PartialStoreFailure(t *testing.T) {
	now := time.Now().UTC()
	store := &mockStore{failFor: incidents.TypeHighCPU}

	result := newTestEngine(allFiringSource(now), store).RunCycle(context.Background())

	// The returned list still contains all three incidents
	if len(result.Incidents) != 3 {
		t.Fatalf("expected 3 incidents despite store failure, got %d", len(result.Incidents))
	}
	if result.Incidents[0].Type != incidents.TypeHighCPU {
		t.Errorf("first incident = %s, want %s", result.Incidents[0].Type, incidents.TypeHighCPU)
	}
	if result.StoreErrors != 1 {
		t.Errorf("StoreErrors = %d, want 1", result.StoreErrors)
	}
	// The remaining incidents were still stored
	if len(store.appended) != 2 {
		t.Errorf("expected 2 successful appends, got %d", len(store.appended))
	}
}

func TestEngine_RunCycle_FetchFailureSkipsOnlyThatKind(t *testing.T) {
	now := time.Now().UTC()
	src := allFiringSource(now)
	src.errs = map[metrics.Kind]error{
		metrics.KindCPU: errors.New("quota exceeded"),
	}
	store := &mockStore{}

	result := newTestEngine(src, store).RunCycle(context.Background())

	if len(result.FetchErrors) != 1 {
		t.Fatalf("expected 1 fetch error, got %d", len(result.FetchErrors))
	}
	var fetchErr *metrics.FetchError
	if !errors.As(result.FetchErrors[metrics.KindCPU], &fetchErr) {
		t.Errorf("expected a FetchError for cpu, got %v", result.FetchErrors[metrics.KindCPU])
	}

	// Memory and network rules still evaluated and fired
	if len(result.Incidents) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(result.Incidents))
	}
	if result.Incidents[0].Type != incidents.TypeLowMemory {
		t.Errorf("Incidents[0].Type = %s, want %s", result.Incidents[0].Type, incidents.TypeLowMemory)
	}
	if result.Incidents[1].Type != incidents.TypeHighNetworkTraffic {
		t.Errorf("Incidents[1].Type = %s, want %s", result.Incidents[1].Type, incidents.TypeHighNetworkTraffic)
	}
	if result.AllFetchesFailed() {
		t.Error("AllFetchesFailed() should be false with partial failure")
	}
}

func TestEngine_RunCycle_AllFetchesFailed(t *testing.T) {
	src := &mockSource{
		errs: map[metrics.Kind]error{
			metrics.KindCPU:     errors.New("auth failed"),
			metrics.KindMemory:  errors.New("auth failed"),
			metrics.KindNetwork: errors.New("auth failed"),
		},
	}
	store := &mockStore{}

	result := newTestEngine(src, store).RunCycle(context.Background())

	if !result.AllFetchesFailed() {
		t.Error("AllFetchesFailed() should be true")
	}
	if len(result.Incidents) != 0 {
		t.Errorf("expected no incidents, got %d", len(result.Incidents))
	}
}

func TestEngine_RunCycle_FetchesAllKinds(t *testing.T) {
	store := &mockStore{}
	src := &mockSource{}

	newTestEngine(src, store).RunCycle(context.Background())

	if len(src.calls) != 3 {
		t.Fatalf("expected 3 fetch calls, got %d", len(src.calls))
	}
	seen := make(map[metrics.Kind]bool)
	for _, k := range src.calls {
		seen[k] = true
	}
	for _, k := range metrics.Kinds {
		if !seen[k] {
			t.Errorf("kind %s was never fetched", k)
		}
	}
}

func TestEngine_StartStop(t *testing.T) {
	store := &mockStore{}
	src := &mockSource{}
	e := NewEngine(Config{
		ResourceID:   testResource,
		PollInterval: 10 * time.Millisecond,
	}, src, store, defaultRules())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// Second start is a no-op
	if err := e.Start(ctx); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	e.Stop()

	if len(src.calls) == 0 {
		t.Error("poll loop never fetched")
	}
}
