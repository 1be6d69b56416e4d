package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nimbusops/incidentwatch/internal/metrics"
)

// SimulatorConfig holds the baselines the simulator samples around
type SimulatorConfig struct {
	CPUPercent    float64
	MemoryBytes   float64
	NetworkInBps  float64
	NetworkOutBps float64
}

// Simulator is a metrics source that generates synthetic per-minute samples
// around configured baselines. It lets the service run end to end without
// cloud credentials.
type Simulator struct {
	config SimulatorConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator. Zero baselines get sensible defaults.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.CPUPercent == 0 {
		cfg.CPUPercent = 35.0
	}
	if cfg.MemoryBytes == 0 {
		cfg.MemoryBytes = 4 * 1024 * 1024 * 1024
	}
	if cfg.NetworkInBps == 0 {
		cfg.NetworkInBps = 20 * 1024
	}
	if cfg.NetworkOutBps == 0 {
		cfg.NetworkOutBps = 15 * 1024
	}
	return &Simulator{
		config: cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch returns synthetic series for the requested kind over the trailing
// window.
func (s *Simulator) Fetch(ctx context.Context, resourceID string, windowMinutes int, kind metrics.Kind) (*metrics.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &metrics.FetchError{Kind: kind, ResourceID: resourceID, Err: err}
	}

	now := time.Now().UTC()
	snap := &metrics.Snapshot{Kind: kind}

	switch kind {
	case metrics.KindCPU:
		snap.Series = []metrics.Series{
			s.series(metrics.SeriesCPUPercent, "Percent", resourceID, s.config.CPUPercent, windowMinutes, now),
		}
	case metrics.KindMemory:
		snap.Series = []metrics.Series{
			s.series(metrics.SeriesAvailableMemory, "Bytes", resourceID, s.config.MemoryBytes, windowMinutes, now),
		}
	case metrics.KindNetwork:
		snap.Series = []metrics.Series{
			s.series(metrics.SeriesNetworkIn, "BytesPerSecond", resourceID, s.config.NetworkInBps, windowMinutes, now),
			s.series(metrics.SeriesNetworkOut, "BytesPerSecond", resourceID, s.config.NetworkOutBps, windowMinutes, now),
		}
	}

	return snap, nil
}

// series generates one point per minute, oldest first, jittered +/-10%
// around the baseline.
func (s *Simulator) series(name, unit, resourceID string, baseline float64, windowMinutes int, now time.Time) metrics.Series {
	points := make([]metrics.Point, 0, windowMinutes)
	for i := windowMinutes - 1; i >= 0; i-- {
		jitter := 1 + (s.randFloat()-0.5)*0.2
		points = append(points, metrics.Point{
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Average:   metrics.Float(baseline * jitter),
		})
	}
	return metrics.Series{
		Name:       name,
		Unit:       unit,
		ResourceID: resourceID,
		Points:     points,
	}
}

func (s *Simulator) randFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
