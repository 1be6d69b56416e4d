package detection

import (
	"fmt"
	"time"

	"github.com/nimbusops/incidentwatch/internal/incidents"
	"github.com/nimbusops/incidentwatch/internal/metrics"
)

const bytesPerGB = 1024 * 1024 * 1024

// Rule evaluates one metric kind's snapshot against a threshold. Rules are
// pure: insufficient or malformed data always means no incident, never an
// error.
type Rule interface {
	Name() string
	Kind() metrics.Kind
	Evaluate(snap *metrics.Snapshot, now time.Time) *incidents.Incident
}

// CPURule fires when the recent average CPU percentage reaches the threshold
type CPURule struct {
	thresholdPercent float64
	windowMinutes    int
}

// NewCPURule creates a CPU utilization rule
func NewCPURule(thresholdPercent float64, windowMinutes int) *CPURule {
	return &CPURule{thresholdPercent: thresholdPercent, windowMinutes: windowMinutes}
}

func (r *CPURule) Name() string       { return "cpu" }
func (r *CPURule) Kind() metrics.Kind { return metrics.KindCPU }

func (r *CPURule) Evaluate(snap *metrics.Snapshot, now time.Time) *incidents.Incident {
	series := snap.First()
	if series == nil {
		return nil
	}

	avg, ok := metrics.RecentAverage(series.Points, r.windowMinutes, now)
	if !ok || avg < r.thresholdPercent {
		return nil
	}

	return &incidents.Incident{
		Type:       incidents.TypeHighCPU,
		ResourceID: series.ResourceID,
		Timestamp:  now.UTC(),
		Details: fmt.Sprintf("Average CPU usage (%.2f%%) exceeded threshold (%.1f%%) for the last %d minutes.",
			avg, r.thresholdPercent, r.windowMinutes),
		Severity: incidents.SeverityHigh,
	}
}

// MemoryRule fires when the recent average available memory drops to or
// below the threshold. The comparator is inverted relative to the other
// rules: a low value is the incident condition.
type MemoryRule struct {
	thresholdGB   float64
	windowMinutes int
}

// NewMemoryRule creates a low-available-memory rule
func NewMemoryRule(thresholdGB float64, windowMinutes int) *MemoryRule {
	return &MemoryRule{thresholdGB: thresholdGB, windowMinutes: windowMinutes}
}

func (r *MemoryRule) Name() string       { return "memory" }
func (r *MemoryRule) Kind() metrics.Kind { return metrics.KindMemory }

func (r *MemoryRule) Evaluate(snap *metrics.Snapshot, now time.Time) *incidents.Incident {
	series := snap.First()
	if series == nil {
		return nil
	}

	avgBytes, ok := metrics.RecentAverage(series.Points, r.windowMinutes, now)
	if !ok {
		return nil
	}

	avgGB := avgBytes / bytesPerGB
	if avgGB > r.thresholdGB {
		return nil
	}

	return &incidents.Incident{
		Type:       incidents.TypeLowMemory,
		ResourceID: series.ResourceID,
		Timestamp:  now.UTC(),
		Details: fmt.Sprintf("Average available memory (%.2f GB) fell below threshold (%.1f GB) for the last %d minutes.",
			avgGB, r.thresholdGB, r.windowMinutes),
		Severity: incidents.SeverityHigh,
	}
}

// NetworkRule fires when combined in+out traffic reaches the threshold.
// It needs both named direction series; missing direction data is not
// itself an anomaly, so an incomplete snapshot yields no incident.
type NetworkRule struct {
	thresholdKBps float64
	windowMinutes int
}

// NewNetworkRule creates a high-network-traffic rule
func NewNetworkRule(thresholdKBps float64, windowMinutes int) *NetworkRule {
	return &NetworkRule{thresholdKBps: thresholdKBps, windowMinutes: windowMinutes}
}

func (r *NetworkRule) Name() string       { return "network" }
func (r *NetworkRule) Kind() metrics.Kind { return metrics.KindNetwork }

func (r *NetworkRule) Evaluate(snap *metrics.Snapshot, now time.Time) *incidents.Incident {
	in := snap.SeriesNamed(metrics.SeriesNetworkIn)
	out := snap.SeriesNamed(metrics.SeriesNetworkOut)
	if in == nil || out == nil {
		return nil
	}

	avgInBytes, okIn := metrics.RecentAverage(in.Points, r.windowMinutes, now)
	avgOutBytes, okOut := metrics.RecentAverage(out.Points, r.windowMinutes, now)
	if !okIn || !okOut {
		return nil
	}

	inKBps := avgInBytes / 1024
	outKBps := avgOutBytes / 1024
	totalKBps := inKBps + outKBps

	if totalKBps < r.thresholdKBps {
		return nil
	}

	return &incidents.Incident{
		Type:       incidents.TypeHighNetworkTraffic,
		ResourceID: in.ResourceID,
		Timestamp:  now.UTC(),
		Details: fmt.Sprintf("Average total network traffic (%.2f KBps) exceeded threshold (%.1f KBps) for the last %d minutes. (In: %.2f KBps, Out: %.2f KBps)",
			totalKBps, r.thresholdKBps, r.windowMinutes, inKBps, outKBps),
		Severity: incidents.SeverityMedium,
	}
}
