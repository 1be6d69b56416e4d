package metrics

import (
	"time"
)

// RecentAverage computes the arithmetic mean of the Average values of the
// points that fall within the trailing window of windowMinutes before now.
// Points with no Average value are skipped. The second return value is false
// when no point qualifies; callers must treat that as insufficient data, not
// as zero usage.
func RecentAverage(points []Point, windowMinutes int, now time.Time) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}

	window := time.Duration(windowMinutes) * time.Minute

	var sum float64
	var n int
	for _, p := range points {
		if p.Average == nil {
			continue
		}
		if now.Sub(p.Timestamp) > window {
			continue
		}
		sum += *p.Average
		n++
	}

	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
