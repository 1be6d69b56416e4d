package metrics

import (
	"time"
)

// Kind identifies a category of resource telemetry
type Kind string

const (
	KindCPU     Kind = "cpu"
	KindMemory  Kind = "memory"
	KindNetwork Kind = "network"
)

// Kinds lists all metric kinds in evaluation order
var Kinds = []Kind{KindCPU, KindMemory, KindNetwork}

// Well-known series names as reported by the monitor backend
const (
	SeriesCPUPercent      = "Percentage CPU"
	SeriesAvailableMemory = "Available Memory Bytes"
	SeriesNetworkIn       = "Network In Total"
	SeriesNetworkOut      = "Network Out Total"
)

// Point is a single normalized sample in a time series. Timestamp is always
// set; the aggregation fields are independently optional because upstream
// aggregation windows can be sparse.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Average   *float64  `json:"average,omitempty"`
	Count     *float64  `json:"count,omitempty"`
	Minimum   *float64  `json:"minimum,omitempty"`
	Maximum   *float64  `json:"maximum,omitempty"`
	Total     *float64  `json:"total,omitempty"`
}

// Series is a named, unit-tagged sequence of points measured against one
// resource. Points are in chronological order but not guaranteed gap-free.
type Series struct {
	Name       string  `json:"name"`
	Unit       string  `json:"unit,omitempty"`
	ResourceID string  `json:"resource_id"`
	Points     []Point `json:"points"`
}

// Snapshot is one fetch call's worth of series for one metric kind.
type Snapshot struct {
	Kind   Kind     `json:"kind"`
	Series []Series `json:"series"`
}

// First returns the first series in the snapshot, or nil if there is none.
func (s *Snapshot) First() *Series {
	if s == nil || len(s.Series) == 0 {
		return nil
	}
	return &s.Series[0]
}

// SeriesNamed returns the series with the given name, or nil if absent.
func (s *Snapshot) SeriesNamed(name string) *Series {
	if s == nil {
		return nil
	}
	for i := range s.Series {
		if s.Series[i].Name == name {
			return &s.Series[i]
		}
	}
	return nil
}

// Float returns a pointer to v, for building optional point fields.
func Float(v float64) *float64 {
	return &v
}
