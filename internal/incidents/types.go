package incidents

import (
	"time"
)

// Type classifies an incident by the rule that produced it
type Type string

const (
	TypeHighCPU            Type = "High CPU Utilization"
	TypeLowMemory          Type = "Low Available Memory"
	TypeHighNetworkTraffic Type = "High Network Traffic"
)

// Severity ranks an incident
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Incident is one rule firing once during one detection cycle. It is
// immutable after construction and persisted by append only. Timestamp is
// the time of evaluation, not of the underlying breach. Details is a fixed
// human-readable format that downstream consumers display verbatim.
type Incident struct {
	ID         string    `json:"id"`
	Type       Type      `json:"incident_type"`
	ResourceID string    `json:"resource_id"`
	Timestamp  time.Time `json:"timestamp"`
	Details    string    `json:"details"`
	Severity   Severity  `json:"severity"`
}

// Summary aggregates stored incidents for the stats endpoint.
type Summary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
}
