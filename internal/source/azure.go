package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nimbusops/incidentwatch/internal/metrics"
)

const (
	azureManagementURL = "https://management.azure.com"
	azureAPIVersion    = "2018-01-01"
)

// AzureMonitorConfig identifies the monitored VM and carries the bearer
// token used for the metrics API. Token acquisition/refresh is outside this
// adapter's scope.
type AzureMonitorConfig struct {
	SubscriptionID string
	ResourceGroup  string
	VMName         string
	Token          string
}

// AzureMonitor fetches VM metrics from the Azure Monitor REST API and
// normalizes them into the internal series model. All vendor quirks stop at
// this boundary: in particular, metric names that arrive either as a plain
// JSON string or as an object with a nested value are flattened to a single
// string before the core ever sees them.
type AzureMonitor struct {
	config  AzureMonitorConfig
	client  *http.Client
	baseURL string
}

// NewAzureMonitor creates an Azure Monitor metrics source.
func NewAzureMonitor(cfg AzureMonitorConfig) *AzureMonitor {
	return &AzureMonitor{
		config:  cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: azureManagementURL,
	}
}

// SetBaseURL overrides the management endpoint (used in tests).
func (a *AzureMonitor) SetBaseURL(u string) {
	a.baseURL = u
}

// ResourceURI builds the full Azure resource ID of the configured VM.
func (a *AzureMonitor) ResourceURI() string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s",
		a.config.SubscriptionID, a.config.ResourceGroup, a.config.VMName)
}

func metricNamesFor(kind metrics.Kind) string {
	switch kind {
	case metrics.KindCPU:
		return metrics.SeriesCPUPercent
	case metrics.KindMemory:
		return metrics.SeriesAvailableMemory
	case metrics.KindNetwork:
		return metrics.SeriesNetworkIn + "," + metrics.SeriesNetworkOut
	}
	return ""
}

// Fetch queries the metrics API for the requested kind over the trailing
// window, at one-minute granularity with average aggregation.
func (a *AzureMonitor) Fetch(ctx context.Context, resourceID string, windowMinutes int, kind metrics.Kind) (*metrics.Snapshot, error) {
	names := metricNamesFor(kind)
	if names == "" {
		return nil, &metrics.FetchError{Kind: kind, ResourceID: resourceID, Err: fmt.Errorf("unknown metric kind %q", kind)}
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(windowMinutes) * time.Minute)

	resourceURI := resourceID
	if resourceURI == "" {
		resourceURI = a.ResourceURI()
	}

	q := url.Values{}
	q.Set("api-version", azureAPIVersion)
	q.Set("metricnames", names)
	q.Set("timespan", start.Format(time.RFC3339)+"/"+end.Format(time.RFC3339))
	q.Set("interval", "PT1M")
	q.Set("aggregation", "Average")

	endpoint := a.baseURL + resourceURI + "/providers/microsoft.insights/metrics?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &metrics.FetchError{Kind: kind, ResourceID: resourceURI, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+a.config.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &metrics.FetchError{Kind: kind, ResourceID: resourceURI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &metrics.FetchError{
			Kind:       kind,
			ResourceID: resourceURI,
			Err:        fmt.Errorf("metrics API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var payload azureMetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &metrics.FetchError{Kind: kind, ResourceID: resourceURI, Err: fmt.Errorf("decode response: %w", err)}
	}

	return normalizeAzureResponse(kind, resourceURI, &payload), nil
}

// Wire types for the Azure Monitor metrics response.

type azureMetricsResponse struct {
	Value []azureMetric `json:"value"`
}

type azureMetric struct {
	ID         string            `json:"id"`
	Name       azureMetricName   `json:"name"`
	Unit       string            `json:"unit"`
	Timeseries []azureTimeseries `json:"timeseries"`
}

// azureMetricName accepts either a bare string or the documented
// {"value": ..., "localizedValue": ...} object.
type azureMetricName struct {
	Value string
}

func (n *azureMetricName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Value = s
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("metric name is neither string nor object: %w", err)
	}
	n.Value = obj.Value
	return nil
}

type azureTimeseries struct {
	Data []azureDataPoint `json:"data"`
}

type azureDataPoint struct {
	TimeStamp time.Time `json:"timeStamp"`
	Average   *float64  `json:"average"`
	Count     *float64  `json:"count"`
	Minimum   *float64  `json:"minimum"`
	Maximum   *float64  `json:"maximum"`
	Total     *float64  `json:"total"`
}

func normalizeAzureResponse(kind metrics.Kind, resourceURI string, payload *azureMetricsResponse) *metrics.Snapshot {
	snap := &metrics.Snapshot{Kind: kind}

	for _, m := range payload.Value {
		series := metrics.Series{
			Name:       m.Name.Value,
			Unit:       m.Unit,
			ResourceID: resourceURI,
		}
		if len(m.Timeseries) > 0 {
			for _, dp := range m.Timeseries[0].Data {
				series.Points = append(series.Points, metrics.Point{
					Timestamp: dp.TimeStamp,
					Average:   dp.Average,
					Count:     dp.Count,
					Minimum:   dp.Minimum,
					Maximum:   dp.Maximum,
					Total:     dp.Total,
				})
			}
		}
		snap.Series = append(snap.Series, series)
	}

	return snap
}
