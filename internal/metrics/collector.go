package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

// Metric names recorded by Collector
const (
	MetricAccepted    = "suggestions_accepted"
	MetricRejected    = "suggestions_rejected"
	MetricAttempts    = "suggest_attempts"
	MetricMinDistance = "min_distance"
	MetricBreaches    = "diversity_breaches"
	MetricBatchMs     = "batch_duration_ms"
)

// Point is one recorded value
type Point struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Aggregation summarizes the values of one series
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// Collector keeps every event in memory. It backs run summaries and tests.
type Collector struct {
	mu sync.RWMutex

	// metric name -> label key -> points
	series map[string]map[string][]Point
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{series: make(map[string]map[string][]Point)}
}

// Record stores a value
func (c *Collector) Record(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.series[name] == nil {
		c.series[name] = make(map[string][]Point)
	}
	c.series[name][key] = append(c.series[name][key], Point{
		Timestamp: time.Now(),
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	})
}

func (c *Collector) SuggestionAccepted(method models.Method, attempts int) {
	labels := methodLabels(method)
	c.Record(MetricAccepted, 1, labels)
	c.Record(MetricAttempts, float64(attempts), labels)
}

func (c *Collector) SuggestionRejected(method models.Method) {
	c.Record(MetricRejected, 1, methodLabels(method))
}

func (c *Collector) DiversityChecked(minDistance float64, breached bool) {
	c.Record(MetricMinDistance, minDistance, nil)
	if breached {
		c.Record(MetricBreaches, 1, nil)
	}
}

func (c *Collector) BatchCompleted(elapsed time.Duration) {
	c.Record(MetricBatchMs, float64(elapsed.Microseconds())/1000, nil)
}

// Count returns the number of points recorded for name and labels
func (c *Collector) Count(name string, labels map[string]string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series[name][labelKey(labels)])
}

// Points returns a copy of the series for name and labels
func (c *Collector) Points(name string, labels map[string]string) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.series[name][labelKey(labels)]
	out := make([]Point, len(points))
	for i, p := range points {
		p.Labels = copyLabels(p.Labels)
		out[i] = p
	}
	return out
}

// Aggregate summarizes the series for name and labels; nil when empty
func (c *Collector) Aggregate(name string, labels map[string]string) *Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calculateAggregation(c.series[name][labelKey(labels)])
}

// Summary aggregates every series over all label sets
func (c *Collector) Summary() map[string]*Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*Aggregation, len(c.series))
	for name, byLabels := range c.series {
		var all []Point
		for _, points := range byLabels {
			all = append(all, points...)
		}
		if agg := calculateAggregation(all); agg != nil {
			out[name] = agg
		}
	}
	return out
}

// Names returns the recorded metric names, sorted
func (c *Collector) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops every recorded point
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = make(map[string]map[string][]Point)
}

func methodLabels(method models.Method) map[string]string {
	return map[string]string{"method": string(method)}
}

// labelKey creates a key from labels for map lookup
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := ""
	for _, k := range keys {
		key += k + "=" + labels[k] + ","
	}
	return key
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func calculateAggregation(points []Point) *Aggregation {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return &Aggregation{
		Count: int64(len(values)),
		Sum:   sum,
		Min:   values[0],
		Max:   values[len(values)-1],
		Mean:  sum / float64(len(values)),
		P50:   percentile(values, 0.50),
		P95:   percentile(values, 0.95),
	}
}

// percentile interpolates linearly within a sorted slice
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
