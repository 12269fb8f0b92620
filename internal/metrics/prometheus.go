package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

// Prometheus exports orchestration events as Prometheus collectors
type Prometheus struct {
	Suggestions     *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	Attempts        *prometheus.HistogramVec
	DiversityBreach prometheus.Counter
	MinDistance     prometheus.Gauge
	BatchDuration   prometheus.Histogram
}

// NewPrometheus registers the advisor collectors with reg
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		Suggestions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "expadvisor_suggestions_total",
			Help: "Accepted suggestions by method",
		}, []string{"method"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "expadvisor_rejections_total",
			Help: "Infeasible suggestions penalized by method",
		}, []string{"method"}),
		Attempts: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expadvisor_suggest_attempts",
			Help:    "Suggest calls needed per accepted suggestion",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		}, []string{"method"}),
		DiversityBreach: f.NewCounter(prometheus.CounterOpts{
			Name: "expadvisor_diversity_breaches_total",
			Help: "Batches whose minimum nearest-neighbour distance fell below the threshold",
		}),
		MinDistance: f.NewGauge(prometheus.GaugeOpts{
			Name: "expadvisor_batch_min_distance",
			Help: "Minimum nearest-neighbour distance of the last batch in normalized units",
		}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "expadvisor_batch_duration_seconds",
			Help:    "Time to assemble one batch",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (p *Prometheus) SuggestionAccepted(method models.Method, attempts int) {
	p.Suggestions.WithLabelValues(string(method)).Inc()
	p.Attempts.WithLabelValues(string(method)).Observe(float64(attempts))
}

func (p *Prometheus) SuggestionRejected(method models.Method) {
	p.Rejections.WithLabelValues(string(method)).Inc()
}

func (p *Prometheus) DiversityChecked(minDistance float64, breached bool) {
	p.MinDistance.Set(minDistance)
	if breached {
		p.DiversityBreach.Inc()
	}
}

func (p *Prometheus) BatchCompleted(elapsed time.Duration) {
	p.BatchDuration.Observe(elapsed.Seconds())
}
