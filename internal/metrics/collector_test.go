package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatalf("expected non-nil collector")
	}
	if len(c.Names()) != 0 {
		t.Fatalf("expected no metrics, got %v", c.Names())
	}
}

func TestCollectorRecordAndPoints(t *testing.T) {
	c := NewCollector()
	c.Record("test_metric", 10.0, nil)
	c.Record("test_metric", 20.0, nil)
	c.Record("test_metric", 30.0, nil)

	points := c.Points("test_metric", nil)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i, want := range []float64{10, 20, 30} {
		if points[i].Value != want {
			t.Errorf("point %d: expected %f, got %f", i, want, points[i].Value)
		}
	}
}

func TestCollectorLabelsAreIndependent(t *testing.T) {
	c := NewCollector()
	c.Record("m", 1, map[string]string{"method": "Exploitation"})
	c.Record("m", 2, map[string]string{"method": "Exploration"})
	c.Record("m", 3, map[string]string{"method": "Exploration"})

	if got := c.Count("m", map[string]string{"method": "Exploitation"}); got != 1 {
		t.Errorf("expected 1 exploitation point, got %d", got)
	}
	if got := c.Count("m", map[string]string{"method": "Exploration"}); got != 2 {
		t.Errorf("expected 2 exploration points, got %d", got)
	}
	if got := c.Count("m", nil); got != 0 {
		t.Errorf("expected 0 unlabelled points, got %d", got)
	}
}

func TestCollectorPointsAreCopies(t *testing.T) {
	c := NewCollector()
	labels := map[string]string{"method": "Exploitation"}
	c.Record("m", 1, labels)
	labels["method"] = "changed"

	points := c.Points("m", map[string]string{"method": "Exploitation"})
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	points[0].Labels["method"] = "mutated"
	if c.Points("m", map[string]string{"method": "Exploitation"})[0].Labels["method"] != "Exploitation" {
		t.Error("collector labels were mutated through a returned point")
	}
}

func TestCollectorAggregate(t *testing.T) {
	c := NewCollector()
	for _, v := range []float64{5, 1, 3, 2, 4} {
		c.Record("attempts", v, nil)
	}

	agg := c.Aggregate("attempts", nil)
	if agg == nil {
		t.Fatal("expected aggregation")
	}
	if agg.Count != 5 || agg.Sum != 15 || agg.Min != 1 || agg.Max != 5 || agg.Mean != 3 {
		t.Errorf("unexpected aggregation %+v", agg)
	}
	if agg.P50 != 3 {
		t.Errorf("expected p50 3, got %f", agg.P50)
	}
	if math.Abs(agg.P95-4.8) > 1e-9 {
		t.Errorf("expected p95 4.8, got %f", agg.P95)
	}

	if c.Aggregate("missing", nil) != nil {
		t.Error("expected nil aggregation for missing metric")
	}
}

func TestCollectorRecorderEvents(t *testing.T) {
	c := NewCollector()
	var r Recorder = c

	r.SuggestionRejected(models.MethodExploitation)
	r.SuggestionRejected(models.MethodExploitation)
	r.SuggestionAccepted(models.MethodExploitation, 3)
	r.SuggestionAccepted(models.MethodExploration, 1)
	r.DiversityChecked(0.005, true)
	r.BatchCompleted(1500 * time.Microsecond)

	exploit := methodLabels(models.MethodExploitation)
	if got := c.Count(MetricRejected, exploit); got != 2 {
		t.Errorf("expected 2 rejections, got %d", got)
	}
	if got := c.Points(MetricAttempts, exploit)[0].Value; got != 3 {
		t.Errorf("expected 3 attempts, got %f", got)
	}
	if got := c.Count(MetricBreaches, nil); got != 1 {
		t.Errorf("expected 1 breach, got %d", got)
	}
	if got := c.Points(MetricBatchMs, nil)[0].Value; got != 1.5 {
		t.Errorf("expected 1.5ms, got %f", got)
	}

	summary := c.Summary()
	if summary[MetricAccepted].Count != 2 {
		t.Errorf("expected 2 accepted across methods, got %d", summary[MetricAccepted].Count)
	}

	c.DiversityChecked(0.2, false)
	if got := c.Count(MetricBreaches, nil); got != 1 {
		t.Errorf("a passing check must not count as a breach, got %d", got)
	}
}

func TestCollectorClear(t *testing.T) {
	c := NewCollector()
	c.Record("m", 1, nil)
	c.Clear()
	if len(c.Names()) != 0 {
		t.Errorf("expected no metrics after clear, got %v", c.Names())
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	m := Multi{a, b, Nop{}}

	m.SuggestionAccepted(models.MethodExploration, 2)
	m.SuggestionRejected(models.MethodExploration)
	m.DiversityChecked(0.3, false)
	m.BatchCompleted(time.Millisecond)

	for i, c := range []*Collector{a, b} {
		if got := len(c.Names()); got != 5 {
			t.Errorf("collector %d: expected 5 metrics, got %d (%v)", i, got, c.Names())
		}
	}
}

func TestLabelKey(t *testing.T) {
	if labelKey(nil) != "" {
		t.Error("expected empty key for nil labels")
	}
	a := labelKey(map[string]string{"b": "2", "a": "1"})
	b := labelKey(map[string]string{"a": "1", "b": "2"})
	if a != b || a != "a=1,b=2," {
		t.Errorf("expected order independent key, got %q and %q", a, b)
	}
}
