package advisord

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perotf-lab/expadvisor/internal/advisor"
	"github.com/perotf-lab/expadvisor/internal/metrics"
	"github.com/perotf-lab/expadvisor/internal/store"
	"github.com/perotf-lab/expadvisor/internal/surrogate"
	"github.com/perotf-lab/expadvisor/internal/surrogate/surrogatetest"
	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

var sortedKeys = []string{"dropping_speed", "dropping_time", "rotation_time_2"}

// scriptedFactory returns fresh feasible scripted optimizers for every request
func scriptedFactory(method models.Method, names []string) (surrogate.Optimizer, error) {
	if method == models.MethodExploitation {
		return surrogatetest.New(sortedKeys, []float64{0.5, 0, 0.5}, []float64{0.2, 0.1, 0.9}), nil
	}
	return surrogatetest.New(sortedKeys, []float64{0.9, 0.2, 0.8}, []float64{0.1, 0.3, 0.6}), nil
}

// infeasibleFactory always suggests dropping_time 40 with rotation_time_2 11
func infeasibleFactory(method models.Method, names []string) (surrogate.Optimizer, error) {
	s := surrogatetest.New(sortedKeys, []float64{0.5, 1, 0})
	s.RepeatLast = true
	return s, nil
}

type fixture struct {
	service *Service
	ledger  store.Store
}

func newFixture(t *testing.T, factory advisor.Factory, opts ...advisor.Option) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Batch.MaxAttempts = 3
	ledger := store.NewMemoryStore()
	opts = append([]advisor.Option{advisor.WithFactory(factory), advisor.WithStore(ledger)}, opts...)
	a, err := advisor.Build(cfg, opts...)
	require.NoError(t, err)
	return &fixture{service: NewService(a, nil), ledger: ledger}
}

func withRecorder(r metrics.Recorder) advisor.Option {
	return advisor.WithRecorder(r)
}

func observationsJSON() []map[string]any {
	return []map[string]any{
		{"params": map[string]any{"dropping_time": 25.0, "rotation_time_2": 20.0, "dropping_speed": 100.0}, "target": 0.09},
		{"params": map[string]any{"dropping_time": 30.0, "rotation_time_2": 30.0, "dropping_speed": 500.0}, "target": 0.11},
	}
}
