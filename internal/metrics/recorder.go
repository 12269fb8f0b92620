// Package metrics records what the advisor did while assembling batches.
package metrics

import (
	"time"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

// Recorder receives orchestration events
type Recorder interface {
	// SuggestionAccepted is called once per accepted suggestion with the number of suggest calls it took
	SuggestionAccepted(method models.Method, attempts int)
	// SuggestionRejected is called for every infeasible suggestion that was penalized
	SuggestionRejected(method models.Method)
	// DiversityChecked is called once per batch
	DiversityChecked(minDistance float64, breached bool)
	// BatchCompleted is called when a batch has been assembled
	BatchCompleted(elapsed time.Duration)
}

// Nop discards every event
type Nop struct{}

func (Nop) SuggestionAccepted(models.Method, int) {}
func (Nop) SuggestionRejected(models.Method) {}
func (Nop) DiversityChecked(float64, bool) {}
func (Nop) BatchCompleted(time.Duration) {}

// Multi fans events out to several recorders
type Multi []Recorder

func (m Multi) SuggestionAccepted(method models.Method, attempts int) {
	for _, r := range m {
		r.SuggestionAccepted(method, attempts)
	}
}

func (m Multi) SuggestionRejected(method models.Method) {
	for _, r := range m {
		r.SuggestionRejected(method)
	}
}

func (m Multi) DiversityChecked(minDistance float64, breached bool) {
	for _, r := range m {
		r.DiversityChecked(minDistance, breached)
	}
}

func (m Multi) BatchCompleted(elapsed time.Duration) {
	for _, r := range m {
		r.BatchCompleted(elapsed)
	}
}
