package metrics

import (
	"sync"
	"time"

	"github.com/jackzampolin/isbnscan/internal/discovery"
)

// Recorder collects metrics in memory. It is safe for concurrent use and
// implements discovery.Observer.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record stores a single metric.
func (r *Recorder) Record(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// ObserveAttempt records one tactic attempt.
func (r *Recorder) ObserveAttempt(tactic string, outcome discovery.OutcomeKind, depth int, elapsed time.Duration) {
	r.Record(Metric{
		Tactic:  tactic,
		Outcome: outcome.String(),
		Depth:   depth,
		Elapsed: elapsed,
	})
}

// List returns a copy of the recorded metrics.
func (r *Recorder) List() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = nil
}

var _ discovery.Observer = (*Recorder)(nil)
