// Package metrics records per-tactic timing and outcomes of discovery runs.
package metrics

import "time"

// Metric is one recorded tactic attempt.
type Metric struct {
	Tactic  string        `json:"tactic" yaml:"tactic"`
	Outcome string        `json:"outcome" yaml:"outcome"` // continue, found or halt
	Depth   int           `json:"depth" yaml:"depth"`     // archive nesting, 0 for input files
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Outcome names as reported by discovery.OutcomeKind.String.
const (
	OutcomeContinue = "continue"
	OutcomeFound    = "found"
	OutcomeHalt     = "halt"
)
