package metrics

import (
	"fmt"
	"io"
	"sort"
)

// Stats summarizes the attempts of one tactic.
type Stats struct {
	Count     int `json:"count" yaml:"count"`
	Found     int `json:"found" yaml:"found"`
	Halted    int `json:"halted" yaml:"halted"`
	Continued int `json:"continued" yaml:"continued"`
	Nested    int `json:"nested" yaml:"nested"` // attempts on archive members

	// Latency (seconds)
	LatencyTotal float64 `json:"latency_total" yaml:"latency_total"`
	LatencyAvg   float64 `json:"latency_avg" yaml:"latency_avg"`
	LatencyMin   float64 `json:"latency_min" yaml:"latency_min"`
	LatencyMax   float64 `json:"latency_max" yaml:"latency_max"`
	LatencyP50   float64 `json:"latency_p50" yaml:"latency_p50"`
	LatencyP95   float64 `json:"latency_p95" yaml:"latency_p95"`
}

// Report is the per-tactic breakdown of a run.
type Report map[string]*Stats

// Summarize groups metrics by tactic.
func Summarize(metrics []Metric) Report {
	byTactic := make(map[string][]Metric)
	for _, m := range metrics {
		byTactic[m.Tactic] = append(byTactic[m.Tactic], m)
	}

	report := make(Report, len(byTactic))
	for tactic, ms := range byTactic {
		report[tactic] = summarize(ms)
	}
	return report
}

func summarize(metrics []Metric) *Stats {
	stats := &Stats{Count: len(metrics)}
	if len(metrics) == 0 {
		return stats
	}

	latencies := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		switch m.Outcome {
		case OutcomeFound:
			stats.Found++
		case OutcomeHalt:
			stats.Halted++
		default:
			stats.Continued++
		}
		if m.Depth > 0 {
			stats.Nested++
		}
		latencies = append(latencies, m.Elapsed.Seconds())
	}

	sort.Float64s(latencies)
	for _, l := range latencies {
		stats.LatencyTotal += l
	}
	stats.LatencyAvg = stats.LatencyTotal / float64(len(latencies))
	stats.LatencyMin = latencies[0]
	stats.LatencyMax = latencies[len(latencies)-1]
	stats.LatencyP50 = percentile(latencies, 50)
	stats.LatencyP95 = percentile(latencies, 95)

	return stats
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Calculate the index
	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// WriteTable prints the report as an aligned table, tactics in the given
// order first and any others after them.
func (r Report) WriteTable(w io.Writer, order []string) error {
	names := make([]string, 0, len(r))
	seen := make(map[string]bool)
	for _, n := range order {
		if _, ok := r[n]; ok && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	var rest []string
	for n := range r {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	if _, err := fmt.Fprintf(w, "%-10s %6s %6s %6s %9s %9s %9s\n",
		"TACTIC", "RUNS", "FOUND", "HALT", "TOTAL", "P50", "P95"); err != nil {
		return err
	}
	for _, n := range names {
		s := r[n]
		if _, err := fmt.Fprintf(w, "%-10s %6d %6d %6d %8.2fs %8.3fs %8.3fs\n",
			n, s.Count, s.Found, s.Halted, s.LatencyTotal, s.LatencyP50, s.LatencyP95); err != nil {
			return err
		}
	}
	return nil
}
