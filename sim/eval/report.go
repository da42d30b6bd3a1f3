package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
)

// Report is the evaluation artifact. Sections are optional: a
// recovery-only run has no comparison tables, a pure regeneration
// check has no posterior.
type Report struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	ConfigID        string    `json:"config_id"`
	ArchitectureID  string    `json:"architecture_id"`
	PosteriorID     string    `json:"posterior_id,omitempty"`
	ComparisonLabel string    `json:"comparison_label,omitempty"`

	Parametric    *ParametricSection   `json:"parametric,omitempty"`
	Aggregates    *AggregateSection    `json:"aggregates,omitempty"`
	Distributions *DistributionSection `json:"distributions,omitempty"`

	// FitResources carries the scored posterior's measured cost, so a
	// report states quality and price in one artifact.
	FitResources *infer.Resources `json:"fit_resources,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

func newReportID() string { return uuid.NewString() }

// Summary renders the report's headline numbers on one line.
func (r *Report) Summary() string {
	var parts []string
	if p := r.Parametric; p != nil {
		parts = append(parts, fmt.Sprintf("parameters %d checked, %.0f%% covered at %.0f%%",
			len(p.Checks), p.Coverage*100, p.Level*100))
	}
	if a := r.Aggregates; a != nil {
		if a.Years == 0 {
			parts = append(parts, "aggregates: no shared years")
		} else {
			worst := 0.0
			for _, d := range a.Distance {
				if d.RelativeError > worst {
					worst = d.RelativeError
				}
			}
			parts = append(parts, fmt.Sprintf("aggregates %d-%d worst series error %.1f%%",
				a.YearLo, a.YearHi, worst*100))
		}
	}
	if d := r.Distributions; d != nil {
		compared, skipped := 0, 0
		for _, s := range append(append([]StratumDistance(nil), d.Income...), d.Pension...) {
			if s.Skipped {
				skipped++
			} else {
				compared++
			}
		}
		parts = append(parts, fmt.Sprintf("distributions %d strata compared, %d skipped", compared, skipped))
	}
	if len(parts) == 0 {
		return "empty report"
	}
	return strings.Join(parts, "; ")
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadReport reads a report written by Save.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}
