package rls

import (
	"errors"
	"fmt"
)

// Outcome is the result of applying a policy to one table.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// TableResult records what happened to a single table.
type TableResult struct {
	Table   string
	Outcome Outcome
	Err     error
}

// Report aggregates a policy application run.
type Report struct {
	Results []TableResult
}

func (r *Report) add(table string, outcome Outcome, err error) {
	r.Results = append(r.Results, TableResult{Table: table, Outcome: outcome, Err: err})
}

func (r Report) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Applied returns the number of tables whose policy was (re)created.
func (r Report) Applied() int { return r.count(OutcomeApplied) }

// Unchanged returns the number of tables that already had the identical policy.
func (r Report) Unchanged() int { return r.count(OutcomeUnchanged) }

// Skipped returns the number of tables that are missing or not tenant-scoped.
func (r Report) Skipped() int { return r.count(OutcomeSkipped) }

// FailureCount returns the number of tables that failed.
func (r Report) FailureCount() int { return r.count(OutcomeFailed) }

// Err joins the errors of all failed tables, nil when none failed.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			errs = append(errs, fmt.Errorf("%s: %w", res.Table, res.Err))
		}
	}
	return errors.Join(errs...)
}

// String summarises the run.
func (r Report) String() string {
	return fmt.Sprintf("applied=%d unchanged=%d skipped=%d failed=%d",
		r.Applied(), r.Unchanged(), r.Skipped(), r.FailureCount())
}
