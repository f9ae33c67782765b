package transfer

import (
	"context"
	"fmt"

	"github.com/qbcopy-dev/qbcopy/internal/model"
)

// Result aggregates every record and per-type summary from one run.
type Result struct {
	Records   []model.TransferRecord
	Summaries []model.Summary
}

// Failed returns the records that ended in failure.
func (res *Result) Failed() []model.TransferRecord {
	var failed []model.TransferRecord
	for _, rec := range res.Records {
		if rec.Status == model.StatusFailed {
			failed = append(failed, rec)
		}
	}
	return failed
}

// Run executes the selected entity phases in the fixed dependency order.
// Record-level failures never abort a phase; authentication and fetch
// errors abort the run with the partial result.
func (r *Runner) Run(ctx context.Context, entities []model.EntityType) (*Result, error) {
	res := &Result{}

	for _, t := range entities {
		var (
			records []model.TransferRecord
			err     error
		)
		switch t {
		case model.EntityAccount:
			records, err = runPhase(ctx, r, r.accountsPhase())
		case model.EntityEmployee:
			records, err = runPhase(ctx, r, r.employeesPhase())
		case model.EntityCustomer:
			records, err = runPhase(ctx, r, r.customersPhase())
		case model.EntityClass:
			records, err = runPhase(ctx, r, r.classesPhase())
		case model.EntityVendor:
			records, err = runPhase(ctx, r, r.vendorsPhase())
		case model.EntityJournalEntry:
			records, err = runPhase(ctx, r, r.journalsPhase())
		default:
			err = fmt.Errorf("no transfer module for entity type %q", t)
		}

		res.Records = append(res.Records, records...)
		if err != nil {
			res.Summaries = model.Summarize(res.Records)
			return res, fmt.Errorf("%s phase: %w", t.Slug(), err)
		}
	}

	res.Summaries = model.Summarize(res.Records)
	r.logSummary(res)
	return res, nil
}

func (r *Runner) logSummary(res *Result) {
	for _, s := range res.Summaries {
		r.Log.Info("transfer summary",
			"entity", string(s.EntityType),
			"created", s.Created,
			"already_exists", s.AlreadyExists,
			"failed", s.Failed,
			"total", s.Total())
	}
	for _, rec := range res.Failed() {
		r.Log.Error("record failed",
			"entity", string(rec.EntityType),
			"source_id", rec.SourceID,
			"name", rec.Name,
			"error", rec.Err)
	}
}
