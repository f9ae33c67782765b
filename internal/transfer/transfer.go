// Package transfer copies entities from a source QuickBooks company to a
// target company, one entity type per phase, recording ID mappings so later
// phases can resolve references.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/qbcopy-dev/qbcopy/internal/mapping"
	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
	"github.com/qbcopy-dev/qbcopy/internal/retry"
)

// Runner holds the per-run state shared by every transfer phase.
type Runner struct {
	Source *qbo.Client
	Target *qbo.Client
	Store  *mapping.Store
	Policy retry.Policy
	Log    *slog.Logger
	DryRun bool
}

// NewRunner creates a Runner with the default retry policy.
func NewRunner(source, target *qbo.Client, store *mapping.Store) *Runner {
	policy := retry.DefaultPolicy()
	policy.Retryable = qbo.IsRetryable
	return &Runner{
		Source: source,
		Target: target,
		Store:  store,
		Policy: policy,
		Log:    slog.Default(),
	}
}

// missingRefError marks a record that references an entity with no mapping.
type missingRefError struct {
	entity   model.EntityType
	sourceID string
}

func (e *missingRefError) Error() string {
	return fmt.Sprintf("missing %s reference %s", strings.ToLower(string(e.entity)), e.sourceID)
}

// phase describes how one entity type is transferred. The generic driver
// below implements the shared fetch/match/create discipline.
type phase[S any] struct {
	entity model.EntityType

	// fetchSource returns the entities to copy, already filtered and
	// ordered (parents before children where it matters).
	fetchSource func(ctx context.Context) ([]S, error)

	// fetchExisting returns the target company's entities keyed by their
	// natural identifying name, mapped to their target IDs.
	fetchExisting func(ctx context.Context) (map[string]string, error)

	key      func(S) string
	sourceID func(S) string

	// build translates a source entity into a create payload, resolving
	// referenced IDs through the mapping store. It returns a
	// missingRefError when a required reference has no mapping.
	build func(S) (S, error)

	create func(ctx context.Context, payload S) (string, error)
}

// runPhase drives one entity type: fetch both sides, then transfer each
// source entity in order, continuing past individual failures. The returned
// error is non-nil only for run-fatal conditions (authentication, fetch
// failure).
func runPhase[S any](ctx context.Context, r *Runner, p phase[S]) ([]model.TransferRecord, error) {
	log := r.Log.With("entity", string(p.entity))
	log.Info("starting phase")

	existing, err := fetchWithRetry(ctx, r, p.fetchExisting)
	if err != nil {
		return nil, fmt.Errorf("fetching existing %s from target: %w", p.entity.Slug(), err)
	}
	log.Info("fetched existing entities from target", "count", len(existing))

	source, err := fetchWithRetry(ctx, r, p.fetchSource)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from source: %w", p.entity.Slug(), err)
	}
	log.Info("fetched source entities", "count", len(source))

	var records []model.TransferRecord
	for _, s := range source {
		rec, err := transferOne(ctx, r, p, s, existing)
		records = append(records, rec)
		if err != nil {
			return records, err
		}
	}

	for _, s := range model.Summarize(records) {
		log.Info("phase complete",
			"created", s.Created,
			"already_exists", s.AlreadyExists,
			"failed", s.Failed)
	}
	return records, nil
}

// transferOne applies the check-then-act discipline for a single entity.
// Record-level failures are captured in the TransferRecord; only fatal
// errors (authentication) are returned.
func transferOne[S any](ctx context.Context, r *Runner, p phase[S], s S, existing map[string]string) (model.TransferRecord, error) {
	rec := model.TransferRecord{
		EntityType: p.entity,
		SourceID:   p.sourceID(s),
		Name:       p.key(s),
	}

	// Check-then-act: a source ID that is already mapped (from this run or a
	// loaded mapping file) must never be created again.
	if targetID, ok := r.Store.Get(p.entity, rec.SourceID); ok {
		rec.Status = model.StatusAlreadyExists
		rec.TargetID = targetID
		r.Log.Debug("source entity already mapped", "entity", string(p.entity), "name", rec.Name, "target_id", targetID)
		return rec, nil
	}

	if targetID, ok := existing[rec.Name]; ok {
		r.Store.Put(p.entity, rec.SourceID, targetID)
		rec.Status = model.StatusAlreadyExists
		rec.TargetID = targetID
		r.Log.Debug("entity already exists in target", "entity", string(p.entity), "name", rec.Name, "target_id", targetID)
		return rec, nil
	}

	payload, err := p.build(s)
	if err != nil {
		rec.Status = model.StatusFailed
		rec.Err = err.Error()
		r.Log.Error("skipping record",
			"entity", string(p.entity), "source_id", rec.SourceID, "name", rec.Name, "error", err)
		return rec, nil
	}

	if r.DryRun {
		rec.Status = model.StatusCreated
		r.Log.Info("dry-run: would create", "entity", string(p.entity), "name", rec.Name)
		return rec, nil
	}

	var targetID string
	err = r.Policy.Do(ctx, func() error {
		id, cerr := p.create(ctx, payload)
		targetID = id
		return cerr
	})
	switch {
	case err == nil:
		r.Store.Put(p.entity, rec.SourceID, targetID)
		existing[rec.Name] = targetID
		rec.Status = model.StatusCreated
		rec.TargetID = targetID
		r.Log.Info("created entity", "entity", string(p.entity), "name", rec.Name, "target_id", targetID)

	case qbo.IsAuth(err):
		rec.Status = model.StatusFailed
		rec.Err = err.Error()
		return rec, fmt.Errorf("authentication failed: %w", err)

	case qbo.IsDuplicate(err):
		// The create raced an entity we did not see; recover its ID from
		// the fault detail.
		if id, ok := duplicateID(err); ok {
			r.Store.Put(p.entity, rec.SourceID, id)
			existing[rec.Name] = id
			rec.Status = model.StatusAlreadyExists
			rec.TargetID = id
			r.Log.Info("entity already existed, mapped from duplicate fault",
				"entity", string(p.entity), "name", rec.Name, "target_id", id)
		} else {
			rec.Status = model.StatusFailed
			rec.Err = err.Error()
			r.Log.Error("duplicate fault without recoverable ID",
				"entity", string(p.entity), "source_id", rec.SourceID, "name", rec.Name, "error", err)
		}

	default:
		rec.Status = model.StatusFailed
		rec.Err = err.Error()
		r.Log.Error("failed to create entity",
			"entity", string(p.entity), "source_id", rec.SourceID, "name", rec.Name, "error", err)
	}
	return rec, nil
}

func fetchWithRetry[T any](ctx context.Context, r *Runner, fetch func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Policy.Do(ctx, func() error {
		v, ferr := fetch(ctx)
		if ferr == nil {
			out = v
		}
		return ferr
	})
	return out, err
}

var duplicateIDPattern = regexp.MustCompile(`Id=(\d+)`)

// duplicateID extracts the existing entity's ID from a duplicate-name fault
// detail, e.g. "...Id=42".
func duplicateID(err error) (string, bool) {
	var apiErr *qbo.APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	m := duplicateIDPattern.FindStringSubmatch(apiErr.Detail)
	if m == nil {
		return "", false
	}
	return m[1], true
}
