package transfer

import (
	"context"

	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
)

func (r *Runner) journalsPhase() phase[model.JournalEntry] {
	return phase[model.JournalEntry]{
		entity: model.EntityJournalEntry,

		fetchSource: func(ctx context.Context) ([]model.JournalEntry, error) {
			return qbo.Query[model.JournalEntry](ctx, r.Source, "JournalEntry", "")
		},

		fetchExisting: func(ctx context.Context) (map[string]string, error) {
			journals, err := qbo.Query[model.JournalEntry](ctx, r.Target, "JournalEntry", "")
			if err != nil {
				return nil, err
			}
			existing := make(map[string]string, len(journals))
			for _, j := range journals {
				existing[j.Identifier()] = j.ID
			}
			return existing, nil
		},

		key:      func(j model.JournalEntry) string { return j.Identifier() },
		sourceID: func(j model.JournalEntry) string { return j.ID },

		build: r.buildJournalEntry,

		create: func(ctx context.Context, payload model.JournalEntry) (string, error) {
			created, err := qbo.Create(ctx, r.Target, "JournalEntry", payload)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
	}
}

// buildJournalEntry translates a source journal entry for the target
// company. Every line's account reference must resolve through the mapping
// store; class and entity references are dropped with a warning when
// unresolvable.
func (r *Runner) buildJournalEntry(src model.JournalEntry) (model.JournalEntry, error) {
	out := src
	out.ID = ""
	out.SyncToken = ""
	out.Line = make([]model.JournalEntryLine, 0, len(src.Line))

	for _, line := range src.Line {
		newLine := line
		newLine.ID = ""

		if line.JournalEntryLineDetail != nil {
			detail := *line.JournalEntryLineDetail

			if detail.PostingType == "" {
				// PostingType is required on create; infer it from the sign.
				if line.Amount.IsNegative() {
					detail.PostingType = model.PostingCredit
				} else {
					detail.PostingType = model.PostingDebit
				}
			}

			if detail.AccountRef != nil {
				targetID, ok := r.Store.Get(model.EntityAccount, detail.AccountRef.Value)
				if !ok {
					return model.JournalEntry{}, &missingRefError{
						entity:   model.EntityAccount,
						sourceID: detail.AccountRef.Value,
					}
				}
				detail.AccountRef = &model.Ref{Value: targetID, Name: detail.AccountRef.Name}
			}

			detail.ClassRef = r.resolveOptionalRef(model.EntityClass, detail.ClassRef, src.Identifier())
			detail.Entity = r.resolveEntityRef(detail.Entity, src.Identifier())

			newLine.JournalEntryLineDetail = &detail
		}

		out.Line = append(out.Line, newLine)
	}
	return out, nil
}

// resolveOptionalRef maps a reference through the store, dropping it with a
// warning when no mapping exists.
func (r *Runner) resolveOptionalRef(t model.EntityType, ref *model.Ref, journalID string) *model.Ref {
	if ref == nil {
		return nil
	}
	targetID, ok := r.Store.Get(t, ref.Value)
	if !ok {
		r.Log.Warn("dropping unresolvable reference",
			"entity", string(t), "journal", journalID, "source_id", ref.Value, "name", ref.Name)
		return nil
	}
	return &model.Ref{Value: targetID, Name: ref.Name}
}

// resolveEntityRef maps a journal line's vendor or employee reference.
func (r *Runner) resolveEntityRef(entity *model.EntityRef, journalID string) *model.EntityRef {
	if entity == nil || entity.EntityRef == nil {
		return nil
	}

	var t model.EntityType
	switch entity.Type {
	case "Vendor":
		t = model.EntityVendor
	case "Employee":
		t = model.EntityEmployee
	default:
		r.Log.Warn("dropping unsupported entity reference type",
			"type", entity.Type, "journal", journalID)
		return nil
	}

	ref := r.resolveOptionalRef(t, entity.EntityRef, journalID)
	if ref == nil {
		return nil
	}
	return &model.EntityRef{Type: entity.Type, EntityRef: ref}
}
