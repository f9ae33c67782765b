package transfer

import (
	"context"

	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
)

func (r *Runner) classesPhase() phase[model.Class] {
	return phase[model.Class]{
		entity: model.EntityClass,

		fetchSource: func(ctx context.Context) ([]model.Class, error) {
			all, err := qbo.Query[model.Class](ctx, r.Source, "Class", "")
			if err != nil {
				return nil, err
			}
			var classes []model.Class
			for _, c := range all {
				if !c.Active {
					r.Log.Debug("skipping inactive class", "name", c.Name)
					continue
				}
				classes = append(classes, c)
			}
			sortByHierarchy(classes)
			return classes, nil
		},

		fetchExisting: func(ctx context.Context) (map[string]string, error) {
			classes, err := qbo.Query[model.Class](ctx, r.Target, "Class", "")
			if err != nil {
				return nil, err
			}
			existing := make(map[string]string, len(classes))
			for _, c := range classes {
				existing[c.Name] = c.ID
			}
			return existing, nil
		},

		key:      func(c model.Class) string { return c.Name },
		sourceID: func(c model.Class) string { return c.ID },

		build: func(c model.Class) (model.Class, error) {
			out := c
			out.ID = ""
			out.SyncToken = ""
			out.FullyQualifiedName = ""
			out.ParentRef = r.resolveParent(model.EntityClass, c.ParentRef, c.Name)
			if out.ParentRef == nil {
				out.SubClass = false
			}
			return out, nil
		},

		create: func(ctx context.Context, payload model.Class) (string, error) {
			created, err := qbo.Create(ctx, r.Target, "Class", payload)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
	}
}
