package transfer

import (
	"context"

	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
)

func (r *Runner) employeesPhase() phase[model.Employee] {
	return phase[model.Employee]{
		entity: model.EntityEmployee,

		fetchSource: func(ctx context.Context) ([]model.Employee, error) {
			all, err := qbo.Query[model.Employee](ctx, r.Source, "Employee", "")
			if err != nil {
				return nil, err
			}
			var employees []model.Employee
			for _, e := range all {
				if !e.Active {
					r.Log.Debug("skipping inactive employee", "name", e.FullName())
					continue
				}
				employees = append(employees, e)
			}
			return employees, nil
		},

		fetchExisting: func(ctx context.Context) (map[string]string, error) {
			employees, err := qbo.Query[model.Employee](ctx, r.Target, "Employee", "")
			if err != nil {
				return nil, err
			}
			existing := make(map[string]string, len(employees))
			for _, e := range employees {
				if name := e.FullName(); name != "" {
					existing[name] = e.ID
				}
			}
			return existing, nil
		},

		key:      func(e model.Employee) string { return e.FullName() },
		sourceID: func(e model.Employee) string { return e.ID },

		build: func(e model.Employee) (model.Employee, error) {
			out := e
			out.ID = ""
			out.SyncToken = ""
			return out, nil
		},

		create: func(ctx context.Context, payload model.Employee) (string, error) {
			created, err := qbo.Create(ctx, r.Target, "Employee", payload)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
	}
}
