package transfer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
)

func (r *Runner) customersPhase() phase[model.Customer] {
	return phase[model.Customer]{
		entity: model.EntityCustomer,

		fetchSource: func(ctx context.Context) ([]model.Customer, error) {
			all, err := qbo.Query[model.Customer](ctx, r.Source, "Customer", "")
			if err != nil {
				return nil, err
			}
			var customers []model.Customer
			for _, c := range all {
				if !c.Active {
					r.Log.Debug("skipping inactive customer", "name", c.DisplayName)
					continue
				}
				customers = append(customers, c)
			}
			return customers, nil
		},

		fetchExisting: func(ctx context.Context) (map[string]string, error) {
			customers, err := qbo.Query[model.Customer](ctx, r.Target, "Customer", "")
			if err != nil {
				return nil, err
			}
			existing := make(map[string]string, len(customers))
			for _, c := range customers {
				existing[c.DisplayName] = c.ID
			}
			return existing, nil
		},

		key:      func(c model.Customer) string { return c.DisplayName },
		sourceID: func(c model.Customer) string { return c.ID },

		build: func(c model.Customer) (model.Customer, error) {
			out := c
			out.ID = ""
			out.SyncToken = ""
			// Balance is read-only; opening balances are not carried over.
			out.Balance = decimal.Decimal{}
			return out, nil
		},

		create: func(ctx context.Context, payload model.Customer) (string, error) {
			created, err := qbo.Create(ctx, r.Target, "Customer", payload)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
	}
}
