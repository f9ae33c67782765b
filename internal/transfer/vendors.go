package transfer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
)

func (r *Runner) vendorsPhase() phase[model.Vendor] {
	return phase[model.Vendor]{
		entity: model.EntityVendor,

		fetchSource: func(ctx context.Context) ([]model.Vendor, error) {
			all, err := qbo.Query[model.Vendor](ctx, r.Source, "Vendor", "")
			if err != nil {
				return nil, err
			}
			var vendors []model.Vendor
			for _, v := range all {
				if !v.Active {
					r.Log.Debug("skipping inactive vendor", "name", v.DisplayName)
					continue
				}
				vendors = append(vendors, v)
			}
			return vendors, nil
		},

		fetchExisting: func(ctx context.Context) (map[string]string, error) {
			vendors, err := qbo.Query[model.Vendor](ctx, r.Target, "Vendor", "")
			if err != nil {
				return nil, err
			}
			existing := make(map[string]string, len(vendors))
			for _, v := range vendors {
				existing[v.DisplayName] = v.ID
			}
			return existing, nil
		},

		key:      func(v model.Vendor) string { return v.DisplayName },
		sourceID: func(v model.Vendor) string { return v.ID },

		build: func(v model.Vendor) (model.Vendor, error) {
			out := v
			out.ID = ""
			out.SyncToken = ""
			out.Balance = decimal.Decimal{}
			return out, nil
		},

		create: func(ctx context.Context, payload model.Vendor) (string, error) {
			created, err := qbo.Create(ctx, r.Target, "Vendor", payload)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
	}
}
