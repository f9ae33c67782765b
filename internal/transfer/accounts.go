package transfer

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
)

// defaultAccountPatterns name the accounts QuickBooks creates automatically
// in every company. Copying them would collide with the target's own
// defaults.
var defaultAccountPatterns = []string{
	"Accounts Payable",
	"Accounts Receivable",
	"Opening Balance Equity",
	"Retained Earnings",
	"Sales of Product Income",
	"Undeposited Funds",
	"Inventory Asset",
}

func isDefaultAccount(name string) bool {
	for _, pattern := range defaultAccountPatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

func (r *Runner) accountsPhase() phase[model.Account] {
	return phase[model.Account]{
		entity: model.EntityAccount,

		fetchSource: func(ctx context.Context) ([]model.Account, error) {
			all, err := qbo.Query[model.Account](ctx, r.Source, "Account", "")
			if err != nil {
				return nil, err
			}
			var accounts []model.Account
			for _, a := range all {
				if !a.Active || isDefaultAccount(a.Name) {
					r.Log.Debug("skipping account", "name", a.Name, "active", a.Active)
					continue
				}
				accounts = append(accounts, a)
			}
			sortByHierarchy(accounts)
			return accounts, nil
		},

		fetchExisting: func(ctx context.Context) (map[string]string, error) {
			accounts, err := qbo.Query[model.Account](ctx, r.Target, "Account", "")
			if err != nil {
				return nil, err
			}
			existing := make(map[string]string, len(accounts))
			for _, a := range accounts {
				existing[a.Name] = a.ID
			}
			return existing, nil
		},

		key:      func(a model.Account) string { return a.Name },
		sourceID: func(a model.Account) string { return a.ID },

		build: func(a model.Account) (model.Account, error) {
			out := a
			out.ID = ""
			out.SyncToken = ""
			out.FullyQualifiedName = ""
			out.CurrentBalance = decimal.Decimal{}
			out.ParentRef = r.resolveParent(model.EntityAccount, a.ParentRef, a.Name)
			if out.ParentRef == nil {
				out.SubAccount = false
			}
			return out, nil
		},

		create: func(ctx context.Context, payload model.Account) (string, error) {
			created, err := qbo.Create(ctx, r.Target, "Account", payload)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
	}
}

// resolveParent maps a parent reference through the store. A missing parent
// mapping demotes the entity to top level rather than failing the record.
func (r *Runner) resolveParent(t model.EntityType, parent *model.Ref, name string) *model.Ref {
	if parent == nil {
		return nil
	}
	targetID, ok := r.Store.Get(t, parent.Value)
	if !ok {
		r.Log.Warn("parent not found in mapping, creating as top-level",
			"entity", string(t), "name", name, "parent_source_id", parent.Value)
		return nil
	}
	return &model.Ref{Value: targetID, Name: parent.Name}
}

// sortByHierarchy orders entities so parents are created before children.
type hierarchical interface {
	model.Account | model.Class
}

func sortByHierarchy[T hierarchical](items []T) {
	parentOf := make(map[string]string, len(items))
	for _, item := range items {
		id, parent := idAndParent(item)
		if parent != nil {
			parentOf[id] = parent.Value
		}
	}

	depthOf := make(map[string]int, len(items))
	for _, item := range items {
		id, _ := idAndParent(item)
		d := 0
		for cur := id; d <= len(items); d++ {
			parent, ok := parentOf[cur]
			if !ok {
				break
			}
			cur = parent
		}
		depthOf[id] = d
	}

	sort.SliceStable(items, func(i, j int) bool {
		iID, _ := idAndParent(items[i])
		jID, _ := idAndParent(items[j])
		return depthOf[iID] < depthOf[jID]
	})
}

func idAndParent[T hierarchical](item T) (string, *model.Ref) {
	switch v := any(item).(type) {
	case model.Account:
		return v.ID, v.ParentRef
	case model.Class:
		return v.ID, v.ParentRef
	}
	return "", nil
}
