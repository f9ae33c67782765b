package model

import (
	"fmt"
	"strings"
)

// EntityType names a QuickBooks entity kind. The value is the resource name
// used in API queries and create paths.
type EntityType string

const (
	EntityAccount      EntityType = "Account"
	EntityEmployee     EntityType = "Employee"
	EntityCustomer     EntityType = "Customer"
	EntityClass        EntityType = "Class"
	EntityVendor       EntityType = "Vendor"
	EntityJournalEntry EntityType = "JournalEntry"
)

// TransferOrder is the fixed dependency order for transfer phases.
// Journal entries come last so that account, class, vendor and employee
// mappings exist before journal lines are resolved.
func TransferOrder() []EntityType {
	return []EntityType{
		EntityAccount,
		EntityEmployee,
		EntityCustomer,
		EntityClass,
		EntityVendor,
		EntityJournalEntry,
	}
}

var slugs = map[EntityType]string{
	EntityAccount:      "accounts",
	EntityEmployee:     "employees",
	EntityCustomer:     "customers",
	EntityClass:        "classes",
	EntityVendor:       "vendors",
	EntityJournalEntry: "journal_entries",
}

// Slug returns the lowercase config/CLI name for the entity type.
func (t EntityType) Slug() string {
	return slugs[t]
}

// ParseEntityType converts a config or CLI name (e.g. "accounts",
// "journal_entries") into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, slug := range slugs {
		if name == slug || name == strings.ToLower(string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}
