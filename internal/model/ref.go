package model

// Ref is a QuickBooks reference object pointing at another entity.
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

// EntityRef wraps a typed reference on a journal line (Vendor or Employee).
type EntityRef struct {
	Type      string `json:"Type,omitempty"`
	EntityRef *Ref   `json:"EntityRef,omitempty"`
}
