package model

import "github.com/shopspring/decimal"

// Account is a chart-of-accounts entry, per the QuickBooks Account schema.
// Only the fields the transfer copies are modeled.
type Account struct {
	ID                 string          `json:"Id,omitempty"`
	Name               string          `json:"Name"`
	AcctNum            string          `json:"AcctNum,omitempty"`
	AccountType        string          `json:"AccountType,omitempty"`
	AccountSubType     string          `json:"AccountSubType,omitempty"`
	Classification     string          `json:"Classification,omitempty"`
	Description        string          `json:"Description,omitempty"`
	FullyQualifiedName string          `json:"FullyQualifiedName,omitempty"`
	Active             bool            `json:"Active"`
	SubAccount         bool            `json:"SubAccount,omitempty"`
	ParentRef          *Ref            `json:"ParentRef,omitempty"`
	CurrencyRef        *Ref            `json:"CurrencyRef,omitempty"`
	CurrentBalance     decimal.Decimal `json:"CurrentBalance,omitempty"`
	SyncToken          string          `json:"SyncToken,omitempty"`
}
