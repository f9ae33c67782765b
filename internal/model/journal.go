package model

import "github.com/shopspring/decimal"

// PostingType marks which side of the ledger a journal line posts to.
const (
	PostingDebit  = "Debit"
	PostingCredit = "Credit"
)

// JournalEntryLineDetail carries the account, class and entity references
// for one journal line.
type JournalEntryLineDetail struct {
	PostingType string     `json:"PostingType,omitempty"`
	AccountRef  *Ref       `json:"AccountRef,omitempty"`
	ClassRef    *Ref       `json:"ClassRef,omitempty"`
	Entity      *EntityRef `json:"Entity,omitempty"`
	TaxCodeRef  *Ref       `json:"TaxCodeRef,omitempty"`
}

// JournalEntryLine is one line of a journal entry.
type JournalEntryLine struct {
	ID                     string                  `json:"Id,omitempty"`
	Description            string                  `json:"Description,omitempty"`
	Amount                 decimal.Decimal         `json:"Amount"`
	DetailType             string                  `json:"DetailType,omitempty"`
	JournalEntryLineDetail *JournalEntryLineDetail `json:"JournalEntryLineDetail,omitempty"`
}

// JournalEntry per the QuickBooks JournalEntry schema.
type JournalEntry struct {
	ID          string             `json:"Id,omitempty"`
	TxnDate     string             `json:"TxnDate,omitempty"` // "YYYY-MM-DD"
	DocNumber   string             `json:"DocNumber,omitempty"`
	PrivateNote string             `json:"PrivateNote,omitempty"`
	Adjustment  bool               `json:"Adjustment,omitempty"`
	Line        []JournalEntryLine `json:"Line,omitempty"`
	CurrencyRef *Ref               `json:"CurrencyRef,omitempty"`
	SyncToken   string             `json:"SyncToken,omitempty"`
}

// Identifier returns the natural key used for existing-journal detection:
// transaction date plus document number.
func (j JournalEntry) Identifier() string {
	return j.TxnDate + "_" + j.DocNumber
}
