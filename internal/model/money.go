package model

import "github.com/shopspring/decimal"

func init() {
	// QuickBooks sends and expects money amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}
