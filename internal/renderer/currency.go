package renderer

import (
	"github.com/shopspring/decimal"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// FormatAmount renders v with two decimals and the currency symbol placed
// per format. The sign always leads: -$2.50, -2.50$, -2.50 $.
func FormatAmount(v decimal.Decimal, symbol string, format receiptformat.CurrencyFormat) string {
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	amount := v.Abs().StringFixed(2)
	if amount == "0.00" {
		sign = ""
	}

	switch format {
	case receiptformat.CurrencySuffix:
		return sign + amount + symbol
	case receiptformat.CurrencySuffixSpace:
		return sign + amount + " " + symbol
	default:
		return sign + symbol + amount
	}
}
