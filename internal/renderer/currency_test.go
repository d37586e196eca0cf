package renderer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		symbol string
		format receiptformat.CurrencyFormat
		want   string
	}{
		{"prefix zero", "0", "$", receiptformat.CurrencyPrefix, "$0.00"},
		{"prefix fractional", "1.5", "$", receiptformat.CurrencyPrefix, "$1.50"},
		{"prefix multi digit", "1234.567", "$", receiptformat.CurrencyPrefix, "$1234.57"},
		{"suffix", "3.24", "€", receiptformat.CurrencySuffix, "3.24€"},
		{"suffix space", "3.24", "kr", receiptformat.CurrencySuffixSpace, "3.24 kr"},
		{"negative prefix", "-2.5", "$", receiptformat.CurrencyPrefix, "-$2.50"},
		{"negative suffix space", "-2.5", "€", receiptformat.CurrencySuffixSpace, "-2.50 €"},
		{"negative rounds to zero", "-0.001", "$", receiptformat.CurrencyPrefix, "$0.00"},
		{"unknown format falls back to prefix", "1", "$", "", "$1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAmount(decimal.RequireFromString(tt.value), tt.symbol, tt.format)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
