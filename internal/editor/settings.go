package editor

import "github.com/thereceipt/receipt-studio/pkg/receiptformat"

// SettingsPatch updates the document settings that are set.
type SettingsPatch struct {
	Currency       *string                       `json:"currency,omitempty"`
	CurrencyFormat *receiptformat.CurrencyFormat `json:"currency_format,omitempty"`
	Font           *string                       `json:"font,omitempty"`
	TextColor      *string                       `json:"text_color,omitempty"`
	PaperSize      *receiptformat.PaperSize      `json:"paper_size,omitempty"`
	Background     *bool                         `json:"background,omitempty"`
}

func (p SettingsPatch) Apply(s receiptformat.Settings) receiptformat.Settings {
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.CurrencyFormat != nil {
		s.CurrencyFormat = *p.CurrencyFormat
	}
	if p.Font != nil {
		s.Font = *p.Font
	}
	if p.TextColor != nil {
		s.TextColor = *p.TextColor
	}
	if p.PaperSize != nil {
		s.PaperSize = *p.PaperSize
	}
	if p.Background != nil {
		s.Background = *p.Background
	}
	return s
}
