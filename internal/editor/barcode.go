package editor

import "github.com/thereceipt/receipt-studio/pkg/receiptformat"

type SetBarcode struct {
	Value  *string                      `json:"value,omitempty"`
	Format *receiptformat.BarcodeFormat `json:"format,omitempty"`
	Size   *int                         `json:"size,omitempty"`
	Length *int                         `json:"length,omitempty"`
}

func (p *SetBarcode) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.BarcodeSection) error {
		if p.Value != nil {
			s.Value = *p.Value
		}
		if p.Format != nil {
			s.Format = *p.Format
		}
		if p.Size != nil {
			s.Size = *p.Size
		}
		if p.Length != nil {
			s.Length = *p.Length
		}
		return nil
	})
}
