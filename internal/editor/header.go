package editor

import "github.com/thereceipt/receipt-studio/pkg/receiptformat"

// SetHeader updates the header fields that are set.
type SetHeader struct {
	BusinessName *string `json:"business_name,omitempty"`
	Logo         *string `json:"logo,omitempty"`
	LogoWidth    *int    `json:"logo_width,omitempty"`
	Address      *string `json:"address,omitempty"`
}

func (p *SetHeader) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.HeaderSection) error {
		if p.BusinessName != nil {
			s.BusinessName = *p.BusinessName
		}
		if p.Logo != nil {
			s.Logo = *p.Logo
		}
		if p.LogoWidth != nil {
			s.LogoWidth = *p.LogoWidth
		}
		if p.Address != nil {
			s.Address = *p.Address
		}
		return nil
	})
}
