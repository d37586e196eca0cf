package editor

import (
	"time"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

type SetDateTime struct {
	DateTime time.Time `json:"datetime"`
}

func (p *SetDateTime) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.DateTimeSection) error {
		s.DateTime = p.DateTime
		return nil
	})
}

type SetMessage struct {
	Message string `json:"message"`
}

func (p *SetMessage) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.CustomMessageSection) error {
		s.Message = p.Message
		return nil
	})
}
