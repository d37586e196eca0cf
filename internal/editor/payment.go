package editor

import (
	"github.com/thereceipt/receipt-studio/internal/sectionlist"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// SetPaymentMethod switches the method and replaces the lines with that
// method's defaults. Setting the current method again keeps the lines.
type SetPaymentMethod struct {
	Method receiptformat.PaymentMethod `json:"method"`
}

func (p *SetPaymentMethod) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.PaymentSection) error {
		if s.Method == p.Method {
			return nil
		}
		s.Method = p.Method
		s.Lines = receiptformat.DefaultPaymentLines(p.Method)
		return nil
	})
}

type AddPaymentLine struct {
	Line *receiptformat.KeyValue `json:"line,omitempty"`
}

func (p *AddPaymentLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.PaymentSection) error {
		kv := receiptformat.BlankKeyValue()
		if p.Line != nil {
			kv = *p.Line
		}
		var err error
		s.Lines, err = sectionlist.InsertEntry(s.Lines, len(s.Lines), kv)
		return err
	})
}

type UpdatePaymentLine struct {
	Index int     `json:"index"`
	Key   *string `json:"key,omitempty"`
	Value *string `json:"value,omitempty"`
}

func (p *UpdatePaymentLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.PaymentSection) error {
		return updateKeyValue(s.Lines, p.Index, p.Key, p.Value)
	})
}

type RemovePaymentLine struct {
	Index int `json:"index"`
}

func (p *RemovePaymentLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.PaymentSection) error {
		var err error
		s.Lines, err = sectionlist.RemoveEntry(s.Lines, p.Index, receiptformat.BlankKeyValue)
		return err
	})
}

type MovePaymentLine struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (p *MovePaymentLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.PaymentSection) error {
		var err error
		s.Lines, err = sectionlist.MoveEntry(s.Lines, p.From, p.To)
		return err
	})
}
