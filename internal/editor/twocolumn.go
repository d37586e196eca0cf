package editor

import (
	"fmt"

	"github.com/thereceipt/receipt-studio/internal/sectionlist"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

const (
	ColumnLeft  = "left"
	ColumnRight = "right"
)

func column(s *receiptformat.TwoColumnSection, name string) (*[]receiptformat.KeyValue, error) {
	switch name {
	case ColumnLeft:
		return &s.Left, nil
	case ColumnRight:
		return &s.Right, nil
	}
	return nil, fmt.Errorf("unknown column %q (must be left or right)", name)
}

// AddPair appends a pair to a column. A nil Pair appends a blank row.
type AddPair struct {
	Column string                  `json:"column"`
	Pair   *receiptformat.KeyValue `json:"pair,omitempty"`
}

func (p *AddPair) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.TwoColumnSection) error {
		col, err := column(s, p.Column)
		if err != nil {
			return err
		}
		kv := receiptformat.BlankKeyValue()
		if p.Pair != nil {
			kv = *p.Pair
		}
		*col, err = sectionlist.InsertEntry(*col, len(*col), kv)
		return err
	})
}

type UpdatePair struct {
	Column string  `json:"column"`
	Index  int     `json:"index"`
	Key    *string `json:"key,omitempty"`
	Value  *string `json:"value,omitempty"`
}

func (p *UpdatePair) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.TwoColumnSection) error {
		col, err := column(s, p.Column)
		if err != nil {
			return err
		}
		return updateKeyValue(*col, p.Index, p.Key, p.Value)
	})
}

type RemovePair struct {
	Column string `json:"column"`
	Index  int    `json:"index"`
}

func (p *RemovePair) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.TwoColumnSection) error {
		col, err := column(s, p.Column)
		if err != nil {
			return err
		}
		*col, err = sectionlist.RemoveEntry(*col, p.Index, receiptformat.BlankKeyValue)
		return err
	})
}

type MovePair struct {
	Column string `json:"column"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

func (p *MovePair) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.TwoColumnSection) error {
		col, err := column(s, p.Column)
		if err != nil {
			return err
		}
		*col, err = sectionlist.MoveEntry(*col, p.From, p.To)
		return err
	})
}

func updateKeyValue(rows []receiptformat.KeyValue, i int, key, value *string) error {
	if i < 0 || i >= len(rows) {
		return fmt.Errorf("%w: row %d (len %d)", sectionlist.ErrOutOfRange, i, len(rows))
	}
	if key != nil {
		rows[i].Key = *key
	}
	if value != nil {
		rows[i].Value = *value
	}
	return nil
}
