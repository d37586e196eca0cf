package editor

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/thereceipt/receipt-studio/internal/sectionlist"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// AddItem appends an item. A nil Item appends a blank one.
type AddItem struct {
	Item *receiptformat.Item `json:"item,omitempty"`
}

func (p *AddItem) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		item := receiptformat.BlankItem()
		if p.Item != nil {
			item = *p.Item
		}
		var err error
		s.Items, err = sectionlist.InsertEntry(s.Items, len(s.Items), item)
		return err
	})
}

type UpdateItem struct {
	Index    int              `json:"index"`
	Quantity *int             `json:"quantity,omitempty"`
	Name     *string          `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

func (p *UpdateItem) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		if p.Index < 0 || p.Index >= len(s.Items) {
			return fmt.Errorf("%w: item %d (len %d)", sectionlist.ErrOutOfRange, p.Index, len(s.Items))
		}
		item := &s.Items[p.Index]
		if p.Quantity != nil {
			item.Quantity = *p.Quantity
		}
		if p.Name != nil {
			item.Name = *p.Name
		}
		if p.Price != nil {
			item.Price = *p.Price
		}
		return nil
	})
}

type RemoveItem struct {
	Index int `json:"index"`
}

func (p *RemoveItem) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		var err error
		s.Items, err = sectionlist.RemoveEntry(s.Items, p.Index, receiptformat.BlankItem)
		return err
	})
}

type MoveItem struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (p *MoveItem) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		var err error
		s.Items, err = sectionlist.MoveEntry(s.Items, p.From, p.To)
		return err
	})
}

type AddTotalLine struct {
	Line *receiptformat.TotalLine `json:"line,omitempty"`
}

func (p *AddTotalLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		line := receiptformat.BlankTotalLine()
		if p.Line != nil {
			line = *p.Line
		}
		var err error
		s.TotalLines, err = sectionlist.InsertEntry(s.TotalLines, len(s.TotalLines), line)
		return err
	})
}

// UpdateTotalLine edits the line at Index, or the first line titled Match
// when Match is set.
type UpdateTotalLine struct {
	Index int              `json:"index"`
	Match string           `json:"match,omitempty"`
	Title *string          `json:"title,omitempty"`
	Value *decimal.Decimal `json:"value,omitempty"`
}

func (p *UpdateTotalLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		i := p.Index
		if p.Match != "" {
			i = -1
			for j, line := range s.TotalLines {
				if line.Title == p.Match {
					i = j
					break
				}
			}
			if i < 0 {
				return fmt.Errorf("%w: no total line titled %q", sectionlist.ErrNotFound, p.Match)
			}
		}
		if i < 0 || i >= len(s.TotalLines) {
			return fmt.Errorf("%w: total line %d (len %d)", sectionlist.ErrOutOfRange, i, len(s.TotalLines))
		}
		if p.Title != nil {
			s.TotalLines[i].Title = *p.Title
		}
		if p.Value != nil {
			s.TotalLines[i].Value = *p.Value
		}
		return nil
	})
}

// RemoveTotalLine drops a total line. Unlike items, total lines may run out:
// the last one is replaced by a blank line to keep the editor row visible.
type RemoveTotalLine struct {
	Index int `json:"index"`
}

func (p *RemoveTotalLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		var err error
		s.TotalLines, err = sectionlist.RemoveEntry(s.TotalLines, p.Index, receiptformat.BlankTotalLine)
		return err
	})
}

type MoveTotalLine struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (p *MoveTotalLine) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		var err error
		s.TotalLines, err = sectionlist.MoveEntry(s.TotalLines, p.From, p.To)
		return err
	})
}

type SetTotal struct {
	Title *string          `json:"title,omitempty"`
	Value *decimal.Decimal `json:"value,omitempty"`
}

func (p *SetTotal) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		if p.Title != nil {
			s.Total.Title = *p.Title
		}
		if p.Value != nil {
			s.Total.Value = *p.Value
		}
		return nil
	})
}

// SetTotalSize toggles the enlarged total and picks its enlargement percent.
type SetTotalSize struct {
	Enabled *bool `json:"enabled,omitempty"`
	Percent *int  `json:"percent,omitempty"`
}

func (p *SetTotalSize) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	return edit(b, func(s *receiptformat.ItemsListSection) error {
		if p.Enabled != nil {
			s.IncreaseTotalSize = *p.Enabled
		}
		if p.Percent != nil {
			s.TotalSizePercent = *p.Percent
		}
		return nil
	})
}
