package editor

import (
	"fmt"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// Divider targets inside an items list. The empty target is the divider
// drawn after the section and exists on every type.
const (
	DividerSection = ""
	DividerItems   = "items"
	DividerTotal   = "total"
)

// SetDivider toggles or restyles one of a section's dividers.
type SetDivider struct {
	Target  string                      `json:"target,omitempty"`
	Enabled *bool                       `json:"enabled,omitempty"`
	Style   *receiptformat.DividerStyle `json:"style,omitempty"`
}

func (p *SetDivider) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: empty section", ErrWrongSection)
	}
	out := receiptformat.CloneBody(b)

	var d *receiptformat.Divider
	switch p.Target {
	case DividerSection:
		d = out.SectionDivider()
	case DividerItems, DividerTotal:
		items, ok := out.(*receiptformat.ItemsListSection)
		if !ok {
			return nil, fmt.Errorf("%w: %s divider only exists on items lists", ErrWrongSection, p.Target)
		}
		d = &items.ItemsDivider
		if p.Target == DividerTotal {
			d = &items.TotalDivider
		}
	default:
		return nil, fmt.Errorf("unknown divider target %q", p.Target)
	}

	if p.Enabled != nil {
		d.Enabled = *p.Enabled
	}
	if p.Style != nil {
		d.Style = *p.Style
	}
	return out, nil
}

// SetAlignment applies to header, date/time and custom message sections.
type SetAlignment struct {
	Alignment receiptformat.Alignment `json:"alignment"`
}

func (p *SetAlignment) Apply(b receiptformat.Body) (receiptformat.Body, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: empty section", ErrWrongSection)
	}
	out := receiptformat.CloneBody(b)

	switch s := out.(type) {
	case *receiptformat.HeaderSection:
		s.Alignment = p.Alignment
	case *receiptformat.DateTimeSection:
		s.Alignment = p.Alignment
	case *receiptformat.CustomMessageSection:
		s.Alignment = p.Alignment
	default:
		return nil, fmt.Errorf("%w: %s has no alignment", ErrWrongSection, b.Type())
	}
	return out, nil
}
