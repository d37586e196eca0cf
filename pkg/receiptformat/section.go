package receiptformat

import (
	"encoding/json"
	"errors"
	"fmt"
)

type SectionType string

const (
	TypeHeader        SectionType = "header"
	TypeDateTime      SectionType = "datetime"
	TypeCustomMessage SectionType = "custom_message"
	TypeTwoColumn     SectionType = "two_column"
	TypeItemsList     SectionType = "items_list"
	TypePayment       SectionType = "payment"
	TypeBarcode       SectionType = "barcode"
)

// SectionTypes lists every section type in palette order.
var SectionTypes = []SectionType{
	TypeHeader, TypeDateTime, TypeCustomMessage, TypeTwoColumn,
	TypeItemsList, TypePayment, TypeBarcode,
}

// ErrUnknownSectionType is returned when decoding a section whose type tag
// is not one of SectionTypes.
var ErrUnknownSectionType = errors.New("unknown section type")

// ParseSectionType checks s against the known section types.
func ParseSectionType(s string) (SectionType, error) {
	for _, t := range SectionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSectionType, s)
}

// Body is the type-specific payload of a section. The set of implementations
// is closed; consumers that must handle every type implement Visitor.
type Body interface {
	Type() SectionType
	Accept(v Visitor) error
	// SectionDivider points at the divider drawn after the section.
	SectionDivider() *Divider

	clone() Body
	validate() error
}

// Visitor has one method per section type. Adding a section type adds a
// method here, so every exhaustive consumer stops compiling until it
// handles the new type.
type Visitor interface {
	VisitHeader(s *HeaderSection) error
	VisitDateTime(s *DateTimeSection) error
	VisitCustomMessage(s *CustomMessageSection) error
	VisitTwoColumn(s *TwoColumnSection) error
	VisitItemsList(s *ItemsListSection) error
	VisitPayment(s *PaymentSection) error
	VisitBarcode(s *BarcodeSection) error
}

// Section is one block of the receipt. ID is unique within a document.
type Section struct {
	ID   string
	Body Body
}

// Type returns the section's type tag, or "" for an empty section.
func (s Section) Type() SectionType {
	if s.Body == nil {
		return ""
	}
	return s.Body.Type()
}

// Clone returns a deep copy sharing no slices with s.
func (s Section) Clone() Section {
	return Section{ID: s.ID, Body: CloneBody(s.Body)}
}

// CloneBody deep-copies a section body.
func CloneBody(b Body) Body {
	if b == nil {
		return nil
	}
	return b.clone()
}

type sectionHeader struct {
	ID   string      `json:"id"`
	Type SectionType `json:"type"`
}

// MarshalJSON writes the section as a flat object: id and type followed by
// the body's own fields.
func (s Section) MarshalJSON() ([]byte, error) {
	if s.Body == nil {
		return nil, fmt.Errorf("section %q has no body", s.ID)
	}

	head, err := json.Marshal(sectionHeader{ID: s.ID, Type: s.Body.Type()})
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(s.Body)
	if err != nil {
		return nil, err
	}
	if len(body) <= 2 {
		return head, nil
	}

	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// UnmarshalJSON reads the type tag first, then decodes the body into the
// matching concrete type.
func (s *Section) UnmarshalJSON(data []byte) error {
	var head sectionHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	body, err := emptyBody(head.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, body); err != nil {
		return fmt.Errorf("%s section: %w", head.Type, err)
	}

	s.ID = head.ID
	s.Body = body
	return nil
}

func emptyBody(t SectionType) (Body, error) {
	switch t {
	case TypeHeader:
		return &HeaderSection{}, nil
	case TypeDateTime:
		return &DateTimeSection{}, nil
	case TypeCustomMessage:
		return &CustomMessageSection{}, nil
	case TypeTwoColumn:
		return &TwoColumnSection{}, nil
	case TypeItemsList:
		return &ItemsListSection{}, nil
	case TypePayment:
		return &PaymentSection{}, nil
	case TypeBarcode:
		return &BarcodeSection{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSectionType, t)
	}
}

func (s *HeaderSection) Type() SectionType        { return TypeHeader }
func (s *DateTimeSection) Type() SectionType      { return TypeDateTime }
func (s *CustomMessageSection) Type() SectionType { return TypeCustomMessage }
func (s *TwoColumnSection) Type() SectionType     { return TypeTwoColumn }
func (s *ItemsListSection) Type() SectionType     { return TypeItemsList }
func (s *PaymentSection) Type() SectionType       { return TypePayment }
func (s *BarcodeSection) Type() SectionType       { return TypeBarcode }

func (s *HeaderSection) Accept(v Visitor) error        { return v.VisitHeader(s) }
func (s *DateTimeSection) Accept(v Visitor) error      { return v.VisitDateTime(s) }
func (s *CustomMessageSection) Accept(v Visitor) error { return v.VisitCustomMessage(s) }
func (s *TwoColumnSection) Accept(v Visitor) error     { return v.VisitTwoColumn(s) }
func (s *ItemsListSection) Accept(v Visitor) error     { return v.VisitItemsList(s) }
func (s *PaymentSection) Accept(v Visitor) error       { return v.VisitPayment(s) }
func (s *BarcodeSection) Accept(v Visitor) error       { return v.VisitBarcode(s) }

func (s *HeaderSection) SectionDivider() *Divider        { return &s.Divider }
func (s *DateTimeSection) SectionDivider() *Divider      { return &s.Divider }
func (s *CustomMessageSection) SectionDivider() *Divider { return &s.Divider }
func (s *TwoColumnSection) SectionDivider() *Divider     { return &s.Divider }
func (s *ItemsListSection) SectionDivider() *Divider     { return &s.Divider }
func (s *PaymentSection) SectionDivider() *Divider       { return &s.Divider }
func (s *BarcodeSection) SectionDivider() *Divider       { return &s.Divider }

func (s *HeaderSection) clone() Body {
	c := *s
	return &c
}

func (s *DateTimeSection) clone() Body {
	c := *s
	return &c
}

func (s *CustomMessageSection) clone() Body {
	c := *s
	return &c
}

func (s *TwoColumnSection) clone() Body {
	c := *s
	c.Left = cloneSlice(s.Left)
	c.Right = cloneSlice(s.Right)
	return &c
}

func (s *ItemsListSection) clone() Body {
	c := *s
	c.Items = cloneSlice(s.Items)
	c.TotalLines = cloneSlice(s.TotalLines)
	return &c
}

func (s *PaymentSection) clone() Body {
	c := *s
	c.Lines = cloneSlice(s.Lines)
	return &c
}

func (s *BarcodeSection) clone() Body {
	c := *s
	return &c
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	c := d
	c.Sections = make([]Section, len(d.Sections))
	for i, s := range d.Sections {
		c.Sections[i] = s.Clone()
	}
	return c
}

// FindSection returns the index of the section with the given id, or -1.
func (d *Document) FindSection(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
