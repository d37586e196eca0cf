package receiptformat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// rawDocument defers section decoding so failures can name the section.
type rawDocument struct {
	Version    string            `json:"version"`
	Name       string            `json:"name"`
	TemplateID string            `json:"template_id,omitempty"`
	Settings   Settings          `json:"settings"`
	Sections   []json.RawMessage `json:"sections"`
}

// Parse decodes and validates a serialized document. Blank settings are
// filled with defaults before validation; everything else must be present.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		field := "document"
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			field = ute.Field
		}
		return nil, &ValidationError{Index: -1, Field: field, Reason: "failed to parse receipt: " + err.Error(), cause: err}
	}

	doc := Document{
		Version:    raw.Version,
		Name:       raw.Name,
		TemplateID: raw.TemplateID,
		Settings:   raw.Settings,
		Sections:   make([]Section, 0, len(raw.Sections)),
	}
	for i, rs := range raw.Sections {
		sec, err := decodeSection(i, rs)
		if err != nil {
			return nil, err
		}
		doc.Sections = append(doc.Sections, sec)
	}

	fillSettings(&doc.Settings)

	if err := Validate(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// decodeSection unmarshals one section, reporting failures against its
// index, id and type tag.
func decodeSection(i int, data json.RawMessage) (Section, error) {
	var head sectionHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return Section{}, &ValidationError{Index: i, Field: "type", Reason: err.Error(), cause: err}
	}

	var sec Section
	if err := json.Unmarshal(data, &sec); err != nil {
		ve := &ValidationError{Index: i, SectionID: head.ID, SectionType: head.Type, Reason: err.Error(), cause: err}
		var ute *json.UnmarshalTypeError
		switch {
		case errors.Is(err, ErrUnknownSectionType):
			ve.Field, ve.Reason = "type", fmt.Sprintf("unknown section type %q", head.Type)
		case errors.As(err, &ute):
			ve.Field, ve.Reason = ute.Field, fmt.Sprintf("expected %s, got %s", ute.Type, ute.Value)
		}
		return Section{}, ve
	}
	return sec, nil
}

func fillSettings(s *Settings) {
	def := DefaultSettings()
	if s.Currency == "" {
		s.Currency = def.Currency
	}
	if s.CurrencyFormat == "" {
		s.CurrencyFormat = def.CurrencyFormat
	}
	if s.Font == "" {
		s.Font = def.Font
	}
	if s.TextColor == "" {
		s.TextColor = def.TextColor
	}
	if s.PaperSize == "" {
		s.PaperSize = def.PaperSize
	}
}

// ParseFile parses a receipt document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	return Parse(data)
}

// ToJSON serializes the document in its canonical indented form.
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// SaveToFile writes the document to path.
func (d *Document) SaveToFile(path string) error {
	data, err := d.ToJSON()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
