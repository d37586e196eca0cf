package receiptformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewDocument_IsValid(t *testing.T) {
	doc := NewDocument("Test Receipt")

	if err := Validate(&doc); err != nil {
		t.Fatalf("Expected valid document, got error: %v", err)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(doc.Sections))
	}
	if doc.Sections[0].Type() != TypeHeader || doc.Sections[1].Type() != TypeItemsList {
		t.Errorf("Expected header then items list, got %s, %s", doc.Sections[0].Type(), doc.Sections[1].Type())
	}
}

func TestNewSection_AllTypesValid(t *testing.T) {
	for _, st := range SectionTypes {
		t.Run(string(st), func(t *testing.T) {
			doc := NewDocument("x")
			doc.Sections = []Section{NewSection(st)}

			if err := Validate(&doc); err != nil {
				t.Errorf("Expected default %s section to validate, got: %v", st, err)
			}
			if doc.Sections[0].ID == "" {
				t.Error("Expected section id to be assigned")
			}
		})
	}
}

func TestNewSection_UniqueIDs(t *testing.T) {
	a := NewSection(TypeHeader)
	b := NewSection(TypeHeader)
	if a.ID == b.ID {
		t.Errorf("Expected unique ids, both were %s", a.ID)
	}
}

func TestNewSection_UnknownTypePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for unknown section type")
		}
	}()
	NewSection(SectionType("footer"))
}

func TestNewSection_Options(t *testing.T) {
	s := NewSection(TypeCustomMessage,
		WithAlignment(AlignRight),
		WithDivider(Divider{Enabled: false, Style: DividerStars}),
	)

	msg := s.Body.(*CustomMessageSection)
	if msg.Alignment != AlignRight {
		t.Errorf("Expected right alignment, got %s", msg.Alignment)
	}
	if msg.Divider.Enabled || msg.Divider.Style != DividerStars {
		t.Errorf("Expected disabled *** divider, got %+v", msg.Divider)
	}
}

func TestNewSection_FixedClock(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 14, 30, 59, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	s := NewSection(TypeDateTime)
	got := s.Body.(*DateTimeSection).DateTime
	if !got.Equal(fixed.Truncate(time.Minute)) {
		t.Errorf("Expected %v, got %v", fixed.Truncate(time.Minute), got)
	}
}

func TestSectionClone_Deep(t *testing.T) {
	orig := NewSection(TypeItemsList)
	clone := orig.Clone()

	clone.Body.(*ItemsListSection).Items[0].Name = "Changed"
	clone.Body.(*ItemsListSection).TotalLines[0].Title = "Changed"

	items := orig.Body.(*ItemsListSection)
	if items.Items[0].Name == "Changed" || items.TotalLines[0].Title == "Changed" {
		t.Error("Expected clone to share no slices with the original")
	}
}

func TestSectionJSON_Flat(t *testing.T) {
	s := Section{ID: "msg-1", Body: &CustomMessageSection{Message: "Hi", Alignment: AlignLeft}}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["id"] != "msg-1" || raw["type"] != "custom_message" || raw["message"] != "Hi" {
		t.Errorf("Expected flat object with id, type, and message, got %s", data)
	}
}

func TestSectionJSON_UnknownType(t *testing.T) {
	var s Section
	err := json.Unmarshal([]byte(`{"id":"x","type":"footer"}`), &s)
	if !errors.Is(err, ErrUnknownSectionType) {
		t.Errorf("Expected ErrUnknownSectionType, got %v", err)
	}
}

func TestDocumentJSON_RoundTrip(t *testing.T) {
	doc := NewDocument("Round Trip")
	for _, st := range SectionTypes {
		doc.Sections = append(doc.Sections, NewSection(st))
	}
	items := doc.Sections[1].Body.(*ItemsListSection)
	items.Items[0] = Item{Quantity: 2, Name: "Soda", Price: decimal.RequireFromString("1.50")}

	first, err := doc.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	parsed, err := Parse(first)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := parsed.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("Expected identical JSON after round trip\nfirst:  %s\nsecond: %s", first, second)
	}

	got := parsed.Sections[1].Body.(*ItemsListSection).Items[0]
	if got.Quantity != 2 || got.Name != "Soda" || !got.Price.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Expected item {2 Soda 1.50}, got %+v", got)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"wrong version", `{"version":"2.0","name":"x","sections":[{"id":"a","type":"custom_message","message":"","alignment":"left","divider":{"enabled":false,"style":""}}]}`},
		{"no sections", `{"version":"1.0","name":"x","sections":[]}`},
		{"unknown section", `{"version":"1.0","name":"x","sections":[{"id":"a","type":"footer"}]}`},
		{"wrong field type", `{"version":"1.0","name":"x","sections":[{"id":"a","type":"items_list","items":"nope"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestParse_FillsSettings(t *testing.T) {
	data := `{"version":"1.0","name":"x","sections":[{"id":"a","type":"custom_message","message":"hi","alignment":"left","divider":{"enabled":false,"style":""}}]}`

	doc, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Settings.Currency != "$" || doc.Settings.PaperSize != Paper80mm {
		t.Errorf("Expected default settings, got %+v", doc.Settings)
	}
}

func TestSaveToFile_ParseFile(t *testing.T) {
	path := t.TempDir() + "/receipt.json"
	doc := NewDocument("On Disk")

	if err := doc.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	loaded, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if loaded.Name != "On Disk" || len(loaded.Sections) != 2 {
		t.Errorf("Expected the saved document back, got %+v", loaded)
	}
}

func TestPaperSize(t *testing.T) {
	tests := []struct {
		size    PaperSize
		thermal bool
		width   float64
	}{
		{Paper58mm, true, 58},
		{Paper80mm, true, 80},
		{Paper112mm, true, 112},
		{PaperA4, false, 210},
		{PaperLetter, false, 215.9},
	}

	for _, tt := range tests {
		if tt.size.Thermal() != tt.thermal {
			t.Errorf("%s: Expected thermal=%v", tt.size, tt.thermal)
		}
		if tt.size.WidthMM() != tt.width {
			t.Errorf("%s: Expected width %v, got %v", tt.size, tt.width, tt.size.WidthMM())
		}
	}
}

func TestItemLineTotal(t *testing.T) {
	item := Item{Quantity: 3, Price: decimal.RequireFromString("1.25")}
	if !item.LineTotal().Equal(decimal.RequireFromString("3.75")) {
		t.Errorf("Expected 3.75, got %s", item.LineTotal())
	}
}

func TestParseSectionType(t *testing.T) {
	if st, err := ParseSectionType("items_list"); err != nil || st != TypeItemsList {
		t.Errorf("Expected items_list, got %s, %v", st, err)
	}
	if _, err := ParseSectionType("ITEMS"); err == nil || !strings.Contains(err.Error(), "unknown section type") {
		t.Errorf("Expected unknown section type error, got %v", err)
	}
}

func TestParse_SectionDecodeErrorsNameSection(t *testing.T) {
	msg := `{"id":"m","type":"custom_message","message":"hi","alignment":"left","divider":{"enabled":false,"style":""}}`
	tests := []struct {
		name    string
		section string
		id      string
		stype   SectionType
		field   string
		unknown bool
	}{
		{"unknown type", `{"id":"c1","type":"coupon"}`, "c1", "coupon", "type", true},
		{"wrong field type", `{"id":"i1","type":"items_list","items":[{"quantity":"two","name":"x","price":"1"}]}`, "i1", TypeItemsList, "items.quantity", false},
		{"not an object", `42`, "", "", "type", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := `{"version":"1.0","name":"x","sections":[` + msg + `,` + tt.section + `]}`

			_, err := Parse([]byte(data))
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if ve.Index != 1 {
				t.Errorf("Expected section index 1, got %d", ve.Index)
			}
			if ve.SectionID != tt.id || ve.SectionType != tt.stype {
				t.Errorf("Expected section %s (%s), got %s (%s)", tt.id, tt.stype, ve.SectionID, ve.SectionType)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, ve.Field)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Error("Expected error to match ErrInvalidDocument")
			}
			if errors.Is(err, ErrUnknownSectionType) != tt.unknown {
				t.Errorf("Expected ErrUnknownSectionType match = %v, got %v", tt.unknown, err)
			}
		})
	}
}
