package receiptformat

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// ErrInvalidDocument is matched by every validation and parse failure.
var ErrInvalidDocument = errors.New("invalid receipt document")

// ValidationError identifies the offending section and field. Index is -1
// for document-level problems.
type ValidationError struct {
	Index       int
	SectionID   string
	SectionType SectionType
	Field       string
	Reason      string

	cause error
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("section[%d] %s (id=%s): %s: %s", e.Index, e.SectionType, e.SectionID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrInvalidDocument, e.cause}
	}
	return []error{ErrInvalidDocument}
}

type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	return e.field + ": " + e.reason
}

func invalid(field, format string, args ...any) error {
	return &fieldError{field: field, reason: fmt.Sprintf(format, args...)}
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// MaxQRBytes is the byte-mode capacity of a version 40 QR code at medium
// error correction.
const MaxQRBytes = 2331

// Validate checks structural completeness and value ranges of a document.
// It returns the first problem found as a *ValidationError.
func Validate(d *Document) error {
	if d.Version == "" {
		return docError("version", "is required")
	}
	if d.Version != Version {
		return docError("version", fmt.Sprintf("unsupported version %s (expected %s)", d.Version, Version))
	}
	if d.Name == "" {
		return docError("name", "is required")
	}

	if err := validateSettings(&d.Settings); err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			return docError("settings."+fe.field, fe.reason)
		}
		return err
	}

	if len(d.Sections) == 0 {
		return docError("sections", "at least one section is required")
	}

	seen := make(map[string]bool, len(d.Sections))
	for i, s := range d.Sections {
		if s.Body == nil {
			return &ValidationError{Index: i, SectionID: s.ID, Field: "type", Reason: "is required"}
		}
		if s.ID == "" {
			return sectionError(i, s, "id", "is required")
		}
		if seen[s.ID] {
			return sectionError(i, s, "id", "duplicate section id")
		}
		seen[s.ID] = true

		if err := validateDivider(*s.Body.SectionDivider()); err != nil {
			return wrapSectionError(i, s, "divider", err)
		}
		if err := s.Body.validate(); err != nil {
			return wrapSectionError(i, s, "", err)
		}
	}

	return nil
}

func docError(field, reason string) error {
	return &ValidationError{Index: -1, Field: field, Reason: reason}
}

func sectionError(i int, s Section, field, reason string) error {
	return &ValidationError{Index: i, SectionID: s.ID, SectionType: s.Type(), Field: field, Reason: reason}
}

func wrapSectionError(i int, s Section, prefix string, err error) error {
	var fe *fieldError
	if !errors.As(err, &fe) {
		return sectionError(i, s, prefix, err.Error())
	}
	field := fe.field
	if prefix != "" {
		field = prefix + "." + field
	}
	return sectionError(i, s, field, fe.reason)
}

func validateSettings(s *Settings) error {
	if n := utf8.RuneCountInString(s.Currency); n == 0 || n > 5 {
		return invalid("currency", "must be 1 to 5 characters")
	}
	switch s.CurrencyFormat {
	case CurrencyPrefix, CurrencySuffix, CurrencySuffixSpace:
	default:
		return invalid("currency_format", "invalid value '%s' (must be prefix, suffix, or suffix_space)", s.CurrencyFormat)
	}
	if !slices.Contains(Fonts, s.Font) {
		return invalid("font", "unknown font '%s'", s.Font)
	}
	if !hexColor.MatchString(s.TextColor) {
		return invalid("text_color", "invalid color '%s' (must be #RGB or #RRGGBB)", s.TextColor)
	}
	switch s.PaperSize {
	case Paper58mm, Paper80mm, Paper112mm, PaperA4, PaperLetter:
	default:
		return invalid("paper_size", "invalid value '%s' (must be 58mm, 80mm, 112mm, A4, or Letter)", s.PaperSize)
	}
	return nil
}

func validateAlignment(a Alignment) error {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return nil
	}
	return invalid("alignment", "invalid align '%s' (must be left, center, or right)", a)
}

func validateDivider(d Divider) error {
	if !slices.Contains(DividerStyles, d.Style) {
		return invalid("style", "unknown divider style '%s'", d.Style)
	}
	return nil
}

func validatePercent(field string, v int) error {
	if v < 10 || v > 100 {
		return invalid(field, "must be between 10 and 100, got %d", v)
	}
	return nil
}

func validatePairs(field string, pairs []KeyValue) error {
	if len(pairs) == 0 {
		return invalid(field, "at least one entry is required")
	}
	return nil
}

func (s *HeaderSection) validate() error {
	if s.Logo != "" {
		if !strings.HasPrefix(s.Logo, "data:image/") || !strings.Contains(s.Logo, ";base64,") {
			return invalid("logo", "must be a base64 image data URI")
		}
		if err := validatePercent("logo_width", s.LogoWidth); err != nil {
			return err
		}
	}
	return validateAlignment(s.Alignment)
}

func (s *DateTimeSection) validate() error {
	if s.DateTime.IsZero() {
		return invalid("datetime", "is required")
	}
	return validateAlignment(s.Alignment)
}

func (s *CustomMessageSection) validate() error {
	return validateAlignment(s.Alignment)
}

func (s *TwoColumnSection) validate() error {
	if err := validatePairs("left", s.Left); err != nil {
		return err
	}
	return validatePairs("right", s.Right)
}

func (s *ItemsListSection) validate() error {
	if len(s.Items) == 0 {
		return invalid("items", "at least one item is required")
	}
	for i, item := range s.Items {
		if item.Quantity < 1 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be at least 1, got %d", item.Quantity)
		}
		if item.Price.IsNegative() {
			return invalid(fmt.Sprintf("items[%d].price", i), "must not be negative")
		}
	}
	if len(s.TotalLines) == 0 {
		return invalid("total_lines", "at least one entry is required")
	}
	if s.Total.Value.IsNegative() {
		return invalid("total.value", "must not be negative")
	}
	if !slices.Contains(TotalSizePercents, s.TotalSizePercent) {
		return invalid("total_size_percent", "invalid value %d (must be one of %v)", s.TotalSizePercent, TotalSizePercents)
	}
	if err := validateDivider(s.ItemsDivider); err != nil {
		return invalid("items_divider", "%s", err.(*fieldError).reason)
	}
	if err := validateDivider(s.TotalDivider); err != nil {
		return invalid("total_divider", "%s", err.(*fieldError).reason)
	}
	return nil
}

func (s *PaymentSection) validate() error {
	switch s.Method {
	case PaymentCash, PaymentCard:
	default:
		return invalid("method", "invalid payment method '%s' (must be %s or %s)", s.Method, PaymentCash, PaymentCard)
	}
	return validatePairs("lines", s.Lines)
}

func (s *BarcodeSection) validate() error {
	switch s.Format {
	case BarcodeCode128, BarcodeQR:
	default:
		return invalid("format", "invalid barcode format '%s' (must be code128 or qr)", s.Format)
	}
	if s.Value == "" {
		return invalid("value", "is required")
	}
	switch s.Format {
	case BarcodeCode128:
		for i := 0; i < len(s.Value); i++ {
			if c := s.Value[i]; c < 0x20 || c > 0x7e {
				return invalid("value", "code128 accepts printable ASCII only")
			}
		}
	case BarcodeQR:
		if len(s.Value) > MaxQRBytes {
			return invalid("value", "too long for a QR code (%d bytes, max %d)", len(s.Value), MaxQRBytes)
		}
	}
	if err := validatePercent("size", s.Size); err != nil {
		return err
	}
	return validatePercent("length", s.Length)
}
