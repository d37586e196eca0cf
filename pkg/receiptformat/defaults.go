package receiptformat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// now is swapped in tests that need a fixed creation time.
var now = time.Now

// SectionOption adjusts a freshly built default body.
type SectionOption func(Body)

// NewSectionID returns a fresh unique section id.
func NewSectionID() string {
	return uuid.NewString()
}

// NewSection builds a section of type t with default field values and a new
// id, then applies opts. An unknown type is a programming error and panics.
func NewSection(t SectionType, opts ...SectionOption) Section {
	body := defaultBody(t)
	for _, opt := range opts {
		opt(body)
	}
	return Section{ID: NewSectionID(), Body: body}
}

// WithDivider replaces the section divider.
func WithDivider(d Divider) SectionOption {
	return func(b Body) {
		*b.SectionDivider() = d
	}
}

// WithAlignment sets the alignment of sections that have one.
func WithAlignment(a Alignment) SectionOption {
	return func(b Body) {
		switch s := b.(type) {
		case *HeaderSection:
			s.Alignment = a
		case *DateTimeSection:
			s.Alignment = a
		case *CustomMessageSection:
			s.Alignment = a
		}
	}
}

func defaultBody(t SectionType) Body {
	divider := Divider{Enabled: true, Style: DividerDashed}

	switch t {
	case TypeHeader:
		return &HeaderSection{
			BusinessName: "Business Name",
			LogoWidth:    50,
			Address:      "123 Main Street\nAnytown, ST 12345\n(555) 555-0100",
			Alignment:    AlignCenter,
			Divider:      divider,
		}
	case TypeDateTime:
		return &DateTimeSection{
			DateTime:  now().Truncate(time.Minute),
			Alignment: AlignCenter,
			Divider:   divider,
		}
	case TypeCustomMessage:
		return &CustomMessageSection{
			Message:   "Thank you for shopping with us!",
			Alignment: AlignCenter,
			Divider:   divider,
		}
	case TypeTwoColumn:
		return &TwoColumnSection{
			Left:    []KeyValue{{Key: "Cashier", Value: "Jane"}},
			Right:   []KeyValue{{Key: "Register", Value: "3"}},
			Divider: divider,
		}
	case TypeItemsList:
		return &ItemsListSection{
			Items: []Item{BlankItem()},
			TotalLines: []TotalLine{
				{Title: "Subtotal", Value: decimal.Zero},
				{Title: "Tax", Value: decimal.Zero},
			},
			Total:            TotalLine{Title: "Total", Value: decimal.Zero},
			TotalSizePercent: 20,
			ItemsDivider:     divider,
			TotalDivider:     divider,
			Divider:          divider,
		}
	case TypePayment:
		return &PaymentSection{
			Method:  PaymentCash,
			Lines:   DefaultPaymentLines(PaymentCash),
			Divider: divider,
		}
	case TypeBarcode:
		return &BarcodeSection{
			Value:   "012345678905",
			Format:  BarcodeCode128,
			Size:    50,
			Length:  80,
			Divider: Divider{Style: DividerDashed},
		}
	default:
		panic(fmt.Sprintf("receiptformat: unknown section type %q", t))
	}
}

// DefaultPaymentLines returns the starter rows for a payment method.
func DefaultPaymentLines(m PaymentMethod) []KeyValue {
	if m == PaymentCard {
		return []KeyValue{
			{Key: "Card Type", Value: "VISA"},
			{Key: "Card Number", Value: "**** **** **** 1234"},
			{Key: "Entry Method", Value: "Chip"},
			{Key: "Auth Code", Value: "000000"},
			{Key: "Status", Value: "APPROVED"},
		}
	}
	return []KeyValue{
		{Key: "Cash", Value: "0.00"},
		{Key: "Change", Value: "0.00"},
	}
}

// BlankItem is the entry left behind when the last item is removed.
func BlankItem() Item {
	return Item{Quantity: 1, Price: decimal.Zero}
}

// BlankTotalLine is the entry left behind when the last total line is removed.
func BlankTotalLine() TotalLine {
	return TotalLine{Value: decimal.Zero}
}

// BlankKeyValue is the entry left behind when the last pair is removed.
func BlankKeyValue() KeyValue {
	return KeyValue{}
}

// DefaultSettings are applied to new documents and fill blanks on import.
func DefaultSettings() Settings {
	return Settings{
		Currency:       "$",
		CurrencyFormat: CurrencyPrefix,
		Font:           Fonts[0],
		TextColor:      "#000000",
		PaperSize:      Paper80mm,
		Background:     true,
	}
}

// NewDocument returns the minimal valid receipt: a header and an items list.
func NewDocument(name string) Document {
	return Document{
		Version:  Version,
		Name:     name,
		Settings: DefaultSettings(),
		Sections: []Section{
			NewSection(TypeHeader),
			NewSection(TypeItemsList),
		},
	}
}
