// Package receiptformat defines the receipt document format: global settings
// plus an ordered list of typed sections.
package receiptformat

import (
	"time"

	"github.com/shopspring/decimal"
)

// Version is the only document format version this package reads and writes.
const Version = "1.0"

// Document is the root of a receipt. Section order is render order.
type Document struct {
	Version    string    `json:"version"`
	Name       string    `json:"name"`
	TemplateID string    `json:"template_id,omitempty"`
	Settings   Settings  `json:"settings"`
	Sections   []Section `json:"sections"`
}

// CurrencyFormat controls where the currency symbol goes relative to the amount.
type CurrencyFormat string

const (
	CurrencyPrefix      CurrencyFormat = "prefix"       // $1.00
	CurrencySuffix      CurrencyFormat = "suffix"       // 1.00$
	CurrencySuffixSpace CurrencyFormat = "suffix_space" // 1.00 $
)

// PaperSize is either a thermal roll width or a fixed page format.
type PaperSize string

const (
	Paper58mm   PaperSize = "58mm"
	Paper80mm   PaperSize = "80mm"
	Paper112mm  PaperSize = "112mm"
	PaperA4     PaperSize = "A4"
	PaperLetter PaperSize = "Letter"
)

// Thermal reports whether the paper is a continuous roll.
func (p PaperSize) Thermal() bool {
	switch p {
	case Paper58mm, Paper80mm, Paper112mm:
		return true
	}
	return false
}

// WidthMM returns the physical paper width in millimetres.
func (p PaperSize) WidthMM() float64 {
	switch p {
	case Paper58mm:
		return 58
	case Paper112mm:
		return 112
	case PaperA4:
		return 210
	case PaperLetter:
		return 215.9
	default:
		return 80
	}
}

// Fonts lists the font families a document may select.
var Fonts = []string{
	"Courier Prime",
	"Roboto Mono",
	"Space Mono",
	"Inconsolata",
	"VT323",
}

// Settings are the document-wide presentation options.
type Settings struct {
	Currency       string         `json:"currency"`
	CurrencyFormat CurrencyFormat `json:"currency_format"`
	Font           string         `json:"font"`
	TextColor      string         `json:"text_color"`
	PaperSize      PaperSize      `json:"paper_size"`
	Background     bool           `json:"background"` // paper texture behind the receipt
}

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// DividerStyle is the literal string repeated across the separator line.
// The blank style renders an empty line of the same height.
type DividerStyle string

const (
	DividerDashed DividerStyle = "---"
	DividerDouble DividerStyle = "==="
	DividerDotted DividerStyle = "..."
	DividerColon  DividerStyle = ":::"
	DividerStars  DividerStyle = "***"
	DividerBlank  DividerStyle = ""
)

// DividerStyles lists every selectable divider style.
var DividerStyles = []DividerStyle{
	DividerDashed, DividerDouble, DividerDotted, DividerColon, DividerStars, DividerBlank,
}

// Divider is the optional separator drawn after a section or between the
// parts of an items list.
type Divider struct {
	Enabled bool         `json:"enabled"`
	Style   DividerStyle `json:"style"`
}

// KeyValue is a label/value row used by two-column and payment sections.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Item is one purchased line.
type Item struct {
	Quantity int             `json:"quantity"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
}

// LineTotal is quantity times unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalLine is a titled amount such as Subtotal or Tax.
type TotalLine struct {
	Title string          `json:"title"`
	Value decimal.Decimal `json:"value"`
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash"
	PaymentCard PaymentMethod = "Credit Card"
)

type BarcodeFormat string

const (
	BarcodeCode128 BarcodeFormat = "code128"
	BarcodeQR      BarcodeFormat = "qr"
)

// TotalSizePercents are the allowed enlargements of the items-list total.
var TotalSizePercents = []int{10, 20, 50, 75, 100}

type HeaderSection struct {
	BusinessName string    `json:"business_name"`
	Logo         string    `json:"logo,omitempty"` // data URI or URL
	LogoWidth    int       `json:"logo_width"`     // percent of paper width
	Address      string    `json:"address"`
	Alignment    Alignment `json:"alignment"`
	Divider      Divider   `json:"divider"`
}

type DateTimeSection struct {
	DateTime  time.Time `json:"datetime"`
	Alignment Alignment `json:"alignment"`
	Divider   Divider   `json:"divider"`
}

type CustomMessageSection struct {
	Message   string    `json:"message"`
	Alignment Alignment `json:"alignment"`
	Divider   Divider   `json:"divider"`
}

type TwoColumnSection struct {
	Left    []KeyValue `json:"left"`
	Right   []KeyValue `json:"right"`
	Divider Divider    `json:"divider"`
}

// ItemsListSection holds the purchased items, the intermediate total lines
// and the final total. Totals are entered, not computed.
type ItemsListSection struct {
	Items             []Item      `json:"items"`
	TotalLines        []TotalLine `json:"total_lines"`
	Total             TotalLine   `json:"total"`
	IncreaseTotalSize bool        `json:"increase_total_size"`
	TotalSizePercent  int         `json:"total_size_percent"`
	ItemsDivider      Divider     `json:"items_divider"`
	TotalDivider      Divider     `json:"total_divider"`
	Divider           Divider     `json:"divider"`
}

type PaymentSection struct {
	Method  PaymentMethod `json:"method"`
	Lines   []KeyValue    `json:"lines"`
	Divider Divider       `json:"divider"`
}

type BarcodeSection struct {
	Value   string        `json:"value"`
	Format  BarcodeFormat `json:"format"`
	Size    int           `json:"size"`   // bar height, percent
	Length  int           `json:"length"` // bar width, percent of paper width
	Divider Divider       `json:"divider"`
}
