// Package renderer turns a receipt document into a visual tree and draws
// that tree as HTML, plain text or a raster image.
package renderer

import (
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

type NodeKind string

const (
	NodeText    NodeKind = "text"
	NodeRow     NodeKind = "row"
	NodeImage   NodeKind = "image"
	NodeBarcode NodeKind = "barcode"
	NodeDivider NodeKind = "divider"
)

// Node is one visual line of the receipt.
type Node struct {
	Kind NodeKind

	// text
	Text  string
	Align receiptformat.Alignment
	Bold  bool
	Scale float64 // 1 is normal size

	// row: Left is flush left, Right flush right
	Left  string
	Right string

	// image
	Src          string
	WidthPercent int

	// barcode
	BarcodeFormat receiptformat.BarcodeFormat
	Value         string
	HeightPercent int

	// divider
	Style receiptformat.DividerStyle
}

// Block groups the nodes produced by one section.
type Block struct {
	SectionID string
	Type      receiptformat.SectionType
	Nodes     []Node
}

// Tree is the render-ready form of a document.
type Tree struct {
	Settings receiptformat.Settings
	Blocks   []Block
}

// Nodes flattens the tree in render order.
func (t *Tree) Nodes() []Node {
	var out []Node
	for _, b := range t.Blocks {
		out = append(out, b.Nodes...)
	}
	return out
}
