package renderer

import (
	"fmt"
	"strings"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// DateTimeLayout is how date/time sections print.
const DateTimeLayout = "01/02/2006 03:04 PM"

// Build converts a document into its visual tree. The document is only read.
func Build(doc *receiptformat.Document) (*Tree, error) {
	tree := &Tree{Settings: doc.Settings}
	b := &builder{settings: doc.Settings}

	for i, s := range doc.Sections {
		if s.Body == nil {
			return nil, fmt.Errorf("section[%d] %s: empty body", i, s.ID)
		}
		b.nodes = nil
		if err := s.Body.Accept(b); err != nil {
			return nil, fmt.Errorf("section[%d] %s: %w", i, s.ID, err)
		}
		b.divider(*s.Body.SectionDivider())

		tree.Blocks = append(tree.Blocks, Block{
			SectionID: s.ID,
			Type:      s.Type(),
			Nodes:     b.nodes,
		})
	}

	return tree, nil
}

type builder struct {
	settings receiptformat.Settings
	nodes    []Node
}

func (b *builder) text(s string, align receiptformat.Alignment, bold bool, scale float64) {
	for _, line := range strings.Split(s, "\n") {
		b.nodes = append(b.nodes, Node{Kind: NodeText, Text: line, Align: align, Bold: bold, Scale: scale})
	}
}

func (b *builder) row(left, right string, bold bool, scale float64) {
	b.nodes = append(b.nodes, Node{Kind: NodeRow, Left: left, Right: right, Bold: bold, Scale: scale})
}

func (b *builder) divider(d receiptformat.Divider) {
	if d.Enabled {
		b.nodes = append(b.nodes, Node{Kind: NodeDivider, Style: d.Style})
	}
}

func (b *builder) VisitHeader(s *receiptformat.HeaderSection) error {
	if s.Logo != "" {
		b.nodes = append(b.nodes, Node{Kind: NodeImage, Src: s.Logo, WidthPercent: s.LogoWidth, Align: s.Alignment})
	}
	if s.BusinessName != "" {
		b.text(s.BusinessName, s.Alignment, true, 1.4)
	}
	if s.Address != "" {
		b.text(s.Address, s.Alignment, false, 1)
	}
	return nil
}

func (b *builder) VisitDateTime(s *receiptformat.DateTimeSection) error {
	b.text(s.DateTime.Format(DateTimeLayout), s.Alignment, false, 1)
	return nil
}

func (b *builder) VisitCustomMessage(s *receiptformat.CustomMessageSection) error {
	b.text(s.Message, s.Alignment, false, 1)
	return nil
}

func (b *builder) VisitTwoColumn(s *receiptformat.TwoColumnSection) error {
	n := max(len(s.Left), len(s.Right))
	for i := 0; i < n; i++ {
		var left, right string
		if i < len(s.Left) {
			left = pairText(s.Left[i])
		}
		if i < len(s.Right) {
			right = pairText(s.Right[i])
		}
		b.row(left, right, false, 1)
	}
	return nil
}

func pairText(kv receiptformat.KeyValue) string {
	switch {
	case kv.Key == "":
		return kv.Value
	case kv.Value == "":
		return kv.Key
	}
	return kv.Key + ": " + kv.Value
}

func (b *builder) VisitItemsList(s *receiptformat.ItemsListSection) error {
	cur, format := b.settings.Currency, b.settings.CurrencyFormat

	for _, item := range s.Items {
		b.row(fmt.Sprintf("%d %s", item.Quantity, item.Name), FormatAmount(item.LineTotal(), cur, format), false, 1)
	}
	b.divider(s.ItemsDivider)

	for _, line := range s.TotalLines {
		b.row(line.Title, FormatAmount(line.Value, cur, format), false, 1)
	}
	b.divider(s.TotalDivider)

	scale := 1.0
	if s.IncreaseTotalSize {
		scale = 1 + float64(s.TotalSizePercent)/100
	}
	b.row(s.Total.Title, FormatAmount(s.Total.Value, cur, format), true, scale)
	return nil
}

func (b *builder) VisitPayment(s *receiptformat.PaymentSection) error {
	b.text(strings.ToUpper(string(s.Method)), receiptformat.AlignLeft, true, 1)
	for _, line := range s.Lines {
		b.row(line.Key, line.Value, false, 1)
	}
	return nil
}

func (b *builder) VisitBarcode(s *receiptformat.BarcodeSection) error {
	b.nodes = append(b.nodes, Node{
		Kind:          NodeBarcode,
		BarcodeFormat: s.Format,
		Value:         s.Value,
		HeightPercent: s.Size,
		WidthPercent:  s.Length,
		Align:         receiptformat.AlignCenter,
	})
	return nil
}
