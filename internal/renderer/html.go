package renderer

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/png"
	"net/url"
	"strings"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// ReceiptElementID is the id of the element wrapping the receipt in HTML
// output. Exporters measure its height.
const ReceiptElementID = "receipt"

//go:embed templates/receipt.html.tmpl
var templateFS embed.FS

var htmlTemplate = template.Must(template.ParseFS(templateFS, "templates/receipt.html.tmpl"))

type htmlPage struct {
	Title     string
	ElementID string
	FontURL   string
	Font      string
	Color     string
	PageWidth string
	Textured  bool
	Blocks    []htmlBlock
}

type htmlBlock struct {
	SectionID string
	Type      receiptformat.SectionType
	Nodes     []htmlNode
}

type htmlNode struct {
	Kind  NodeKind
	Align receiptformat.Alignment
	Bold  bool
	Text  string
	Left  string
	Right string
	Src   template.URL
	Style template.CSS
}

// FontURL is the web font stylesheet for a font family.
func FontURL(family string) string {
	if family == "" {
		return ""
	}
	return "https://fonts.googleapis.com/css2?family=" + url.QueryEscape(family) + "&display=swap"
}

// HTML renders the tree as a standalone page sized to the paper width.
func HTML(t *Tree, title string) ([]byte, error) {
	page := htmlPage{
		Title:     title,
		ElementID: ReceiptElementID,
		FontURL:   FontURL(t.Settings.Font),
		Font:      t.Settings.Font,
		Color:     t.Settings.TextColor,
		PageWidth: fmt.Sprintf("%gmm", t.Settings.PaperSize.WidthMM()),
		Textured:  t.Settings.Background,
	}

	paperPx := PaperWidthToPixels(t.Settings.PaperSize)
	for _, b := range t.Blocks {
		hb := htmlBlock{SectionID: b.SectionID, Type: b.Type}
		for _, n := range b.Nodes {
			hn, ok, err := htmlNodeFor(n, paperPx)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", b.SectionID, err)
			}
			if ok {
				hb.Nodes = append(hb.Nodes, hn)
			}
		}
		page.Blocks = append(page.Blocks, hb)
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	return buf.Bytes(), nil
}

func htmlNodeFor(n Node, paperPx int) (htmlNode, bool, error) {
	hn := htmlNode{
		Kind:  n.Kind,
		Align: n.Align,
		Bold:  n.Bold,
		Text:  n.Text,
		Left:  n.Left,
		Right: n.Right,
	}
	if s := scaleOf(n); s != 1 {
		hn.Style = template.CSS(fmt.Sprintf("font-size: %.2fem", s))
	}

	switch n.Kind {
	case NodeDivider:
		hn.Text = DividerLine(n.Style, 200)
	case NodeImage:
		src, ok := safeImageURL(n.Src)
		if !ok {
			return hn, false, nil
		}
		hn.Src = src
		hn.Style = template.CSS(fmt.Sprintf("width: %d%%", clampPercent(n.WidthPercent)))
	case NodeBarcode:
		img, err := BarcodeImage(n, paperPx)
		if err != nil {
			return hn, false, fmt.Errorf("barcode: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return hn, false, err
		}
		hn.Src = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
		hn.Text = n.Value
		hn.Style = template.CSS(fmt.Sprintf("width: %d%%", clampPercent(n.WidthPercent)))
	}
	return hn, true, nil
}

// safeImageURL admits base64 image data URIs only, so neither the preview
// nor the export browser fetches anything a document points at.
func safeImageURL(src string) (template.URL, bool) {
	if strings.HasPrefix(src, "data:image/") && strings.Contains(src, ";base64,") {
		return template.URL(src), true
	}
	return "", false
}
