package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	mimage "github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/thereceipt/receipt-studio/internal/renderer"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

const (
	docFontSize    = 9.0
	docMarginMM    = 3.0
	docTopMM       = 4.0
	ptToMM         = 25.4 / 72
	lineSpacing    = 1.45
	courierAdvance = 0.6 // glyph advance of Courier relative to font size
)

// DocumentBackend builds PDFs directly with maroto, without a browser. Web
// fonts are not available; text is set in Courier.
type DocumentBackend struct{}

func NewDocumentBackend() *DocumentBackend {
	return &DocumentBackend{}
}

type docRow struct {
	height float64
	cols   []core.Col
}

func (b *DocumentBackend) Export(ctx context.Context, req Request, sizing Sizing) (*Artifact, error) {
	if req.Format != FormatPDF {
		return nil, fail(StageRender, fmt.Errorf("%w %s", ErrUnsupported, req.Format))
	}

	tree, err := renderer.Build(req.Document)
	if err != nil {
		return nil, fail(StageRender, err)
	}

	rows, contentMM := DocumentLayout(tree, sizing.WidthMM)
	if err := ctx.Err(); err != nil {
		return nil, fail(StageRender, err)
	}

	heightMM := sizing.PageHeightMM(contentMM)
	cfg := config.NewBuilder().
		WithDimensions(sizing.WidthMM, heightMM).
		WithLeftMargin(docMarginMM).
		WithRightMargin(docMarginMM).
		WithTopMargin(docTopMM).
		WithBottomMargin(ThermalBufferMM).
		WithDefaultFont(&props.Font{
			Family: fontfamily.Courier,
			Size:   docFontSize,
			Color:  textColor(tree.Settings.TextColor),
		}).
		Build()

	m := maroto.New(cfg)
	for _, r := range rows {
		m.AddRow(r.height, r.cols...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fail(StageEncode, fmt.Errorf("failed to generate PDF: %w", err))
	}

	return &Artifact{
		Format:      FormatPDF,
		ContentType: FormatPDF.ContentType(),
		Data:        doc.GetBytes(),
		WidthMM:     sizing.WidthMM,
		HeightMM:    heightMM,
		Pages:       sizing.Pages(contentMM),
		CreatedAt:   time.Now(),
	}, nil
}

// DocumentLayout converts the tree into maroto rows for paper widthMM and
// returns their total height including the top margin.
func DocumentLayout(tree *renderer.Tree, widthMM float64) ([]docRow, float64) {
	usable := widthMM - 2*docMarginMM
	cols := int(usable / (docFontSize * courierAdvance * ptToMM))
	lineMM := docFontSize * ptToMM * lineSpacing

	var rows []docRow
	for _, n := range tree.Nodes() {
		scale := n.Scale
		if scale <= 0 {
			scale = 1
		}

		switch n.Kind {
		case renderer.NodeText:
			rows = append(rows, docRow{lineMM * scale, []core.Col{
				text.NewCol(12, n.Text, textProps(n, scale, docAlign(n.Align))),
			}})

		case renderer.NodeRow:
			rows = append(rows, docRow{lineMM * scale, []core.Col{
				text.NewCol(8, n.Left, textProps(n, scale, align.Left)),
				text.NewCol(4, n.Right, textProps(n, scale, align.Right)),
			}})

		case renderer.NodeDivider:
			rows = append(rows, docRow{lineMM, []core.Col{
				text.NewCol(12, renderer.DividerLine(n.Style, cols), props.Text{Size: docFontSize}),
			}})

		case renderer.NodeImage:
			data, aspect, ok := logoPNG(n.Src)
			if !ok {
				continue
			}
			pct := float64(n.WidthPercent)
			h := usable * pct / 100 * aspect
			rows = append(rows, docRow{h, []core.Col{
				mimage.NewFromBytesCol(12, data, extension.Png, props.Rect{Center: true, Percent: 100}),
			}})

		case renderer.NodeBarcode:
			w := usable * float64(n.WidthPercent) / 100
			if n.BarcodeFormat == receiptformat.BarcodeQR {
				rows = append(rows, docRow{w, []core.Col{
					code.NewQrCol(12, n.Value, props.Rect{Center: true, Percent: float64(n.WidthPercent)}),
				}})
				continue
			}
			h := usable * 0.4 * float64(n.HeightPercent) / 100
			rows = append(rows, docRow{h, []core.Col{
				code.NewBarCol(12, n.Value, props.Barcode{Center: true, Percent: float64(n.WidthPercent)}),
			}})
			rows = append(rows, docRow{lineMM, []core.Col{
				text.NewCol(12, n.Value, props.Text{Size: docFontSize, Align: align.Center}),
			}})
		}
	}

	total := docTopMM
	for _, r := range rows {
		total += r.height
	}
	if len(rows) == 0 {
		rows = append(rows, docRow{lineMM, []core.Col{col.New(12)}})
		total += lineMM
	}
	return rows, total
}

func textProps(n renderer.Node, scale float64, a align.Type) props.Text {
	p := props.Text{Size: docFontSize * scale, Align: a}
	if n.Bold {
		p.Style = fontstyle.Bold
	}
	return p
}

func docAlign(a receiptformat.Alignment) align.Type {
	switch a {
	case receiptformat.AlignCenter:
		return align.Center
	case receiptformat.AlignRight:
		return align.Right
	default:
		return align.Left
	}
}

func textColor(hex string) *props.Color {
	c, err := renderer.ParseColor(hex)
	if err != nil {
		return &props.Color{}
	}
	return &props.Color{Red: int(c.R), Green: int(c.G), Blue: int(c.B)}
}

// logoPNG re-encodes a logo as PNG and returns its height/width ratio.
func logoPNG(src string) ([]byte, float64, bool) {
	img, err := renderer.DecodeLogo(src)
	if err != nil || img.Bounds().Dx() == 0 {
		return nil, 0, false
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, 0, false
	}
	return buf.Bytes(), float64(img.Bounds().Dy()) / float64(img.Bounds().Dx()), true
}
