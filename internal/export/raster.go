package export

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"time"

	"github.com/thereceipt/receipt-studio/internal/renderer"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// dotsPerMM matches the 203 dpi raster the renderer draws at.
const dotsPerMM = 8.0

// RasterBackend draws PNGs with the built-in raster renderer. Fonts come
// from the local system rather than the web.
type RasterBackend struct {
	opts []renderer.RasterOption
}

func NewRasterBackend(opts ...renderer.RasterOption) *RasterBackend {
	return &RasterBackend{opts: opts}
}

func (b *RasterBackend) Export(ctx context.Context, req Request, sizing Sizing) (*Artifact, error) {
	if req.Format != FormatPNG {
		return nil, fail(StageRender, ErrUnsupported)
	}

	img, contentPx, err := b.render(req.Document)
	if err != nil {
		return nil, fail(StageRender, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(StageRender, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fail(StageEncode, err)
	}

	contentMM := float64(contentPx) / dotsPerMM
	return &Artifact{
		Format:      FormatPNG,
		ContentType: FormatPNG.ContentType(),
		Data:        buf.Bytes(),
		WidthMM:     sizing.WidthMM,
		HeightMM:    float64(img.Bounds().Dy()) / dotsPerMM,
		Pages:       sizing.Pages(contentMM),
		CreatedAt:   time.Now(),
	}, nil
}

func (b *RasterBackend) render(doc *receiptformat.Document) (image.Image, int, error) {
	tree, err := renderer.Build(doc)
	if err != nil {
		return nil, 0, err
	}
	r := renderer.NewRaster(tree.Settings, b.opts...)
	img, err := r.Render(tree)
	if err != nil {
		return nil, 0, err
	}
	return img, r.ContentHeight(), nil
}

// Image renders the document for a thermal print head.
func (b *RasterBackend) Image(doc *receiptformat.Document) (image.Image, error) {
	img, _, err := b.render(doc)
	return img, err
}
