package renderer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// ErrLogoSource is returned for logos that are not inline image data.
// Documents come from clients, so paths and URLs are never dereferenced.
var ErrLogoSource = errors.New("logo must be a base64 image data URI")

// DecodeLogo reads a logo given as a base64 data URI.
func DecodeLogo(src string) (image.Image, error) {
	if !strings.HasPrefix(src, "data:image/") {
		return nil, ErrLogoSource
	}
	comma := strings.IndexByte(src, ',')
	if comma < 0 || !strings.HasSuffix(src[:comma], ";base64") {
		return nil, ErrLogoSource
	}
	data, err := base64.StdEncoding.DecodeString(src[comma+1:])
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// renderImage draws the logo at WidthPercent of the paper width. Logos that
// cannot be loaded are skipped so one bad image does not block the receipt.
func (r *Raster) renderImage(n Node) error {
	img, err := DecodeLogo(n.Src)
	if err != nil {
		return nil
	}

	target := r.width * clampPercent(n.WidthPercent) / 100
	if img.Bounds().Dx() != target {
		img = imaging.Resize(img, target, 0, imaging.Lanczos)
	}

	imgHeight := img.Bounds().Dy()
	r.ensureHeight(imgHeight + 10)

	var x int
	switch n.Align {
	case receiptformat.AlignCenter:
		x = (r.width - target) / 2
	case receiptformat.AlignRight:
		x = r.width - target - int(margin)
	default:
		x = int(margin)
	}
	r.ctx.DrawImage(img, x, int(r.y))

	r.y += float64(imgHeight) + 10
	return nil
}
