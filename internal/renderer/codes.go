package renderer

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/skip2/go-qrcode"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// maxBarHeightFraction is the bar height at size 100, relative to paper width.
const maxBarHeightFraction = 0.4

// BarcodeImage encodes a barcode node for a canvas paperPx wide. Length
// sets the bar width and Size the bar height, both as percentages.
func BarcodeImage(n Node, paperPx int) (image.Image, error) {
	if n.Value == "" {
		return nil, fmt.Errorf("barcode value is empty")
	}

	targetWidth := paperPx * clampPercent(n.WidthPercent) / 100

	if n.BarcodeFormat == receiptformat.BarcodeQR {
		qr, err := qrcode.New(n.Value, qrcode.Medium)
		if err != nil {
			return nil, err
		}
		// QR codes stay square; Length alone decides their size
		return qr.Image(targetWidth), nil
	}

	code, err := code128.Encode(n.Value)
	if err != nil {
		return nil, err
	}

	height := int(float64(paperPx) * maxBarHeightFraction * float64(clampPercent(n.HeightPercent)) / 100)
	if targetWidth < code.Bounds().Dx() {
		targetWidth = code.Bounds().Dx()
	}
	return barcode.Scale(code, targetWidth, max(height, 1))
}

func clampPercent(p int) int {
	switch {
	case p < 10:
		return 10
	case p > 100:
		return 100
	}
	return p
}

func (r *Raster) renderBarcode(n Node) error {
	img, err := BarcodeImage(n, r.width-int(2*margin))
	if err != nil {
		return err
	}

	imgHeight := img.Bounds().Dy()
	r.ensureHeight(imgHeight + 20)

	// Center the barcode
	x := (r.width - img.Bounds().Dx()) / 2
	r.ctx.DrawImage(img, x, int(r.y))

	r.y += float64(imgHeight) + 10
	return nil
}
