package printer

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// ESC/POS commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
)

// bandHeight keeps each GS v 0 block small enough for printers with
// limited receive buffers.
const bandHeight = 256

// Encoder generates ESC/POS commands from images
type Encoder struct {
	buffer    bytes.Buffer
	threshold uint8
}

// NewEncoder creates an encoder that prints pixels darker than 128 as dots.
func NewEncoder() *Encoder {
	return &Encoder{threshold: 128}
}

// Initialize resets the printer to its power-on state.
func (e *Encoder) Initialize() {
	e.buffer.Write([]byte{ESC, '@'})
}

// Image appends img as raster bit images, top to bottom. Images wider
// than maxDots are scaled down to fit the print head.
func (e *Encoder) Image(img image.Image, maxDots int) {
	if maxDots > 0 && img.Bounds().Dx() > maxDots {
		img = imaging.Resize(img, maxDots, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)

	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	bytesPerLine := (width + 7) / 8

	for top := 0; top < height; top += bandHeight {
		rows := bandHeight
		if top+rows > height {
			rows = height - top
		}

		// GS v 0 m xL xH yL yH d1...dk
		e.buffer.Write([]byte{
			GS, 'v', '0', 0,
			byte(bytesPerLine), byte(bytesPerLine >> 8),
			byte(rows), byte(rows >> 8),
		})
		e.buffer.Write(bitmap(gray, top, rows, e.threshold))
	}
}

// Feed advances the paper by n lines.
func (e *Encoder) Feed(lines int) {
	if lines <= 0 {
		return
	}
	if lines > 255 {
		lines = 255
	}
	e.buffer.Write([]byte{ESC, 'd', byte(lines)})
}

// Cut sends a full cut.
func (e *Encoder) Cut() {
	e.buffer.Write([]byte{GS, 'V', 0})
}

// PartialCut leaves a small hinge.
func (e *Encoder) PartialCut() {
	e.buffer.Write([]byte{GS, 'V', 1})
}

// Bytes returns the generated ESC/POS commands
func (e *Encoder) Bytes() []byte {
	return e.buffer.Bytes()
}

// Reset clears the buffer
func (e *Encoder) Reset() {
	e.buffer.Reset()
}

// bitmap packs rows of gray into 1-bit lines, MSB first, set bits black.
func bitmap(gray *image.NRGBA, top, rows int, threshold uint8) []byte {
	b := gray.Bounds()
	width := b.Dx()
	bytesPerLine := (width + 7) / 8
	out := make([]byte, bytesPerLine*rows)

	for y := 0; y < rows; y++ {
		for x := 0; x < width; x++ {
			i := gray.PixOffset(b.Min.X+x, b.Min.Y+top+y)
			// transparent pixels print as paper
			if gray.Pix[i+3] < 0x80 || gray.Pix[i] >= threshold {
				continue
			}
			out[y*bytesPerLine+x/8] |= 0x80 >> (x % 8)
		}
	}
	return out
}

// Encode returns a complete job for img: initialize, raster, feed, cut.
func Encode(img image.Image, maxDots int) []byte {
	e := NewEncoder()
	e.Initialize()
	e.Image(img, maxDots)
	e.Feed(4)
	e.PartialCut()
	return e.Bytes()
}
