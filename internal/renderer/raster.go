package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

const (
	margin = 12.0

	// BottomPaddingPx is added below the last drawn line.
	BottomPaddingPx = 24
)

// systemFonts are tried when the document's font is not installed.
var systemFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationMono-Regular.ttf",
	"/System/Library/Fonts/Menlo.ttc",
	"/System/Library/Fonts/Supplemental/Courier New.ttf",
	"C:\\Windows\\Fonts\\cour.ttf",
}

// Raster draws a tree onto a canvas as wide as the paper. A Raster renders
// one tree; create a new one per image.
type Raster struct {
	width    int // Paper width in pixels
	height   int // Current canvas height
	ctx      *gg.Context
	y        float64 // Current Y position
	baseSize float64
	fontDir  string
	fontPath string
	faces    map[float64]font.Face
	color    color.Color
}

// RasterOption configures a Raster.
type RasterOption func(*Raster)

// WithFontDir looks for the document font as <dir>/<Name>-Regular.ttf,
// spaces removed, before falling back to system fonts.
func WithFontDir(dir string) RasterOption {
	return func(r *Raster) {
		r.fontDir = dir
	}
}

// NewRaster creates a renderer for the given settings.
func NewRaster(s receiptformat.Settings, opts ...RasterOption) *Raster {
	width := PaperWidthToPixels(s.PaperSize)

	// Start with reasonable initial height, will grow as needed
	initialHeight := 1000

	ctx := gg.NewContext(width, initialHeight)
	ctx.SetColor(color.White)
	ctx.Clear()

	r := &Raster{
		width:    width,
		height:   initialHeight,
		ctx:      ctx,
		baseSize: float64(width) / 24,
		faces:    make(map[float64]font.Face),
		color:    parseHexColor(s.TextColor),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.fontPath = r.findFont(s.Font)
	return r
}

// RenderImage is shorthand for NewRaster(t.Settings).Render(t).
func RenderImage(t *Tree, opts ...RasterOption) (image.Image, error) {
	return NewRaster(t.Settings, opts...).Render(t)
}

// Render draws every node and crops the canvas to the content plus
// BottomPaddingPx.
func (r *Raster) Render(t *Tree) (image.Image, error) {
	for _, n := range t.Nodes() {
		if err := r.renderNode(n); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", n.Kind, err)
		}
	}

	return r.cropToContent(), nil
}

// ContentHeight is the height in pixels of everything drawn so far.
func (r *Raster) ContentHeight() int {
	return int(r.y)
}

// Width is the canvas width in pixels.
func (r *Raster) Width() int {
	return r.width
}

func (r *Raster) renderNode(n Node) error {
	switch n.Kind {
	case NodeText:
		return r.renderText(n)
	case NodeRow:
		return r.renderRow(n)
	case NodeDivider:
		return r.renderDivider(n)
	case NodeImage:
		return r.renderImage(n)
	case NodeBarcode:
		return r.renderBarcode(n)
	default:
		return fmt.Errorf("unsupported node kind: %s", n.Kind)
	}
}

func (r *Raster) cropToContent() image.Image {
	finalHeight := int(r.y) + BottomPaddingPx
	r.ensureHeight(BottomPaddingPx)

	img := r.ctx.Image()
	return img.(interface {
		SubImage(r image.Rectangle) image.Image
	}).SubImage(image.Rect(0, 0, r.width, finalHeight))
}

func (r *Raster) ensureHeight(neededHeight int) {
	if int(r.y)+neededHeight > r.height {
		newHeight := r.height * 2
		if newHeight < int(r.y)+neededHeight {
			newHeight = int(r.y) + neededHeight + 1000
		}

		newCtx := gg.NewContext(r.width, newHeight)
		newCtx.SetColor(color.White)
		newCtx.Clear()
		newCtx.DrawImage(r.ctx.Image(), 0, 0)

		r.ctx = newCtx
		r.height = newHeight
	}
}

// PaperWidthToPixels maps paper to printer dots at 203 dpi.
func PaperWidthToPixels(p receiptformat.PaperSize) int {
	switch p {
	case receiptformat.Paper58mm:
		return 384
	case receiptformat.Paper80mm:
		return 576
	case receiptformat.Paper112mm:
		return 832
	default:
		return int(p.WidthMM() * 8)
	}
}

func (r *Raster) findFont(name string) string {
	if r.fontDir != "" && name != "" {
		path := filepath.Join(r.fontDir, strings.ReplaceAll(name, " ", "")+"-Regular.ttf")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range systemFonts {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	// gg's built-in face is used when nothing is installed
	return ""
}

// setSize switches to the font at size points. Without a font file the
// built-in fixed face is kept.
func (r *Raster) setSize(size float64) {
	if r.fontPath == "" {
		return
	}
	face, ok := r.faces[size]
	if !ok {
		var err error
		face, err = gg.LoadFontFace(r.fontPath, size)
		if err != nil {
			r.fontPath = ""
			return
		}
		r.faces[size] = face
	}
	r.ctx.SetFontFace(face)
}

func (r *Raster) lineHeight() float64 {
	_, h := r.ctx.MeasureString("Mg")
	return h
}

func (r *Raster) renderText(n Node) error {
	r.setSize(r.baseSize * scaleOf(n))
	h := r.lineHeight()
	r.ensureHeight(int(h*1.5) + 1)

	textWidth, _ := r.ctx.MeasureString(n.Text)
	var x float64
	switch n.Align {
	case receiptformat.AlignCenter:
		x = float64(r.width)/2 - textWidth/2
	case receiptformat.AlignRight:
		x = float64(r.width) - textWidth - margin
	default:
		x = margin
	}

	r.drawString(n.Text, x, r.y+h, n.Bold)
	r.y += h * 1.5
	return nil
}

func (r *Raster) renderRow(n Node) error {
	r.setSize(r.baseSize * scaleOf(n))
	h := r.lineHeight()
	r.ensureHeight(int(h*1.5) + 1)

	rightWidth, _ := r.ctx.MeasureString(n.Right)
	r.drawString(n.Left, margin, r.y+h, n.Bold)
	r.drawString(n.Right, float64(r.width)-rightWidth-margin, r.y+h, n.Bold)

	r.y += h * 1.5
	return nil
}

func (r *Raster) drawString(s string, x, y float64, bold bool) {
	r.ctx.SetColor(r.color)
	r.ctx.DrawString(s, x, y)
	if bold {
		r.ctx.DrawString(s, x+1, y)
	}
}

func scaleOf(n Node) float64 {
	if n.Scale <= 0 {
		return 1
	}
	return n.Scale
}

var errBadColor = errors.New("bad color")

func parseHexColor(s string) color.Color {
	c, err := ParseColor(s)
	if err != nil {
		return color.Black
	}
	return c
}

// ParseColor reads #RGB or #RRGGBB.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, errBadColor
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, errBadColor
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
