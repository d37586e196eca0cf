package renderer

import (
	"strings"
)

// renderDivider repeats the style string across the printable width. The
// blank style advances one line without drawing.
func (r *Raster) renderDivider(n Node) error {
	r.setSize(r.baseSize)
	h := r.lineHeight()
	r.ensureHeight(int(h*1.5) + 1)

	style := string(n.Style)
	if style != "" {
		unit, _ := r.ctx.MeasureString(style)
		avail := float64(r.width) - 2*margin
		if unit > 0 {
			line := strings.Repeat(style, int(avail/unit))
			w, _ := r.ctx.MeasureString(line)
			r.drawString(line, float64(r.width)/2-w/2, r.y+h, false)
		}
	}

	r.y += h * 1.5
	return nil
}
