package renderer

import (
	"strings"
	"unicode/utf8"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// CharsPerLine is the monospace line width used for plain text output.
func CharsPerLine(p receiptformat.PaperSize) int {
	switch p {
	case receiptformat.Paper58mm:
		return 32
	case receiptformat.Paper112mm:
		return 64
	default:
		return 48
	}
}

// Plain draws the tree as fixed-width text, cols characters per line.
// cols <= 0 picks the width from the paper size.
func Plain(t *Tree, cols int) string {
	if cols <= 0 {
		cols = CharsPerLine(t.Settings.PaperSize)
	}

	var sb strings.Builder
	for _, n := range t.Nodes() {
		for _, line := range plainNode(n, cols) {
			sb.WriteString(strings.TrimRight(line, " "))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func plainNode(n Node, cols int) []string {
	switch n.Kind {
	case NodeText:
		var out []string
		for _, line := range wrap(n.Text, cols) {
			out = append(out, align(line, n.Align, cols))
		}
		return out
	case NodeRow:
		return []string{row(n.Left, n.Right, cols)}
	case NodeDivider:
		return []string{DividerLine(n.Style, cols)}
	case NodeImage:
		return []string{align("[logo]", n.Align, cols)}
	case NodeBarcode:
		if n.BarcodeFormat == receiptformat.BarcodeQR {
			return []string{align("[QR "+n.Value+"]", receiptformat.AlignCenter, cols)}
		}
		bars := strings.Repeat("|", max(1, cols*n.WidthPercent/100))
		return []string{
			align(bars, receiptformat.AlignCenter, cols),
			align(n.Value, receiptformat.AlignCenter, cols),
		}
	}
	return nil
}

// DividerLine repeats style across width characters. The blank style
// yields an empty line.
func DividerLine(style receiptformat.DividerStyle, width int) string {
	s := string(style)
	if s == "" || width <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	line := strings.Repeat(s, width/n+1)
	return string([]rune(line)[:width])
}

func align(s string, a receiptformat.Alignment, cols int) string {
	pad := cols - utf8.RuneCountInString(s)
	if pad <= 0 {
		return s
	}
	switch a {
	case receiptformat.AlignCenter:
		return strings.Repeat(" ", pad/2) + s
	case receiptformat.AlignRight:
		return strings.Repeat(" ", pad) + s
	default:
		return s
	}
}

func row(left, right string, cols int) string {
	rw := utf8.RuneCountInString(right)
	room := cols - rw - 1
	if room < 1 {
		return left + " " + right
	}
	lr := []rune(left)
	if len(lr) > room {
		lr = lr[:room]
	}
	return string(lr) + strings.Repeat(" ", cols-len(lr)-rw) + right
}

// wrap breaks s on spaces so no line exceeds cols runes; single words
// longer than cols are split.
func wrap(s string, cols int) []string {
	if utf8.RuneCountInString(s) <= cols {
		return []string{s}
	}

	var lines []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > cols {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(w[:cols]))
			w = w[cols:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= cols:
			cur = append(append(cur, ' '), w...)
		default:
			lines = append(lines, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
