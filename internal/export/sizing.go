package export

import (
	"math"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

type SizingMode string

const (
	// SizingFixed uses the paper's page dimensions.
	SizingFixed SizingMode = "fixed"
	// SizingThermal uses the paper width and the measured content height.
	SizingThermal SizingMode = "thermal"
)

// ThermalBufferMM is added below the measured content of thermal exports.
const ThermalBufferMM = 2.0

// cssPxPerMM is the CSS reference pixel density (96 px per inch).
const cssPxPerMM = 96 / 25.4

// Sizing is the page geometry policy for one export.
type Sizing struct {
	Mode     SizingMode
	WidthMM  float64
	HeightMM float64 // fixed mode only
}

// SizingFor picks the policy for a paper size.
func SizingFor(p receiptformat.PaperSize) Sizing {
	switch p {
	case receiptformat.PaperA4:
		return Sizing{Mode: SizingFixed, WidthMM: 210, HeightMM: 297}
	case receiptformat.PaperLetter:
		return Sizing{Mode: SizingFixed, WidthMM: 215.9, HeightMM: 279.4}
	default:
		return Sizing{Mode: SizingThermal, WidthMM: p.WidthMM()}
	}
}

// PageHeightMM returns the page height for content of contentMM: the content
// plus ThermalBufferMM on thermal paper, the fixed height otherwise.
func (s Sizing) PageHeightMM(contentMM float64) float64 {
	if s.Mode == SizingThermal {
		return contentMM + ThermalBufferMM
	}
	return s.HeightMM
}

// Pages is how many pages content of contentMM occupies.
func (s Sizing) Pages(contentMM float64) int {
	if s.Mode == SizingThermal || s.HeightMM <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(contentMM/s.HeightMM)))
}

// CSSPixelsToMM converts CSS pixels to millimetres.
func CSSPixelsToMM(px float64) float64 {
	return px / cssPxPerMM
}
