package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette: dark chrome around a paper-coloured preview.
var (
	Thermal = lipgloss.Color("#0EA5E9") // accent, status segments
	Stamp   = lipgloss.Color("#F472B6") // prompts and keys
	Pending = lipgloss.Color("#D97706")
	Success = lipgloss.Color("#22C55E")
	Error   = lipgloss.Color("#DC2626")

	BgBar      = lipgloss.Color("#1F2937")
	BgSelected = lipgloss.Color("#374151")
	BgRail     = lipgloss.Color("#111827")
	BgAlert    = lipgloss.Color("#450A0A")
	BgPaper    = lipgloss.Color("#FFFBEB")

	colorFgStrong = lipgloss.Color("#F9FAFB")
	colorFg       = lipgloss.Color("#D1D5DB")
	colorFgDim    = lipgloss.Color("#6B7280")
	colorInk      = lipgloss.Color("#292524")
)

var Dim = lipgloss.NewStyle().Foreground(colorFgDim)

var (
	SidebarStyle = lipgloss.NewStyle().
			Background(BgRail).
			Foreground(colorFg).
			Padding(1, 0).
			BorderRight(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(BgSelected)

	ContentStyle = lipgloss.NewStyle().Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Thermal).
			PaddingLeft(1)

	PaneTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(colorFgStrong).
			MarginBottom(1)

	ListItemStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			PaddingLeft(2)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(colorFgStrong).
				Background(BgSelected).
				Bold(true).
				PaddingLeft(2)

	PaperStyle = lipgloss.NewStyle().
			Foreground(colorInk).
			Background(BgPaper).
			Padding(1, 2)

	InputFocusedStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(Stamp).
				Padding(0, 1)

	HelpStyle    = lipgloss.NewStyle().Foreground(colorFgDim)
	HelpKeyStyle = lipgloss.NewStyle().Foreground(Stamp).Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
)

// RenderHelp formats one "key description" hint.
func RenderHelp(key, desc string) string {
	return HelpKeyStyle.Render(key) + HelpStyle.Render(" "+desc)
}

// clip shortens s to max runes, marking the cut with an ellipsis.
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
