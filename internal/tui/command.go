package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thereceipt/receipt-studio/internal/command"
)

// CommandModel handles command input
type CommandModel struct {
	executor   *command.Executor
	input      textinput.Model
	visible    bool
	lastResult *command.Result
	history    []string
	histPos    int
	width      int
	height     int
	scrollPos  int
}

// NewCommandModel creates a new command model
func NewCommandModel(executor *command.Executor) CommandModel {
	input := textinput.New()
	input.Placeholder = "Enter command (e.g., 'set 3 update_item index=0 name=Soda', 'help')"
	input.CharLimit = 500
	input.Prompt = ": "
	input.PromptStyle = lipgloss.NewStyle().Foreground(Stamp)

	return CommandModel{
		executor: executor,
		input:    input,
		width:    80,
	}
}

func (m *CommandModel) SetSize(width int) {
	if width < 40 {
		width = 40
	}
	m.width = width
	m.input.Width = width - 6
}

func (m *CommandModel) SetHeight(height int) {
	m.height = height
}

// Show opens the command line, optionally prefilled.
func (m *CommandModel) Show(prefill string) {
	m.visible = true
	m.input.Focus()
	m.input.SetValue(prefill)
	m.input.CursorEnd()
	m.lastResult = nil
	m.scrollPos = 0
	m.histPos = len(m.history)
}

func (m *CommandModel) Hide() {
	m.visible = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m *CommandModel) IsVisible() bool {
	return m.visible
}

// LastResult is the outcome of the most recent command.
func (m CommandModel) LastResult() *command.Result {
	return m.lastResult
}

func (m CommandModel) Update(msg tea.Msg) (CommandModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "enter":
		cmdStr := strings.TrimSpace(m.input.Value())
		if cmdStr == "" {
			return m, nil
		}
		m.lastResult = m.executor.Execute(context.Background(), cmdStr)
		m.history = append(m.history, cmdStr)
		m.histPos = len(m.history)
		m.input.SetValue("")
		m.scrollPos = 0
		return m, editedCmd

	case "esc":
		m.Hide()
		return m, nil

	case "up":
		if m.histPos > 0 {
			m.histPos--
			m.input.SetValue(m.history[m.histPos])
			m.input.CursorEnd()
		}
		return m, nil

	case "down":
		if m.histPos < len(m.history)-1 {
			m.histPos++
			m.input.SetValue(m.history[m.histPos])
		} else {
			m.histPos = len(m.history)
			m.input.SetValue("")
		}
		m.input.CursorEnd()
		return m, nil

	case "pgup":
		m.scrollPos = maxInt(0, m.scrollPos-5)
		return m, nil

	case "pgdown":
		m.scrollPos += 5
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m CommandModel) View() string {
	if !m.visible {
		return ""
	}

	availableHeight := m.height - 5
	if availableHeight < 1 {
		availableHeight = 1
	}

	var b strings.Builder
	b.WriteString(InputFocusedStyle.Width(m.width - 4).Render(m.input.View()))
	b.WriteString("\n")

	lines := m.resultLines()
	maxScroll := maxInt(0, len(lines)-availableHeight)
	start := m.scrollPos
	if start > maxScroll {
		start = maxScroll
	}
	end := start + availableHeight
	if end > len(lines) {
		end = len(lines)
	}
	for _, line := range lines[start:end] {
		b.WriteString(line)
		b.WriteString("\n")
	}

	help := "Enter to run, Esc to close, ↑/↓ history"
	if len(lines) > availableHeight {
		help += ", PgUp/PgDn to scroll"
	}
	b.WriteString(HelpStyle.Render(help))
	return b.String()
}

func (m CommandModel) resultLines() []string {
	res := m.lastResult
	if res == nil {
		return nil
	}
	if !res.Success {
		return wrapStyled(ErrorStyle, "✗ "+res.Error, m.width-4)
	}

	var lines []string
	for _, line := range strings.Split(res.Message, "\n") {
		lines = append(lines, wrapStyled(SuccessStyle, line, m.width-4)...)
	}

	keys := make([]string, 0, len(res.Data))
	for k := range res.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "document" || k == "sections" {
			continue
		}
		lines = append(lines, Dim.Render(fmt.Sprintf("  %s: %v", k, res.Data[k])))
	}
	return lines
}

func wrapStyled(style lipgloss.Style, text string, width int) []string {
	if len(text) <= width {
		return []string{style.Render(text)}
	}
	var out []string
	for _, line := range wrapText(text, width) {
		out = append(out, style.Render(line))
	}
	return out
}

// wrapText wraps text to fit within a given width
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	currentLine := words[0]
	for _, word := range words[1:] {
		if len(currentLine)+1+len(word) <= width {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	return append(lines, currentLine)
}
