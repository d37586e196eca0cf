package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thereceipt/receipt-studio/internal/editor"
	"github.com/thereceipt/receipt-studio/internal/session"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// SectionsModel lists the document's sections and edits their order.
type SectionsModel struct {
	sess         *session.Session
	sections     []receiptformat.Section
	cursor       int
	scrollOffset int
	width        int
	height       int
	message      string
	failed       bool
}

func NewSectionsModel(sess *session.Session) SectionsModel {
	m := SectionsModel{sess: sess}
	m.Refresh()
	return m
}

func (m *SectionsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.adjustScroll()
}

// Refresh reloads the section list from the session.
func (m *SectionsModel) Refresh() {
	doc := m.sess.Document()
	m.sections = doc.Sections
	if m.cursor >= len(m.sections) {
		m.cursor = len(m.sections) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.adjustScroll()
}

// Selected returns the highlighted section's id.
func (m SectionsModel) Selected() string {
	if m.cursor < 0 || m.cursor >= len(m.sections) {
		return ""
	}
	return m.sections[m.cursor].ID
}

func (m *SectionsModel) report(err error, ok string) {
	if err != nil {
		m.message = err.Error()
		m.failed = true
		return
	}
	m.message = ok
	m.failed = false
}

func (m SectionsModel) Update(msg tea.Msg) (SectionsModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	id := m.Selected()
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.sections)-1 {
			m.cursor++
		}
	case "K", "shift+up":
		if m.cursor > 0 {
			err := m.sess.ReorderSections(m.cursor, m.cursor-1)
			m.report(err, "Moved up")
			if err == nil {
				m.cursor--
			}
		}
	case "J", "shift+down":
		if m.cursor < len(m.sections)-1 {
			err := m.sess.ReorderSections(m.cursor, m.cursor+1)
			m.report(err, "Moved down")
			if err == nil {
				m.cursor++
			}
		}
	case "d":
		_, err := m.sess.DuplicateSection(id)
		m.report(err, "Duplicated")
		if err == nil {
			m.cursor++
		}
	case "x", "delete":
		m.report(m.sess.RemoveSection(id), "Removed")
	default:
		return m, nil
	}

	m.Refresh()
	return m, editedCmd
}

func (m *SectionsModel) adjustScroll() {
	visible := m.visibleLines()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	} else if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m SectionsModel) visibleLines() int {
	v := m.height - 6
	if v < 1 {
		v = 1
	}
	return v
}

func (m SectionsModel) View() string {
	var b strings.Builder

	b.WriteString(PaneTitleStyle.Render("Sections"))
	b.WriteString("\n")

	end := m.scrollOffset + m.visibleLines()
	if end > len(m.sections) {
		end = len(m.sections)
	}
	for i := m.scrollOffset; i < end; i++ {
		sec := m.sections[i]
		line := fmt.Sprintf("%2d  %-15s %s", i, editor.Describe(sec.Body).Label, summary(sec))
		line = clip(line, maxInt(10, m.width-4))
		if i == m.cursor {
			b.WriteString(SelectedItemStyle.Render(line))
		} else {
			b.WriteString(ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.message != "" {
		b.WriteString("\n")
		if m.failed {
			b.WriteString(ErrorStyle.Render(m.message))
		} else {
			b.WriteString(SuccessStyle.Render(m.message))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(RenderHelp("j/k", "select") + "  " + RenderHelp("J/K", "move") + "  " +
		RenderHelp("d", "duplicate") + "  " + RenderHelp("x", "remove"))
	return b.String()
}

// summary is a one-line hint of what a section says.
func summary(sec receiptformat.Section) string {
	switch b := sec.Body.(type) {
	case *receiptformat.HeaderSection:
		return b.BusinessName
	case *receiptformat.DateTimeSection:
		return b.DateTime.Format("2006-01-02 15:04")
	case *receiptformat.CustomMessageSection:
		return strings.ReplaceAll(b.Message, "\n", " ")
	case *receiptformat.TwoColumnSection:
		return fmt.Sprintf("%d rows", maxInt(len(b.Left), len(b.Right)))
	case *receiptformat.ItemsListSection:
		return fmt.Sprintf("%d items, %s %s", len(b.Items), b.Total.Title, b.Total.Value)
	case *receiptformat.PaymentSection:
		return string(b.Method)
	case *receiptformat.BarcodeSection:
		return fmt.Sprintf("%s %s", b.Format, b.Value)
	}
	return ""
}
