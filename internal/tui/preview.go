package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thereceipt/receipt-studio/internal/renderer"
	"github.com/thereceipt/receipt-studio/internal/session"
)

// PreviewModel shows the receipt as monospace text on a paper-colored card.
type PreviewModel struct {
	sess     *session.Session
	viewport viewport.Model
	revision uint64
	text     string
	err      error
}

func NewPreviewModel(sess *session.Session) PreviewModel {
	m := PreviewModel{sess: sess, viewport: viewport.New(40, 20)}
	m.Refresh()
	return m
}

func (m *PreviewModel) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = maxInt(1, height-2)
}

// Refresh re-renders the document.
func (m *PreviewModel) Refresh() {
	doc := m.sess.Document()
	m.revision = m.sess.Revision()

	tree, err := renderer.Build(&doc)
	if err != nil {
		m.err = err
		m.viewport.SetContent(ErrorStyle.Render(err.Error()))
		return
	}
	m.err = nil
	m.text = renderer.Plain(tree, 0)
	m.viewport.SetContent(PaperStyle.Render(m.text))
}

// Text is the last rendered receipt.
func (m PreviewModel) Text() string {
	return m.text
}

func (m PreviewModel) Update(msg tea.Msg) (PreviewModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m PreviewModel) View() string {
	return PaneTitleStyle.Render("Preview") + "\n" + m.viewport.View()
}
