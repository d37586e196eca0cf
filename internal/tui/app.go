// Package tui is a terminal receipt editor over a local session.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thereceipt/receipt-studio/internal/command"
	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/session"
)

// Tab represents a navigation tab
type Tab int

const (
	TabSections Tab = iota
	TabPreview
)

func (t Tab) String() string {
	return []string{"Sections", "Preview"}[t]
}

const sidebarWidth = 24

// Messages
type tickMsg time.Time
type editedMsg struct{}
type logMsg struct {
	message string
	level   string
}
type busyMsg bool

func editedCmd() tea.Msg { return editedMsg{} }

// App is the main Bubble Tea model
type App struct {
	sess *session.Session
	bus  *events.Bus

	activeTab Tab
	width     int
	height    int
	ready     bool
	quitting  bool
	busy      bool

	logs    []logEntry
	maxLogs int

	spinner  spinner.Model
	sections SectionsModel
	preview  PreviewModel
	command  CommandModel

	outDir    string
	startTime time.Time
}

type logEntry struct {
	time    time.Time
	message string
	level   string
}

// NewApp creates a new Bubble Tea TUI application
func NewApp(sess *session.Session, bus *events.Bus) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Thermal)

	return &App{
		sess:      sess,
		bus:       bus,
		activeTab: TabSections,
		maxLogs:   100,
		spinner:   s,
		sections:  NewSectionsModel(sess),
		preview:   NewPreviewModel(sess),
		command:   NewCommandModel(command.NewExecutor(sess)),
		outDir:    ".",
		startTime: time.Now(),
	}
}

// SetOutputDir sets where ctrl+e writes exported PDFs.
func (a *App) SetOutputDir(dir string) {
	a.outDir = dir
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.tickCmd())
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// background runs fn off the UI goroutine and logs its outcome.
func (a *App) background(label string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		msg, err := fn(ctx)
		if err != nil {
			return logMsg{message: label + " failed: " + err.Error(), level: "error"}
		}
		return logMsg{message: msg, level: "success"}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.command.IsVisible() {
			var cmd tea.Cmd
			a.command, cmd = a.command.Update(msg)
			return a, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			a.quitting = true
			return a, tea.Quit
		case ":":
			a.openCommand("")
			return a, nil
		case "a":
			a.openCommand("add ")
			return a, nil
		case "e":
			a.openCommand(fmt.Sprintf("set %s ", a.sections.Selected()))
			return a, nil
		case "1":
			a.activeTab = TabSections
			return a, nil
		case "2":
			a.activeTab = TabPreview
			return a, nil
		case "tab", "shift+tab":
			a.activeTab = (a.activeTab + 1) % 2
			return a, nil
		case "ctrl+s":
			a.sess.Flush()
			if a.sess.Dirty() {
				a.addLog("Draft not saved", "error")
			} else {
				a.addLog("Draft saved", "success")
			}
			return a, nil
		case "ctrl+p":
			return a, a.background("Print", func(ctx context.Context) (string, error) {
				return "Sent to printer", a.sess.Print(ctx)
			})
		case "ctrl+e":
			return a, a.background("Export", func(ctx context.Context) (string, error) {
				art, err := a.sess.Export(ctx, export.FormatPDF)
				if err != nil {
					return "", err
				}
				path := filepath.Join(a.outDir, fmt.Sprintf("%s-%d.pdf", a.sess.TemplateID(), art.Revision))
				if err := os.WriteFile(path, art.Data, 0o644); err != nil {
					return "", fmt.Errorf("failed to write %s: %w", path, err)
				}
				return fmt.Sprintf("Exported %s (%d bytes)", path, len(art.Data)), nil
			})
		}

		switch a.activeTab {
		case TabSections:
			var cmd tea.Cmd
			a.sections, cmd = a.sections.Update(msg)
			cmds = append(cmds, cmd)
		case TabPreview:
			var cmd tea.Cmd
			a.preview, cmd = a.preview.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.resize()

	case editedMsg:
		a.sections.Refresh()
		a.preview.Refresh()
		if res := a.command.LastResult(); res != nil && a.command.IsVisible() {
			if res.Success {
				a.addLog(firstLine(res.Message), "success")
			} else {
				a.addLog(res.Error, "error")
			}
		}

	case tickMsg:
		if a.preview.revision != a.sess.Revision() {
			a.sections.Refresh()
			a.preview.Refresh()
		}
		cmds = append(cmds, a.tickCmd())

	case logMsg:
		a.busy = false
		a.addLog(msg.message, msg.level)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) openCommand(prefill string) {
	a.command.Show(prefill)
	a.resize()
}

func (a *App) resize() {
	contentWidth := maxInt(20, a.width-sidebarWidth-1)
	contentHeight := maxInt(1, a.height-a.bottomAreaHeight())

	a.sections.SetSize(contentWidth, contentHeight)
	a.preview.SetSize(contentWidth, contentHeight)
	a.command.SetSize(a.width)
	a.command.SetHeight(a.bottomAreaHeight())
}

func (a *App) View() string {
	if a.quitting {
		return "\n  Goodbye!\n\n"
	}
	if !a.ready {
		return "\n  Loading...\n"
	}

	contentHeight := maxInt(1, a.height-a.bottomAreaHeight())
	contentWidth := maxInt(20, a.width-sidebarWidth-1)

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		a.renderSidebar(contentHeight),
		a.renderContent(contentWidth, contentHeight))

	var bottom string
	if a.command.IsVisible() {
		bottom = lipgloss.NewStyle().Background(BgBar).Width(a.width).Height(a.bottomAreaHeight()).
			Render(a.command.View())
	} else {
		bottom = a.renderStatusBar()
	}

	lines := strings.Split(lipgloss.JoinVertical(lipgloss.Left, top, bottom), "\n")
	for len(lines) < a.height {
		lines = append(lines, strings.Repeat(" ", a.width))
	}
	if len(lines) > a.height {
		lines = lines[:a.height]
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderSidebar(height int) string {
	doc := a.sess.Document()

	var lines []string
	lines = append(lines, TitleStyle.Render("Receipt Studio"))
	lines = append(lines, Dim.Render(clip(doc.Name, sidebarWidth-2)))
	lines = append(lines, "")

	for i, t := range []Tab{TabSections, TabPreview} {
		item := fmt.Sprintf(" %d %s", i+1, t)
		if pad := sidebarWidth - lipgloss.Width(item) - 2; pad > 0 {
			item += strings.Repeat(" ", pad)
		}
		if t == a.activeTab {
			lines = append(lines, SelectedItemStyle.PaddingLeft(0).Render(item))
		} else {
			lines = append(lines, Dim.Render(item))
		}
	}

	lines = append(lines, "", Dim.Render(" KEYS"))
	for _, h := range [][2]string{{":", "command"}, {"a", "add"}, {"e", "edit"}, {"^S", "save draft"}, {"^E", "export"}, {"^P", "print"}, {"q", "quit"}} {
		lines = append(lines, " "+RenderHelp(h[0], h[1]))
	}

	return SidebarStyle.Width(sidebarWidth).Height(height).Render(strings.Join(lines, "\n"))
}

func (a *App) renderContent(width, height int) string {
	var content string
	switch a.activeTab {
	case TabSections:
		content = a.sections.View()
	case TabPreview:
		content = a.preview.View()
	}

	lines := strings.Split(content, "\n")
	if len(lines) > height {
		content = strings.Join(lines[:height], "\n")
	}
	return ContentStyle.Width(width).Height(height).Render(content)
}

func (a *App) renderStatusBar() string {
	base := lipgloss.NewStyle().Background(BgBar).Foreground(colorFg)
	seg := func(text string, bg lipgloss.Color) string {
		return lipgloss.NewStyle().Foreground(colorFgStrong).Background(bg).Padding(0, 1).Render(text)
	}
	pipe := base.Render(" | ")

	state := seg("saved", Success)
	if a.sess.Dirty() {
		state = seg("editing", Pending)
	}
	if a.busy {
		state = seg(a.spinner.View()+" working", Thermal)
	}

	left := seg(a.sess.TemplateID(), Thermal) + pipe +
		seg(fmt.Sprintf("rev %d", a.sess.Revision()), BgSelected) + pipe +
		seg(string(a.sess.Source()), BgSelected) + pipe + state + pipe

	msgText, msgBg := "ready", BgBar
	if len(a.logs) > 0 {
		last := a.logs[len(a.logs)-1]
		msgText = last.message
		switch last.level {
		case "error":
			msgBg = Error
		case "success":
			msgBg = Success
		default:
			msgBg = BgAlert
		}
	}

	uptime := time.Since(a.startTime)
	up := seg(fmt.Sprintf("up %02d:%02d", int(uptime.Hours()), int(uptime.Minutes())%60), Thermal)

	remaining := maxInt(10, a.width-lipgloss.Width(left)-lipgloss.Width(pipe)-lipgloss.Width(up)-2)
	msg := seg(clip(msgText, remaining), msgBg)

	gap := maxInt(1, a.width-lipgloss.Width(left+msg)-lipgloss.Width(pipe)-lipgloss.Width(up))
	return base.Width(a.width).Render(left + msg + strings.Repeat(" ", gap) + pipe + up)
}

func (a *App) bottomAreaHeight() int {
	if a.command.IsVisible() {
		h := a.height / 3
		if h < 6 {
			h = 6
		}
		if h > 12 {
			h = 12
		}
		return h
	}
	return 1
}

func (a *App) addLog(message, level string) {
	a.logs = append(a.logs, logEntry{time: time.Now(), message: message, level: level})
	if len(a.logs) > a.maxLogs {
		a.logs = a.logs[1:]
	}
}

// Run starts the TUI. Draft and export events from the bus show up in the
// status line.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())

	id := a.sess.ID()
	unsubDraft := events.Subscribe(a.bus, events.DraftSavedTopic, func(e events.DraftSaved) {
		if e.SessionID == id && e.Err != nil {
			p.Send(logMsg{message: "Draft write failed: " + e.Err.Error(), level: "error"})
		}
	})
	defer unsubDraft()
	unsubExport := events.Subscribe(a.bus, events.ExportFinishedTopic, func(e events.ExportFinished) {
		if e.SessionID == id && e.Err != nil {
			p.Send(logMsg{message: "Export failed: " + e.Err.Error(), level: "error"})
		}
	})
	defer unsubExport()

	_, err := p.Run()
	return err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
