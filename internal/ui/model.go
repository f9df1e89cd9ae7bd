package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"gyankosh/internal/chat"
	"gyankosh/internal/clipboard"
	"gyankosh/internal/config"
	"gyankosh/internal/export"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
)

const (
	sidebarWidth  = 32
	minInputLines = 1
	maxInputLines = 5
)

// Backend is the remote side of the chat: answering questions and reporting
// whether it is reachable.
type Backend interface {
	chat.Asker
	Health(ctx context.Context) error
}

type Model struct {
	cfg      config.AppConfig
	conv     *chat.Conversation
	backend  Backend
	exporter *export.Exporter
	copyText func(string) error

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	width      int
	height     int
	inputLines int

	confirming  bool
	healthKnown bool
	healthErr   error

	md       *glamour.TermRenderer
	mdWidth  int
	rendered map[int64]string

	status string
}

type answerMsg chat.Result

type healthMsg struct{ err error }

type exportMsg struct {
	path string
	err  error
}

type copyMsg struct{ err error }

func NewModel(cfg config.AppConfig, conv *chat.Conversation, backend Backend, exp *export.Exporter) Model {
	vp := viewport.New(60, 20)

	ta := textarea.New()
	ta.Placeholder = "Ask me anything..."
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(minInputLines)
	ta.KeyMap.InsertNewline = defaultKeys().Newline
	ta.Focus()

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	m := Model{
		cfg:        cfg,
		conv:       conv,
		backend:    backend,
		exporter:   exp,
		copyText:   clipboard.Copy,
		viewport:   vp,
		input:      ta,
		spinner:    sp,
		help:       h,
		keys:       defaultKeys(),
		inputLines: minInputLines,
		rendered:   make(map[int64]string),
	}
	m.refreshTranscript(true)
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.healthCmd()}
	if m.conv.Awaiting() {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m Model) askCmd(turn *chat.Turn) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		return answerMsg(chat.Await(backend, turn))
	}
}

func (m Model) healthCmd() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return healthMsg{err: backend.Health(ctx)}
	}
}

func (m Model) exportCmd() tea.Cmd {
	if m.exporter == nil {
		return nil
	}
	log := m.conv.Messages()
	exp := m.exporter
	return func() tea.Msg {
		path, err := exp.Export(log)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd() tea.Cmd {
	answer, ok := m.conv.LastAnswer()
	if !ok {
		return func() tea.Msg { return copyMsg{err: errors.New("no answer to copy yet")} }
	}
	copyText := m.copyText
	return func() tea.Msg {
		return copyMsg{err: copyText(answer)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refreshTranscript(true)
		return m, nil

	case answerMsg:
		res := chat.Result(msg)
		if _, ok := m.conv.Settle(res); !ok {
			m.status = "Discarded a reply that arrived after history was cleared"
		} else if res.Err != nil {
			m.status = "Request failed"
			cmds = append(cmds, m.healthCmd())
		} else {
			m.status = ""
		}
		m.refreshTranscript(true)
		return m, tea.Batch(cmds...)

	case healthMsg:
		m.healthKnown = true
		m.healthErr = msg.err
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}
		return m, nil

	case copyMsg:
		if msg.err != nil {
			if errors.Is(msg.err, clipboard.ErrUnavailable) {
				m.status = "Could not copy: clipboard tool not found"
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied last answer to clipboard"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.conv.Awaiting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshTranscript(m.viewport.AtBottom())
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.conv.Close()
			return m, tea.Quit
		}
		if m.confirming {
			m.confirming = false
			switch msg.String() {
			case "y", "Y":
				m.conv.Clear()
				m.rendered = make(map[int64]string)
				m.status = "Chat history cleared"
			default:
				m.status = "Clear cancelled"
			}
			m.refreshTranscript(true)
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Send):
			return m, m.submit()
		case key.Matches(msg, m.keys.Clear):
			m.confirming = true
			return m, nil
		case key.Matches(msg, m.keys.Export):
			return m, m.exportCmd()
		case key.Matches(msg, m.keys.Copy):
			return m, m.copyCmd()
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
			return m, nil
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.autoGrowInput()

	return m, tea.Batch(cmds...)
}

// submit sends the draft unless a request is already outstanding or the draft
// is blank. In both of those cases the draft is kept.
func (m *Model) submit() tea.Cmd {
	if m.conv.Awaiting() {
		m.status = "Still waiting for the previous answer"
		return nil
	}
	turn, err := m.conv.Submit(context.Background(), m.input.Value())
	if err != nil {
		if !errors.Is(err, chat.ErrEmptyMessage) {
			m.status = err.Error()
		}
		return nil
	}

	m.input.Reset()
	m.autoGrowInput()
	m.status = ""
	m.refreshTranscript(true)
	return tea.Batch(m.askCmd(turn), m.spinner.Tick)
}

// autoGrowInput sizes the input box to its wrapped content, between
// minInputLines and maxInputLines.
func (m *Model) autoGrowInput() {
	lines := visualLineCount(m.input.Value(), m.input.Width())
	if lines < minInputLines {
		lines = minInputLines
	}
	if lines > maxInputLines {
		lines = maxInputLines
	}
	if lines == m.inputLines {
		return
	}
	m.inputLines = lines
	m.input.SetHeight(lines)
	m.resize()
	m.refreshTranscript(true)
}

func visualLineCount(s string, width int) int {
	if width <= 0 {
		width = 1
	}
	n := 0
	for _, line := range strings.Split(s, "\n") {
		w := ansi.StringWidth(line)
		n += w/width + 1
	}
	return n
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, main := m.paneWidths()

	inner := main - 4
	if inner < 10 {
		inner = 10
	}
	m.input.SetWidth(inner)

	vpHeight := m.bodyHeight() - (m.inputLines + 2) - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = inner
	m.viewport.Height = vpHeight
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < 8 {
		h = 8
	}
	return h
}

// paneWidths returns the outer widths of the sidebar and main column. The
// sidebar is dropped on narrow terminals.
func (m Model) paneWidths() (int, int) {
	if m.width < sidebarWidth+40 {
		return 0, m.width
	}
	return sidebarWidth, m.width - sidebarWidth
}

// shorten truncates s to n display cells.
func shorten(s string, n int) string {
	return ansi.Truncate(strings.TrimSpace(s), n, "…")
}
