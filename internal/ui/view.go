package ui

import (
	"strings"

	"gyankosh/internal/chat"
	"gyankosh/internal/config"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type resource struct {
	Name string
	URL  string
}

var resources = []resource{
	{Name: "IITKGP ERP", URL: "https://erp.iitkgp.ac.in/"},
	{Name: "GitHub Repository", URL: "https://github.com/Bikram-ghuku/metaGyankosh"},
	{Name: "metaKGP Wiki", URL: "http://wiki.metakgp.org/"},
	{Name: "metaKGP", URL: "https://metakgp.org/"},
}

const clearPrompt = "Are you sure you want to clear all chat history? (y/n)"

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	side, main := m.paneWidths()
	body := m.bodyHeight()

	inputPanel := inputPanelStyle(m.confirming).Width(main - 2).Height(m.inputLines)
	var inputView string
	if m.confirming {
		inputView = inputPanel.Render(confirmStyle.Render(clearPrompt))
	} else {
		inputView = inputPanel.Render(m.input.View())
	}
	chatView := panelStyle.Width(main - 2).Height(m.viewport.Height).Render(m.viewport.View())
	mainCol := lipgloss.JoinVertical(lipgloss.Left, chatView, inputView)

	row := mainCol
	if side > 0 {
		sidebar := panelStyle.Width(side - 2).Height(body - 2).Render(m.sidebarView(side - 4))
		row = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, mainCol)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		row,
		m.help.View(m.keys),
	)
}

func (m Model) statusLine() string {
	status := "Knowledge Assistant  " + m.healthBadge()
	if m.conv.Awaiting() {
		status += "  [thinking]"
	}
	if strings.TrimSpace(m.status) != "" {
		status += "  " + shorten(strings.TrimSpace(m.status), 80)
	}
	return statusStyle.Width(m.width).Render(ansi.Truncate(status, m.width-2, "…"))
}

func (m Model) healthBadge() string {
	switch {
	case !m.healthKnown:
		return "● checking " + m.cfg.BaseURL
	case m.healthErr != nil:
		return "● offline"
	default:
		return "● online"
	}
}

func (m Model) sidebarView(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("metaGyankosh"))
	b.WriteString("\n\n")
	b.WriteString(sectionStyle.Render("RESOURCES"))
	b.WriteString("\n")
	for _, r := range resources {
		name := ansi.Truncate(r.Name, width-2, "…")
		b.WriteString(ansi.SetHyperlink(r.URL) + linkStyle.Render(name+" ↗") + ansi.ResetHyperlink())
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(ansi.Truncate(r.URL, width, "…")))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dangerStyle.Render("ctrl+l  Clear History"))
	return b.String()
}

// refreshTranscript rebuilds the viewport content from conversation state.
func (m *Model) refreshTranscript(follow bool) {
	m.viewport.SetContent(m.transcriptView())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) transcriptView() string {
	width := m.viewport.Width
	msgs := m.conv.Messages()
	awaiting := m.conv.Awaiting()

	if len(msgs) == 0 && !awaiting {
		empty := lipgloss.JoinVertical(lipgloss.Center,
			welcomeStyle.Render("Welcome to metaGyankosh"),
			dimStyle.Render("Ask me anything to get started!"),
		)
		return lipgloss.Place(width, m.viewport.Height, lipgloss.Center, lipgloss.Center, empty)
	}

	blocks := make([]string, 0, len(msgs)+1)
	for _, msg := range msgs {
		blocks = append(blocks, m.messageBlock(msg, width))
	}
	if awaiting {
		thinking := assistantBubble.Render(m.spinner.View() + " Thinking...")
		blocks = append(blocks, labelStyle.Render("Assistant")+"\n"+thinking)
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) messageBlock(msg chat.Message, width int) string {
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 20 {
		bubbleWidth = width
	}

	if msg.Role == chat.RoleUser {
		w := lipgloss.Width(msg.Content) + 2
		if w > bubbleWidth {
			w = bubbleWidth
		}
		body := userBubble.Width(w).Render(msg.Content)
		label := labelStyle.Render("You")
		block := lipgloss.JoinVertical(lipgloss.Right, label, body)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}

	return labelStyle.Render("Assistant") + "\n" + m.renderAnswer(msg, width)
}

// renderAnswer renders assistant content as Markdown, caching by message id.
// Falls back to a plain bubble when rendering is disabled or fails.
func (m *Model) renderAnswer(msg chat.Message, width int) string {
	if m.cfg.Plain {
		return assistantBubble.Width(width * 3 / 4).Render(msg.Content)
	}
	if m.md == nil || m.mdWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(width-4),
		)
		if err != nil {
			return assistantBubble.Width(width * 3 / 4).Render(msg.Content)
		}
		m.md = r
		m.mdWidth = width
		m.rendered = make(map[int64]string)
	}
	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}
	out, err := m.md.Render(msg.Content)
	if err != nil {
		return assistantBubble.Width(width * 3 / 4).Render(msg.Content)
	}
	out = strings.Trim(out, "\n")
	m.rendered[msg.ID] = out
	return out
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("105"))
	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("244"))
	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
	dangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
	welcomeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("250"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
	userBubble = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	assistantBubble = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
	confirmStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))
)

func inputPanelStyle(confirming bool) lipgloss.Style {
	color := lipgloss.Color("62")
	if confirming {
		color = lipgloss.Color("203")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true).
		BorderForeground(color).
		Padding(0, 1)
}
