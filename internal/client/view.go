package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"
)

type styles struct {
	status lipgloss.Style
	log    lipgloss.Style
	typing lipgloss.Style
}

func newStyles() styles {
	return styles{
		status: lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true),
		log:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		typing: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Italic(true),
	}
}

var banner = buildBanner()

func buildBanner() string {
	fig := figure.NewFigure("ChatWave", "standard", true)
	var b strings.Builder
	b.WriteString(fig.String())
	b.WriteString("\n")
	b.WriteString("/hello <name> [password]   sign in\n")
	b.WriteString("/join <room>               join a room\n")
	b.WriteString("/create <room> [desc]      create a room (admin)\n")
	b.WriteString("/history [before-seq]      page older messages\n")
	b.WriteString("/leave                     leave the room\n")
	b.WriteString("/quit                      exit\n")
	return b.String()
}

// View renders the message viewport, input line, and status bar.
func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.viewport.View())
	b.WriteString("\n")
	b.WriteString(a.input.View())
	b.WriteString("\n")
	if a.typing != "" {
		b.WriteString(a.styles.typing.Render(a.typing))
	} else {
		b.WriteString(a.styles.log.Render(a.logLine))
	}
	b.WriteString("\n")
	b.WriteString(a.styles.status.Render(a.statusLine()))
	return b.String()
}

func (a *App) statusLine() string {
	state := "offline"
	if a.connected {
		state = a.cfg.ServerAddr
	}
	user := a.username
	if user == "" {
		user = "-"
	}
	room := a.room
	if room == "" {
		room = "-"
	}
	return fmt.Sprintf(" %s | user %s | room %s ", state, user, room)
}

func (a *App) resize() {
	const fixed = 3
	a.viewport.Width = a.width
	height := a.height - fixed
	if height < 1 {
		height = 1
	}
	a.viewport.Height = height
	a.input.Width = a.width
	a.refresh()
}

func (a *App) refresh() {
	if len(a.messages) == 0 {
		a.viewport.SetContent(banner)
		return
	}
	a.viewport.SetContent(strings.Join(a.messages, "\n"))
	a.viewport.GotoBottom()
}
