package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatwave/chatwave/internal/config"
	"github.com/chatwave/chatwave/internal/protocol"
)

// App implements the bubbletea tea.Model interface for the terminal
// client.
type App struct {
	cfg       config.ClientConfig
	session   *Session
	input     textinput.Model
	viewport  viewport.Model
	messages  []string
	room      string
	username  string
	token     string
	connected bool
	logLine   string
	typing    string
	typedAt   time.Time
	width     int
	height    int
	styles    styles
}

// NewApp returns a Bubble Tea model pre-populated with defaults.
func NewApp(cfg config.ClientConfig) tea.Model {
	input := textinput.New()
	input.Placeholder = "/hello <name> to get started"
	input.Focus()
	input.CharLimit = 2000

	return &App{
		cfg:      cfg,
		session:  NewSession(cfg),
		input:    input,
		viewport: viewport.New(0, 0),
		messages: make([]string, 0, 128),
		styles:   newStyles(),
	}
}

// Init is part of the tea.Model interface.
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.connectCmd())
}

// Update handles user input and session events.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.height = m.Height
		a.resize()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	case connectResultMsg:
		return a.handleConnectResult(m)
	case envelopeMsg:
		return a.handleEnvelope(m)
	case sendResultMsg:
		if m.err != nil {
			a.log(fmt.Sprintf("send failed: %v", m.err))
		}
		return a, nil
	case heartbeatMsg:
		if !a.connected {
			return a, nil
		}
		return a, tea.Batch(a.sendCmd(a.pingEnvelope()), heartbeatTick())
	default:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		_ = a.session.Close()
		return a, tea.Quit
	case tea.KeyEnter:
		line := strings.TrimSpace(a.input.Value())
		a.input.SetValue("")
		if line == "" {
			return a, nil
		}
		return a, a.submit(line)
	case tea.KeyPgUp:
		a.viewport.LineUp(a.viewport.Height)
		return a, nil
	case tea.KeyPgDown:
		a.viewport.LineDown(a.viewport.Height)
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)

	// Tell the room we are composing, at most once per interval.
	if msg.Type == tea.KeyRunes && a.connected && a.room != "" &&
		!strings.HasPrefix(a.input.Value(), "/") && time.Since(a.typedAt) > 3*time.Second {
		a.typedAt = time.Now()
		return a, tea.Batch(cmd, a.sendCmd(a.typingEnvelope(a.room)))
	}
	return a, cmd
}

func (a *App) submit(line string) tea.Cmd {
	if strings.HasPrefix(line, "/") {
		return a.runCommand(line)
	}
	if !a.connected {
		a.log("not connected")
		return nil
	}
	if a.room == "" {
		a.log("join a room first: /join <room>")
		return nil
	}
	return a.sendCmd(a.chatEnvelope(a.room, line))
}

func (a *App) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "/hello":
		if len(args) < 1 {
			a.log("usage: /hello <name> [password]")
			return nil
		}
		password := ""
		if len(args) > 1 {
			password = args[1]
		}
		a.username = args[0]
		return a.sendCmd(a.helloEnvelope(args[0], password))
	case "/join":
		if len(args) < 1 {
			a.log("usage: /join <room>")
			return nil
		}
		room := args[0]
		cmds := make([]tea.Cmd, 0, 2)
		if a.room != "" && a.room != room {
			cmds = append(cmds, a.sendCmd(a.leaveEnvelope(a.room)))
		}
		a.room = room
		a.messages = a.messages[:0]
		a.refresh()
		cmds = append(cmds, a.sendCmd(a.joinEnvelope(room)))
		return tea.Batch(cmds...)
	case "/leave":
		if a.room == "" {
			a.log("no room joined")
			return nil
		}
		room := a.room
		a.room = ""
		return a.sendCmd(a.leaveEnvelope(room))
	case "/create":
		if len(args) < 1 {
			a.log("usage: /create <room> [description]")
			return nil
		}
		description := strings.Join(args[1:], " ")
		return a.sendCmd(a.roomCreateEnvelope(args[0], description))
	case "/history":
		if a.room == "" {
			a.log("join a room first")
			return nil
		}
		var before int64
		if len(args) > 0 {
			parsed, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				a.log("usage: /history [before-seq]")
				return nil
			}
			before = parsed
		}
		return a.sendCmd(a.historyEnvelope(a.room, before))
	case "/quit":
		_ = a.session.Close()
		return tea.Quit
	default:
		a.log(fmt.Sprintf("unknown command %s", command))
		return nil
	}
}

func (a *App) handleConnectResult(msg connectResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.log(fmt.Sprintf("connect failed: %v", msg.err))
		return a, nil
	}
	a.connected = true
	a.log(fmt.Sprintf("connected to %s", a.cfg.ServerAddr))

	cmds := []tea.Cmd{a.waitForEnvelope(), heartbeatTick()}
	if a.cfg.Username != "" {
		a.username = a.cfg.Username
		cmds = append(cmds, a.sendCmd(a.helloEnvelope(a.cfg.Username, "")))
	}
	return a, tea.Batch(cmds...)
}

func (a *App) handleEnvelope(msg envelopeMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		a.connected = false
		a.log("disconnected")
		return a, nil
	}

	env := msg.env
	switch env.Type {
	case protocol.MessageTypeAck:
		var ack protocol.AckPayload
		if err := decodePayload(env.Payload, &ack); err == nil && ack.Status != "ok" {
			a.log(fmt.Sprintf("error: %s", ack.Reason))
		}
	case protocol.MessageTypeWelcome:
		var welcome protocol.WelcomePayload
		if err := decodePayload(env.Payload, &welcome); err == nil {
			a.username = welcome.Name
			a.token = welcome.Token
			a.log(fmt.Sprintf("signed in as %s (%s)", welcome.Name, welcome.Role))
			if a.cfg.Room != "" && a.room == "" {
				a.room = a.cfg.Room
				return a, tea.Batch(a.waitForEnvelope(), a.sendCmd(a.joinEnvelope(a.cfg.Room)))
			}
		}
	case protocol.MessageTypeChat, protocol.MessageTypeSystem:
		var chat protocol.ChatMessage
		if err := decodePayload(env.Payload, &chat); err == nil {
			a.appendMessage(formatChatLine(chat))
			a.typing = ""
		}
	case protocol.MessageTypeHistory:
		var history protocol.ChatHistory
		if err := decodePayload(env.Payload, &history); err == nil {
			lines := make([]string, 0, len(history.Messages))
			for _, chat := range history.Messages {
				lines = append(lines, formatChatLine(chat))
			}
			a.messages = append(lines, a.messages...)
			a.refresh()
		}
	case protocol.MessageTypeNotice:
		var notice protocol.NoticePayload
		if err := decodePayload(env.Payload, &notice); err == nil {
			a.appendMessage(fmt.Sprintf("* %s", notice.Text))
		}
	case protocol.MessageTypeMembers:
		var members protocol.MembersPayload
		if err := decodePayload(env.Payload, &members); err == nil {
			a.appendMessage(fmt.Sprintf("* online (%d): %s", members.Count, strings.Join(members.Names, ", ")))
		}
	case protocol.MessageTypeTyping:
		var typing protocol.TypingPayload
		if err := decodePayload(env.Payload, &typing); err == nil {
			a.typing = fmt.Sprintf("%s is typing...", typing.Name)
		}
	case protocol.MessageTypePresence:
		// Count already shown via the members snapshot.
	}

	return a, a.waitForEnvelope()
}

func formatChatLine(chat protocol.ChatMessage) string {
	body := chat.Content
	if chat.Attachment != "" {
		body = fmt.Sprintf("[%s] %s", chat.Attachment, body)
	}
	if chat.Kind == protocol.MessageKindSystem {
		return fmt.Sprintf("* %s", body)
	}
	return fmt.Sprintf("%s <%s> %s", chat.SentAt.Local().Format("15:04"), chat.Author, body)
}

func (a *App) appendMessage(line string) {
	a.messages = append(a.messages, line)
	a.refresh()
}

func (a *App) log(line string) {
	a.logLine = line
}
