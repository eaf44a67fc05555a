package client

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatwave/chatwave/internal/protocol"
)

type connectResultMsg struct {
	err error
}

type envelopeMsg struct {
	env protocol.Envelope
	ok  bool
}

type sendResultMsg struct {
	err error
}

type heartbeatMsg struct{}

const heartbeatInterval = 30 * time.Second

func (a *App) connectCmd() tea.Cmd {
	return func() tea.Msg {
		return connectResultMsg{err: a.session.Connect(context.Background())}
	}
}

func (a *App) waitForEnvelope() tea.Cmd {
	return func() tea.Msg {
		env, ok := <-a.session.Recv()
		return envelopeMsg{env: env, ok: ok}
	}
}

func (a *App) sendCmd(env protocol.Envelope) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sendResultMsg{err: a.session.Send(ctx, env)}
	}
}

func heartbeatTick() tea.Cmd {
	return tea.Tick(heartbeatInterval, func(time.Time) tea.Msg {
		return heartbeatMsg{}
	})
}

func (a *App) helloEnvelope(username, password string) protocol.Envelope {
	return protocol.Envelope{
		Type: protocol.MessageTypeHello,
		Payload: protocol.HelloRequest{
			Username: username,
			Password: password,
			Token:    a.token,
		},
	}
}

func (a *App) joinEnvelope(room string) protocol.Envelope {
	return protocol.Envelope{Type: protocol.MessageTypeJoin, Room: room}
}

func (a *App) leaveEnvelope(room string) protocol.Envelope {
	return protocol.Envelope{Type: protocol.MessageTypeLeave, Room: room}
}

func (a *App) chatEnvelope(room, text string) protocol.Envelope {
	return protocol.Envelope{
		Type:    protocol.MessageTypeChat,
		Room:    room,
		Payload: protocol.ChatSendRequest{Content: text, Kind: protocol.MessageKindText},
	}
}

func (a *App) typingEnvelope(room string) protocol.Envelope {
	return protocol.Envelope{Type: protocol.MessageTypeTyping, Room: room}
}

func (a *App) pingEnvelope() protocol.Envelope {
	return protocol.Envelope{Type: protocol.MessageTypePing}
}

func (a *App) roomCreateEnvelope(name, description string) protocol.Envelope {
	return protocol.Envelope{
		Type:    protocol.MessageTypeRoomCreate,
		Payload: protocol.RoomCreateRequest{Name: name, Description: description},
	}
}

func (a *App) historyEnvelope(room string, beforeSeq int64) protocol.Envelope {
	return protocol.Envelope{
		Type:    protocol.MessageTypeHistory,
		Room:    room,
		Payload: protocol.HistoryRequest{BeforeSeq: beforeSeq},
	}
}
