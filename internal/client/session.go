package client

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/chatwave/chatwave/internal/config"
	"github.com/chatwave/chatwave/internal/protocol"
)

// Session manages the client-side socket to the coordinator server.
type Session struct {
	cfg      config.ClientConfig
	conn     net.Conn
	encoder  *protocol.Encoder
	decoder  *protocol.Decoder
	incoming chan protocol.Envelope
	cancelFn context.CancelFunc
}

// NewSession initializes a session with configuration.
func NewSession(cfg config.ClientConfig) *Session {
	return &Session{
		cfg:      cfg,
		incoming: make(chan protocol.Envelope, 64),
	}
}

// Connect dials the server and starts the read loop.
func (s *Session) Connect(ctx context.Context) error {
	if s.cfg.ServerAddr == "" {
		return net.ErrClosed
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.ServerAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.encoder = protocol.NewEncoder(conn)
	s.decoder = protocol.NewDecoder(conn, protocol.DefaultMaxFrameBytes)
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	go s.readLoop(ctx)
	return nil
}

// Recv exposes inbound envelopes. The channel closes when the read loop
// stops.
func (s *Session) Recv() <-chan protocol.Envelope {
	return s.incoming
}

// Close terminates the session.
func (s *Session) Close() error {
	if s.cancelFn != nil {
		s.cancelFn()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Send dispatches an envelope to the server.
func (s *Session) Send(ctx context.Context, env protocol.Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	env.Timestamp = time.Now()
	return s.encoder.Encode(ctx, env)
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.incoming)
	for {
		if ctx.Err() != nil {
			return
		}
		env, err := s.decoder.Decode(ctx)
		if err != nil {
			return
		}
		select {
		case s.incoming <- env:
		case <-ctx.Done():
			return
		}
	}
}
