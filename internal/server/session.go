package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatwave/chatwave/internal/protocol"
)

const sendBufferSize = 64

// clientSession pairs one frameConn with its coordinator registration and
// outbound delivery loop.
type clientSession struct {
	id        string
	app       *App
	conn      frameConn
	sendCh    chan protocol.Envelope
	closeOnce sync.Once
}

func newClientSession(app *App, conn frameConn) *clientSession {
	return &clientSession{
		id:     uuid.NewString(),
		app:    app,
		conn:   conn,
		sendCh: make(chan protocol.Envelope, sendBufferSize),
	}
}

// send queues an envelope for delivery to this connection only.
func (s *clientSession) send(ctx context.Context, env protocol.Envelope) error {
	select {
	case s.sendCh <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *clientSession) writeLoop(ctx context.Context, writeTimeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-s.sendCh:
			if writeTimeout > 0 {
				if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
					return
				}
			}
			if err := s.conn.WriteEnvelope(ctx, env); err != nil {
				return
			}
		}
	}
}

// teardown drops the connection from the coordinator exactly once,
// reconciling membership for every joined room. Both an explicit
// disconnect and a liveness timeout land here.
func (s *clientSession) teardown() {
	s.closeOnce.Do(func() {
		s.app.coord.Disconnect(s.id)
		_ = s.conn.Close()
	})
}

func (s *clientSession) remoteAddr() string {
	return s.conn.RemoteAddr()
}
