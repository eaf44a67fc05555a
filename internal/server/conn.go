package server

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwave/chatwave/internal/protocol"
)

// frameConn carries envelopes over one live client connection, hiding
// whether the transport is raw TCP framing or a WebSocket.
type frameConn interface {
	ReadEnvelope(ctx context.Context) (protocol.Envelope, error)
	WriteEnvelope(ctx context.Context, env protocol.Envelope) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// tcpFrameConn speaks the length-prefixed JSON frame protocol.
type tcpFrameConn struct {
	conn    net.Conn
	encoder *protocol.Encoder
	decoder *protocol.Decoder
}

func newTCPFrameConn(conn net.Conn, maxFrameBytes int) *tcpFrameConn {
	return &tcpFrameConn{
		conn:    conn,
		encoder: protocol.NewEncoder(conn),
		decoder: protocol.NewDecoder(conn, maxFrameBytes),
	}
}

func (c *tcpFrameConn) ReadEnvelope(ctx context.Context) (protocol.Envelope, error) {
	return c.decoder.Decode(ctx)
}

func (c *tcpFrameConn) WriteEnvelope(ctx context.Context, env protocol.Envelope) error {
	return c.encoder.Encode(ctx, env)
}

func (c *tcpFrameConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *tcpFrameConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *tcpFrameConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *tcpFrameConn) Close() error {
	return c.conn.Close()
}

// wsFrameConn speaks JSON text frames over a WebSocket.
type wsFrameConn struct {
	conn *websocket.Conn
}

func newWSFrameConn(conn *websocket.Conn, maxFrameBytes int) *wsFrameConn {
	if maxFrameBytes > 0 {
		conn.SetReadLimit(int64(maxFrameBytes))
	}
	return &wsFrameConn{conn: conn}
}

func (c *wsFrameConn) ReadEnvelope(ctx context.Context) (protocol.Envelope, error) {
	var env protocol.Envelope
	if err := ctx.Err(); err != nil {
		return env, err
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	return env, nil
}

func (c *wsFrameConn) WriteEnvelope(ctx context.Context, env protocol.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.WriteJSON(env)
}

func (c *wsFrameConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsFrameConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *wsFrameConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *wsFrameConn) Close() error {
	return c.conn.Close()
}
