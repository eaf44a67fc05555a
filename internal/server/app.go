package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatwave/chatwave/internal/config"
	"github.com/chatwave/chatwave/internal/coordinator"
	"github.com/chatwave/chatwave/internal/directory"
	"github.com/chatwave/chatwave/internal/protocol"
)

// TokenIssuer mints reconnect tokens for resolved identities. Optional.
type TokenIssuer interface {
	IssueToken(identity coordinator.Identity) (string, time.Time, error)
}

// App hosts the coordinator behind the TCP and WebSocket transports.
type App struct {
	cfg       config.ServerConfig
	coord     *coordinator.Coordinator
	dir       directory.Directory
	tokens    TokenIssuer
	listener  net.Listener
	httpSrv   *http.Server
	upgrader  websocket.Upgrader
	closeOnce sync.Once
}

// NewApp constructs a server instance using the provided dependencies.
// tokens may be nil, in which case welcome payloads carry no token.
func NewApp(cfg config.ServerConfig, coord *coordinator.Coordinator, dir directory.Directory, tokens TokenIssuer) *App {
	return &App{
		cfg:    cfg,
		coord:  coord,
		dir:    dir,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run accepts connections on both transports until the context is
// canceled.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.handleWebSocket(ctx, w, r)
	})
	a.httpSrv = &http.Server{Addr: a.cfg.HTTPAddr, Handler: mux}

	errCh := make(chan error, 2)

	go func() {
		<-ctx.Done()
		a.closeOnce.Do(func() {
			_ = a.listener.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.httpSrv.Shutdown(shutdownCtx)
		})
	}()

	go func() {
		for {
			conn, err := a.listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					errCh <- nil
					return
				}
				errCh <- err
				return
			}
			go a.handleConnection(ctx, newTCPFrameConn(conn, a.cfg.MaxFrameBytes))
		}
	}()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	return <-errCh
}

func (a *App) handleWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	a.handleConnection(ctx, newWSFrameConn(conn, a.cfg.MaxFrameBytes))
}

func (a *App) handleConnection(parentCtx context.Context, conn frameConn) {
	session := newClientSession(a, conn)
	defer session.teardown()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if err := a.coord.Connect(session.id, session.sendCh); err != nil {
		reason := "connection rejected"
		if errors.Is(err, coordinator.ErrServerFull) {
			reason = "server full"
		}
		_ = conn.WriteEnvelope(ctx, protocol.Envelope{
			ID:        uuid.NewString(),
			Type:      protocol.MessageTypeAck,
			Timestamp: time.Now(),
			Payload:   protocol.AckPayload{Status: ackStatusError, Reason: reason},
		})
		log.Printf("connection rejected remote=%s err=%v", conn.RemoteAddr(), err)
		return
	}

	go session.writeLoop(ctx, a.cfg.WriteTimeout)

	for {
		// The read deadline doubles as the liveness timeout: a silent
		// connection is dropped and reconciled like an explicit
		// disconnect.
		if err := conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout)); err != nil {
			log.Printf("set read deadline: %v", err)
			return
		}
		env, err := conn.ReadEnvelope(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				log.Printf("liveness timeout conn=%s remote=%s", session.id, session.remoteAddr())
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("read envelope conn=%s err=%v", session.id, err)
			}
			return
		}

		a.route(ctx, session, env)
	}
}
