package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsReadLimit     = 8 << 20
	wsWriteDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsTransport carries one JSON-RPC message per text frame, the framing
// browser-hosted editors use.
type wsTransport struct {
	conn *websocket.Conn
}

func (t wsTransport) readMessage() ([]byte, error) {
	for {
		typ, data, err := t.conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage {
			return data, nil
		}
	}
}

func (t wsTransport) writeMessage(data []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// wsHandler serves an independent language server session on every
// websocket connection.
func wsHandler(ctx context.Context, opts options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			opts.logger.Warn("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(wsReadLimit)
		// Hijacked connections outlive http.Server.Close.
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		session := opts
		session.logger = opts.logger.With("session", uuid.NewString())
		session.logger.Info("session started", "remote", r.RemoteAddr)

		s, err := newServer(wsTransport{conn: conn}, session)
		if err == nil {
			err = s.run(ctx)
		}
		var e exitError
		switch {
		case errors.As(err, &e):
			session.logger.Info("session ended", "code", e.code)
		case err != nil:
			session.logger.Warn("session failed", "err", err)
		default:
			session.logger.Info("session closed")
		}
	})
}
