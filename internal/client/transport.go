package client

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal connection surface the session needs. The production
// implementation is a gorilla/websocket connection; tests substitute fakes.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer establishes one underlying connection. It must respect ctx
// cancellation and the configured handshake timeout.
type Dialer func(ctx context.Context, url string) (Conn, error)

func gorillaDialer(handshakeTimeout time.Duration) Dialer {
	d := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := d.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
