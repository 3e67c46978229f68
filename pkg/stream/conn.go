package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Frame types as reported by Conn.ReadMessage.
const (
	TextFrame   = websocket.TextMessage
	BinaryFrame = websocket.BinaryMessage
)

// Conn is the part of a WebSocket connection a Session uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebSocketDialer dials real WebSocket connections with gorilla/websocket.
type WebSocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer whose opening handshake gives up after handshakeTimeout.
// A zero timeout falls back to the gorilla default.
func NewWebSocketDialer(handshakeTimeout time.Duration) *WebSocketDialer {
	dialer := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		dialer.HandshakeTimeout = handshakeTimeout
	}

	return &WebSocketDialer{dialer: &dialer}
}

func (d *WebSocketDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (http status %d)", err, resp.StatusCode)
		}

		return nil, err
	}

	return conn, nil
}
