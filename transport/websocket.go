package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsCloseGrace = time.Second

// WebSocket is a transport over a WebSocket connection to a remote CAT bridge.
// Each binary or text message is one incoming chunk; each Write is one binary message.
type WebSocket struct {
	*link
	url    string
	header http.Header
}

var _ Transport = (*WebSocket)(nil)

// NewWebSocket creates a WebSocket transport for url ("ws://host:port/path").
func NewWebSocket(url string, header http.Header, opts ...Option) (*WebSocket, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	w := &WebSocket{url: url, header: header}
	w.link = newLink(TypeWebSocket, url, cfg, w.dialWebSocket)

	return w, nil
}

// URL returns the endpoint URL.
func (w *WebSocket) URL() string {
	return w.url
}

func (w *WebSocket) dialWebSocket(ctx context.Context) (conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: w.cfg.dialTimeout}

	c, resp, err := dialer.DialContext(ctx, w.url, w.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return &wsConn{ws: c}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) recv(_ []byte) ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func (c *wsConn) send(p []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, p)
}

func (c *wsConn) close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseGrace))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		_ = c.ws.Close()
		return nil
	}

	return c.ws.Close()
}
