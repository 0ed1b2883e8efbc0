// internal/bus/websocket.go
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 << 10,
	WriteBufferSize: 32 << 10,
	// The agent only serves the local exporter.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSConn adapts a websocket connection to the Conn interface. Writes are
// serialized; gorilla connections allow one concurrent writer.
type WSConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// Upgrade turns an HTTP request into a websocket Conn (server side).
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade websocket: %w", err)
	}
	return &WSConn{ws: ws}, nil
}

// Dial connects to an agent's websocket endpoint (client side).
func Dial(ctx context.Context, url string) (*WSConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &WSConn{ws: ws}, nil
}

func (c *WSConn) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		c.ws.SetWriteDeadline(dl)
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *WSConn) Recv(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		c.ws.SetReadDeadline(dl)
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *WSConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
