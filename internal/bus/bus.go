// internal/bus/bus.go

// Package bus carries JSON frames between the exporter and the page agent.
// Three frame shapes share one connection: requests (carry "action" plus an
// injected correlation "id"), responses ("id" plus "body" or "error"), and
// pushes (carry "type"). The action, type and field names are the wire
// contract; see the types package.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Conn is a bidirectional frame transport.
type Conn interface {
	Send(ctx context.Context, frame []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// RequestHandler serves one request frame and returns the response body.
type RequestHandler func(ctx context.Context, action string, payload json.RawMessage) (any, error)

// PushHandler observes one push frame.
type PushHandler func(pushType string, payload json.RawMessage)

type responseEnvelope struct {
	ID    string          `json:"id"`
	Body  json.RawMessage `json:"body,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Endpoint multiplexes requests, responses and pushes over one Conn. Both
// sides of the link run one; each side may serve requests and observe
// pushes while issuing its own.
type Endpoint struct {
	conn Conn

	onRequest RequestHandler
	onPush    PushHandler

	mu      sync.Mutex
	pending map[string]chan responseEnvelope
	closed  bool
}

func NewEndpoint(conn Conn) *Endpoint {
	return &Endpoint{
		conn:    conn,
		pending: make(map[string]chan responseEnvelope),
	}
}

// HandleRequests installs the request handler. Must be set before Run when
// the peer issues requests; a frame with no handler gets an error response.
func (e *Endpoint) HandleRequests(h RequestHandler) { e.onRequest = h }

// HandlePushes installs the push observer.
func (e *Endpoint) HandlePushes(h PushHandler) { e.onPush = h }

// Run reads and dispatches frames until the connection or context ends.
// Request handlers run on their own goroutines so a slow handler does not
// stall pushes.
func (e *Endpoint) Run(ctx context.Context) error {
	defer e.failPending()
	for {
		frame, err := e.conn.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("recv frame: %w", err)
		}
		e.dispatch(ctx, frame)
	}
}

func (e *Endpoint) dispatch(ctx context.Context, frame []byte) {
	var hdr struct {
		ID     string `json:"id"`
		Action string `json:"action"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(frame, &hdr); err != nil {
		slog.Warn("dropping unparseable frame", "error", err)
		return
	}

	switch {
	case hdr.Action != "":
		go e.serveRequest(ctx, hdr.ID, hdr.Action, frame)
	case hdr.ID != "":
		var env responseEnvelope
		if err := json.Unmarshal(frame, &env); err != nil {
			slog.Warn("dropping malformed response", "error", err)
			return
		}
		e.mu.Lock()
		ch, ok := e.pending[env.ID]
		delete(e.pending, env.ID)
		e.mu.Unlock()
		if !ok {
			slog.Debug("response with no waiter", "id", env.ID)
			return
		}
		ch <- env
	case hdr.Type != "":
		if e.onPush != nil {
			e.onPush(hdr.Type, frame)
		}
	default:
		slog.Warn("dropping frame with no action, id or type")
	}
}

func (e *Endpoint) serveRequest(ctx context.Context, id, action string, payload json.RawMessage) {
	env := responseEnvelope{ID: id}
	if e.onRequest == nil {
		env.Error = fmt.Sprintf("no handler for action %q", action)
	} else if body, err := e.onRequest(ctx, action, payload); err != nil {
		env.Error = err.Error()
	} else if raw, err := json.Marshal(body); err != nil {
		env.Error = fmt.Sprintf("marshal response: %v", err)
	} else {
		env.Body = raw
	}

	frame, err := json.Marshal(env)
	if err != nil {
		slog.Error("marshal response envelope", "error", err)
		return
	}
	if err := e.conn.Send(ctx, frame); err != nil {
		slog.Warn("send response failed", "id", id, "error", err)
	}
}

// Request sends a request frame and decodes the response body into out. The
// body must marshal to a JSON object carrying its own "action" field; the
// correlation id is injected here.
func (e *Endpoint) Request(ctx context.Context, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("request body is not an object: %w", err)
	}

	id := uuid.NewString()
	fields["id"] = json.RawMessage(`"` + id + `"`)
	frame, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal request frame: %w", err)
	}

	ch := make(chan responseEnvelope, 1)
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.New("endpoint closed")
	}
	e.pending[id] = ch
	e.mu.Unlock()

	if err := e.conn.Send(ctx, frame); err != nil {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case env := <-ch:
		if env.Error != "" {
			return fmt.Errorf("remote error: %s", env.Error)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(env.Body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return ctx.Err()
	}
}

// Push sends a push frame as-is. The body carries its own "type" field.
func (e *Endpoint) Push(ctx context.Context, body any) error {
	frame, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}
	return e.conn.Send(ctx, frame)
}

// failPending unblocks every in-flight Request with a closed-link error.
func (e *Endpoint) failPending() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, ch := range e.pending {
		ch <- responseEnvelope{ID: id, Error: "connection closed"}
		delete(e.pending, id)
	}
}
