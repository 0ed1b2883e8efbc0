// internal/bus/pipe.go
package bus

import (
	"context"
	"io"
	"sync"
)

// Pipe returns two connected in-process Conns. Frames sent on one side are
// received on the other. Used by the in-process agent mode and by tests.
func Pipe() (Conn, Conn) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	done := make(chan struct{})
	var once sync.Once
	closeFn := func() { once.Do(func() { close(done) }) }
	a := &pipeConn{in: ba, out: ab, done: done, closeFn: closeFn}
	b := &pipeConn{in: ab, out: ba, done: done, closeFn: closeFn}
	return a, b
}

type pipeConn struct {
	in      <-chan []byte
	out     chan<- []byte
	done    chan struct{}
	closeFn func()
}

func (c *pipeConn) Send(ctx context.Context, frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	select {
	case c.out <- cp:
		return nil
	case <-c.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeConn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.in:
		return frame, nil
	case <-c.done:
		// Drain frames already in flight before reporting EOF.
		select {
		case frame := <-c.in:
			return frame, nil
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *pipeConn) Close() error {
	c.closeFn()
	return nil
}
