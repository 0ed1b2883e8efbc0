// internal/transfer/receiver.go
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/gemscrape/internal/types"
)

// Completed is one finished (or failed) transfer delivered to the waiter.
type Completed struct {
	ID       types.TransferID
	Metadata types.TransferMetadata
	Data     []byte
	// Missing counts chunk slots never filled before transfer-end.
	Missing int
	Err     error
}

type session struct {
	meta     types.TransferMetadata
	chunks   [][]byte
	received int
	touched  time.Time
}

// Receiver reassembles chunked transfers. Chunks may arrive out of order;
// slots are indexed by chunk index and concatenated on transfer-end. Every
// transfer-end produces exactly one Completed on the ready channel, even
// when the session is unknown, so a waiter never hangs on a lost start
// frame.
type Receiver struct {
	mu       sync.Mutex
	sessions map[types.TransferID]*session
	ready    chan Completed
}

func NewReceiver() *Receiver {
	return &Receiver{
		sessions: make(map[types.TransferID]*session),
		ready:    make(chan Completed, 16),
	}
}

// Start opens a session for an announced transfer.
func (r *Receiver) Start(p types.TransferStartPush) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[p.TransferID] = &session{
		meta:    p.Metadata,
		touched: time.Now(),
	}
	slog.Debug("transfer started", "id", p.TransferID, "filename", p.Metadata.Filename)
}

// Chunk stores one chunk. Chunks for unknown sessions are dropped; the
// start frame defines the session's lifetime.
func (r *Receiver) Chunk(p types.ChunkPush) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[p.TransferID]
	if !ok {
		slog.Debug("chunk for unknown transfer dropped", "id", p.TransferID, "index", p.ChunkIndex)
		return
	}
	if p.ChunkIndex < 0 {
		return
	}

	// Size the slot table from whichever frame arrives first.
	need := p.ChunkIndex + 1
	if p.TotalChunks > need {
		need = p.TotalChunks
	}
	for len(s.chunks) < need {
		s.chunks = append(s.chunks, nil)
	}
	if s.chunks[p.ChunkIndex] == nil {
		s.received++
	}
	s.chunks[p.ChunkIndex] = p.Data
	s.touched = time.Now()
}

// End closes a session and delivers the reassembled payload. An unknown id
// still delivers a Completed carrying an error.
func (r *Receiver) End(p types.TransferEndPush) {
	r.mu.Lock()
	s, ok := r.sessions[p.TransferID]
	if ok {
		delete(r.sessions, p.TransferID)
	}
	r.mu.Unlock()

	if !ok {
		r.deliver(Completed{
			ID:  p.TransferID,
			Err: fmt.Errorf("transfer %s: no session", p.TransferID),
		})
		return
	}

	missing := 0
	size := 0
	for _, c := range s.chunks {
		if c == nil {
			missing++
			continue
		}
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range s.chunks {
		data = append(data, c...)
	}

	done := Completed{ID: p.TransferID, Metadata: s.meta, Data: data, Missing: missing}
	if missing > 0 {
		done.Err = fmt.Errorf("transfer %s: %d of %d chunks missing", p.TransferID, missing, len(s.chunks))
	}
	r.deliver(done)
}

func (r *Receiver) deliver(c Completed) {
	select {
	case r.ready <- c:
	default:
		slog.Warn("ready channel full, dropping completed transfer", "id", c.ID)
	}
}

// Wait blocks until a transfer completes or the context ends.
func (r *Receiver) Wait(ctx context.Context) (Completed, error) {
	select {
	case c := <-r.ready:
		return c, nil
	case <-ctx.Done():
		return Completed{}, ctx.Err()
	}
}

// Pending reports the number of open sessions.
func (r *Receiver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap drops sessions idle for longer than olderThan and reports how many
// were dropped. Reaped transfers produce no Completed; their peer never
// sent transfer-end.
func (r *Receiver) Reap(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	n := 0
	for id, s := range r.sessions {
		if s.touched.Before(cutoff) {
			delete(r.sessions, id)
			n++
			slog.Warn("reaped stale transfer session", "id", id, "received", s.received)
		}
	}
	return n
}
