// internal/transfer/sender.go

// Package transfer moves archives between the agent and the exporter as a
// chunked push stream: one transfer-start frame, N chunk frames, one
// transfer-end frame, all keyed by a transfer id.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/gemscrape/internal/types"
)

// DefaultChunkSize is the chunk payload size when the request does not
// specify one.
const DefaultChunkSize = 4 << 20

// Pacing: yield briefly every few chunks so a large archive does not
// monopolize the connection.
const (
	paceEvery = 10
	paceDelay = 50 * time.Millisecond
)

// PushFunc delivers one push frame to the peer.
type PushFunc func(ctx context.Context, push any) error

// Sender streams archives over a push function.
type Sender struct {
	push      PushFunc
	chunkSize int
}

func NewSender(push PushFunc, chunkSize int) *Sender {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Sender{push: push, chunkSize: chunkSize}
}

// Send streams data as one transfer and returns its id. The final chunk is
// flagged so the receiver can complete even if transfer-end is lost.
func (s *Sender) Send(ctx context.Context, data []byte, meta types.TransferMetadata) (types.TransferID, error) {
	id := types.NewTransferID()
	meta.Size = len(data)

	if err := s.push(ctx, types.TransferStartPush{
		Type:       types.PushTransferStart,
		TransferID: id,
		Metadata:   meta,
	}); err != nil {
		return id, fmt.Errorf("push transfer-start: %w", err)
	}

	total := (len(data) + s.chunkSize - 1) / s.chunkSize
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			return id, ctx.Err()
		}
		lo := i * s.chunkSize
		hi := lo + s.chunkSize
		if hi > len(data) {
			hi = len(data)
		}
		if err := s.push(ctx, types.ChunkPush{
			Type:        types.PushChunk,
			TransferID:  id,
			ChunkIndex:  i,
			TotalChunks: total,
			Data:        data[lo:hi],
			IsLast:      i == total-1,
		}); err != nil {
			return id, fmt.Errorf("push chunk %d/%d: %w", i+1, total, err)
		}
		if (i+1)%paceEvery == 0 && i != total-1 {
			sleepCtx(ctx, paceDelay)
		}
	}

	if err := s.push(ctx, types.TransferEndPush{
		Type:       types.PushTransferEnd,
		TransferID: id,
	}); err != nil {
		return id, fmt.Errorf("push transfer-end: %w", err)
	}

	slog.Debug("transfer sent", "id", id, "bytes", len(data), "chunks", total)
	return id, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
