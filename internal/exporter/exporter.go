// internal/exporter/exporter.go

// Package exporter is the operator side of the system: it connects to a
// page agent over the bus, drives the scrape batch by batch, receives the
// archive transfers and persists them to disk, keeping enough state on disk
// to resume an interrupted run.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/user/gemscrape/internal/bus"
	"github.com/user/gemscrape/internal/notify"
	"github.com/user/gemscrape/internal/state"
	"github.com/user/gemscrape/internal/transfer"
	"github.com/user/gemscrape/internal/types"
)

// maxExportIndex bounds how deep an export may walk into the history.
const maxExportIndex = 1000

// maxEmptyBatches ends the run after this many consecutive empty batches.
const maxEmptyBatches = 2

// Options configures an export run.
type Options struct {
	OutDir    string
	BatchSize int
	// Scrape pacing forwarded to the agent, in milliseconds.
	DelayBetweenChatsMS int
	DelayAfterClickMS   int
	PreviewWaitTimeMS   int

	Notifier notify.Notifier
}

// Summary is the outcome of an export run.
type Summary struct {
	Batches    int
	Chats      int
	TotalChats int
	Archives   []string
	Complete   bool
}

// Exporter drives multi-batch exports against one agent connection.
type Exporter struct {
	ep      *bus.Endpoint
	recv    *transfer.Receiver
	runs    *state.RunStore
	batches *state.BatchStore
	opts    Options

	batchCh chan types.BatchCompletePush

	batchTimeout    time.Duration
	transferTimeout time.Duration
}

func New(ep *bus.Endpoint, runs *state.RunStore, batches *state.BatchStore, opts Options) *Exporter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 2
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	e := &Exporter{
		ep:              ep,
		recv:            transfer.NewReceiver(),
		runs:            runs,
		batches:         batches,
		opts:            opts,
		batchCh:         make(chan types.BatchCompletePush, 4),
		batchTimeout:    300 * time.Second,
		transferTimeout: 120 * time.Second,
	}
	ep.HandlePushes(e.handlePush)
	return e
}

// handlePush routes agent pushes: transfer frames feed the receiver, batch
// completions feed the driver loop, log frames are mirrored locally.
func (e *Exporter) handlePush(pushType string, raw json.RawMessage) {
	switch pushType {
	case types.PushTransferStart:
		var p types.TransferStartPush
		if err := json.Unmarshal(raw, &p); err == nil {
			e.recv.Start(p)
		}
	case types.PushChunk:
		var p types.ChunkPush
		if err := json.Unmarshal(raw, &p); err == nil {
			e.recv.Chunk(p)
		}
	case types.PushTransferEnd:
		var p types.TransferEndPush
		if err := json.Unmarshal(raw, &p); err == nil {
			e.recv.End(p)
		}
	case types.PushBatchComplete:
		var p types.BatchCompletePush
		if err := json.Unmarshal(raw, &p); err == nil {
			select {
			case e.batchCh <- p:
			default:
				slog.Warn("batch-complete dropped, driver not consuming")
			}
		}
	case types.PushLog:
		var p types.LogPush
		if err := json.Unmarshal(raw, &p); err == nil {
			slog.Info("agent: "+p.Message, "level", p.Level)
		}
	case types.PushProgress:
		var p types.ProgressPush
		if err := json.Unmarshal(raw, &p); err == nil {
			slog.Debug("scrape progress", "current", p.Current, "total", p.Total)
		}
	}
}

// Ping checks that the agent answers and whether a scrape is in flight.
func (e *Exporter) Ping(ctx context.Context) (bool, error) {
	var resp types.PingResponse
	if err := e.ep.Request(ctx, types.PingRequest{Action: types.ActionPing}, &resp); err != nil {
		return false, err
	}
	return resp.IsScraping, nil
}

// Stop asks the agent to stop the in-flight scrape.
func (e *Exporter) Stop(ctx context.Context) error {
	var ack types.Ack
	if err := e.ep.Request(ctx, types.StopScrapingRequest{Action: types.ActionStopScraping}, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("stop rejected: %s", ack.Error)
	}
	return nil
}

// Export runs batches from start until count chats are collected, the list
// ends, or the run is interrupted. count <= 0 means everything. resume
// continues from persisted run state, overriding start.
func (e *Exporter) Export(ctx context.Context, start, count int, resume bool) (Summary, error) {
	if resume {
		st, err := e.runs.Load()
		if err != nil {
			return Summary{}, fmt.Errorf("load run state: %w", err)
		}
		if st != nil {
			start = st.LastStartIndex
			slog.Info("resuming export", "startIndex", start, "scrapedSoFar", st.TotalScrapedCount)
		}
	}
	if start < 0 {
		start = 0
	}

	// Abandoned transfer sessions pile up when the link drops mid-stream.
	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go e.reapLoop(reapCtx)

	var sum Summary
	empty := 0
	remaining := count

	for batchNum := 1; ; batchNum++ {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if start >= maxExportIndex {
			slog.Warn("export ceiling reached", "startIndex", start)
			break
		}
		if count > 0 && remaining <= 0 {
			sum.Complete = true
			break
		}

		size := e.opts.BatchSize
		if count > 0 && remaining < size {
			size = remaining
		}

		batch, err := e.runBatch(ctx, batchNum, start, size)
		if err != nil {
			return sum, err
		}
		sum.Batches++
		sum.TotalChats = batch.TotalChats

		if batch.ChatCount == 0 {
			empty++
			slog.Info("empty batch", "batch", batchNum, "consecutive", empty)
			if empty >= maxEmptyBatches {
				sum.Complete = true
				break
			}
			start += size
			continue
		}
		empty = 0

		name, err := e.receiveArchive(ctx, batch)
		if err != nil {
			return sum, err
		}
		sum.Archives = append(sum.Archives, name)
		sum.Chats += batch.ChatCount

		start += batch.ChatCount
		if count > 0 {
			remaining -= batch.ChatCount
		}

		if err := e.runs.Save(&state.RunState{
			LastStartIndex:    start,
			TotalScrapedCount: sum.Chats,
			TotalChatsCount:   batch.TotalChats,
		}); err != nil {
			slog.Warn("run state save failed", "error", err)
		}

		e.notify(fmt.Sprintf("Batch %d done: %d chats (total %d/%d), saved %s",
			batchNum, batch.ChatCount, sum.Chats, batch.TotalChats, name))

		if batch.TotalChats > 0 && start >= batch.TotalChats {
			sum.Complete = true
			break
		}
		// The agent returned fewer chats than the window asked for; the
		// sidebar ran out.
		if batch.ChatCount < size {
			sum.Complete = true
			break
		}
	}

	if sum.Complete {
		if err := e.runs.Clear(); err != nil {
			slog.Warn("run state clear failed", "error", err)
		}
		e.notify(fmt.Sprintf("Export complete: %d chats in %d batches", sum.Chats, sum.Batches))
	}
	return sum, nil
}

// runBatch asks the agent for one window and waits for its completion push.
func (e *Exporter) runBatch(ctx context.Context, batchNum, start, size int) (types.BatchCompletePush, error) {
	req := types.StartScrapingRequest{
		Action: types.ActionStartScraping,
		Config: types.ScrapeConfig{
			DelayBetweenChats: e.opts.DelayBetweenChatsMS,
			DelayAfterClick:   e.opts.DelayAfterClickMS,
			PreviewWaitTime:   e.opts.PreviewWaitTimeMS,
			ExportStartIndex:  start,
			ExportCount:       size,
			UseRange:          true,
			BatchNumber:       batchNum,
		},
	}
	var ack types.Ack
	if err := e.ep.Request(ctx, req, &ack); err != nil {
		return types.BatchCompletePush{}, fmt.Errorf("start batch %d: %w", batchNum, err)
	}
	if !ack.Success {
		return types.BatchCompletePush{}, fmt.Errorf("batch %d rejected: %s", batchNum, ack.Error)
	}
	slog.Info("batch started", "batch", batchNum, "startIndex", start, "size", size)

	timer := time.NewTimer(e.batchTimeout)
	defer timer.Stop()
	select {
	case batch := <-e.batchCh:
		return batch, nil
	case <-timer.C:
		return types.BatchCompletePush{}, fmt.Errorf("batch %d: no completion within %s", batchNum, e.batchTimeout)
	case <-ctx.Done():
		return types.BatchCompletePush{}, ctx.Err()
	}
}

// receiveArchive waits for the batch's transfer and writes the zip to the
// output directory.
func (e *Exporter) receiveArchive(ctx context.Context, batch types.BatchCompletePush) (string, error) {
	wctx, cancel := context.WithTimeout(ctx, e.transferTimeout)
	defer cancel()

	done, err := e.recv.Wait(wctx)
	if err != nil {
		return "", fmt.Errorf("wait for batch %d transfer: %w", batch.BatchNumber, err)
	}
	if done.Err != nil {
		if len(done.Data) == 0 {
			return "", fmt.Errorf("batch %d transfer: %w", batch.BatchNumber, done.Err)
		}
		// Corrupt but recoverable: keep whatever arrived. Missing slots
		// contribute zero bytes, so parts of the archive may still open.
		slog.Warn("batch transfer incomplete, saving partial archive",
			"batch", batch.BatchNumber, "missing", done.Missing, "error", done.Err)
	}

	if err := os.MkdirAll(e.opts.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := done.Metadata.Filename
	if name == "" {
		name = fmt.Sprintf("batch-%d.zip", batch.BatchNumber)
	}
	path := filepath.Join(e.opts.OutDir, name)
	if err := os.WriteFile(path, done.Data, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	slog.Info("archive saved", "path", path, "bytes", len(done.Data))

	if err := e.batches.Add(&state.Batch{
		Filename:   name,
		StartIndex: batch.StartIndex,
		ChatCount:  done.Metadata.ChatCount,
		ImageCount: done.Metadata.ImageCount,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		slog.Warn("batch manifest save failed", "error", err)
	}
	return name, nil
}

func (e *Exporter) notify(message string) {
	if err := e.opts.Notifier.Send(message); err != nil {
		slog.Warn("notification failed", "error", err)
	}
}

func (e *Exporter) reapLoop(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := e.recv.Reap(2 * e.transferTimeout); n > 0 {
				slog.Warn("reaped stale transfers", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
