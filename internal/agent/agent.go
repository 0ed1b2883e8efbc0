// internal/agent/agent.go

// Package agent is the page side of the system: it serves scrape requests
// from an exporter over the bus, drives the scraper session against the
// live page, and streams finished archives back as chunked transfers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/gemscrape/internal/archive"
	"github.com/user/gemscrape/internal/bus"
	"github.com/user/gemscrape/internal/scraper"
	"github.com/user/gemscrape/internal/transfer"
	"github.com/user/gemscrape/internal/types"
)

// Agent wires one scraper session to one bus endpoint.
type Agent struct {
	session   *scraper.Session
	packager  *archive.Packager
	chunkSize int
	started   time.Time

	endpoint *bus.Endpoint
}

func New(session *scraper.Session, packager *archive.Packager, chunkSize int) *Agent {
	if chunkSize <= 0 {
		chunkSize = transfer.DefaultChunkSize
	}
	return &Agent{
		session:   session,
		packager:  packager,
		chunkSize: chunkSize,
		started:   time.Now(),
	}
}

// Attach binds the agent to an endpoint: requests route to HandleRequest
// and scraper notifications become push frames on the same link.
func (a *Agent) Attach(ep *bus.Endpoint) {
	a.endpoint = ep
	ep.HandleRequests(a.HandleRequest)
	a.session.SetNotifier(&busNotifier{ep: ep})
}

// HandleRequest serves one request frame.
func (a *Agent) HandleRequest(ctx context.Context, action string, payload json.RawMessage) (any, error) {
	switch action {
	case types.ActionPing:
		_, scraping := a.session.Status()
		return types.PingResponse{Success: true, IsScraping: scraping}, nil

	case types.ActionStartScraping:
		var req types.StartScrapingRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode startScraping: %w", err)
		}
		return a.startScraping(req.Config)

	case types.ActionStopScraping:
		a.session.Stop()
		return types.Ack{Success: true}, nil

	case types.ActionFetchImages:
		var req types.FetchImagesRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode fetchImages: %w", err)
		}
		return a.fetchImages(ctx, req), nil

	case types.ActionPackageAndTransfer:
		var req types.PackageAndTransferRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode packageAndTransfer: %w", err)
		}
		if err := a.packageAndTransfer(ctx, req.Chats, req.StartIndex, req.ChunkSize); err != nil {
			return nil, err
		}
		return types.Ack{Success: true}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

// startScraping claims the session, acknowledges, and runs the batch in the
// background; completion is announced by a batch-complete push followed by
// the archive transfer. A start while another scrape holds the session is
// rejected in the ack and pushes nothing.
func (a *Agent) startScraping(cfg types.ScrapeConfig) (any, error) {
	if err := a.session.Reserve(); err != nil {
		slog.Warn("scrape start rejected", "batch", cfg.BatchNumber, "error", err)
		return types.Ack{Success: false, Error: err.Error()}, nil
	}

	rng := scraper.Range{}
	if cfg.UseRange {
		rng = scraper.Range{Start: cfg.ExportStartIndex, Count: cfg.ExportCount}
	}
	delays := scraper.DelaysFromConfig(cfg)

	go func() {
		ctx := context.Background()
		res, err := a.session.RunReserved(ctx, rng, delays)
		if err != nil {
			slog.Error("scrape batch failed", "batch", cfg.BatchNumber, "error", err)
		}

		if perr := a.endpoint.Push(ctx, types.BatchCompletePush{
			Type:        types.PushBatchComplete,
			BatchNumber: cfg.BatchNumber,
			ChatCount:   len(res.Records),
			StartIndex:  rng.Start,
			TotalChats:  res.Total,
		}); perr != nil {
			slog.Warn("batch-complete push failed", "error", perr)
			return
		}

		if len(res.Records) > 0 {
			if terr := a.packageAndTransfer(ctx, res.Records, rng.Start, a.chunkSize); terr != nil {
				slog.Error("batch transfer failed", "batch", cfg.BatchNumber, "error", terr)
			}
		}
	}()

	return types.Ack{Success: true}, nil
}

func (a *Agent) packageAndTransfer(ctx context.Context, records []types.ChatRecord, startIndex, chunkSize int) error {
	data, manifest, err := a.packager.Package(records, startIndex)
	if err != nil {
		return fmt.Errorf("package batch: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = a.chunkSize
	}

	sender := transfer.NewSender(a.endpoint.Push, chunkSize)
	_, err = sender.Send(ctx, data, types.TransferMetadata{
		Filename:   archive.Filename(startIndex, manifest.ChatCount, time.Now()),
		ChatCount:  manifest.ChatCount,
		ImageCount: manifest.ImageCount,
	})
	if err != nil {
		return fmt.Errorf("send archive: %w", err)
	}
	return nil
}

// fetchImages resolves a set of image locators against the page. Results
// key by generated archive path; failures count but are omitted.
func (a *Agent) fetchImages(ctx context.Context, req types.FetchImagesRequest) types.FetchImagesResponse {
	resp := types.FetchImagesResponse{
		Success: true,
		Images:  make(map[string]types.FetchedImage, len(req.Images)),
	}
	for _, ref := range req.Images {
		img := a.session.ResolveImage(ctx, types.Image{SourceRef: ref.Src, Role: ref.Role})
		if !img.Resolved() {
			resp.Failed++
			continue
		}
		key := "images/" + archive.ImageFilename(img.MimeType)
		resp.Images[key] = types.FetchedImage{
			Data:         img.Bytes,
			MimeType:     img.MimeType,
			OriginalSrc:  ref.Src,
			OriginalRole: ref.Role,
		}
		resp.Count++
	}
	return resp
}

// Uptime reports how long this agent has been serving.
func (a *Agent) Uptime() time.Duration {
	return time.Since(a.started)
}

// busNotifier forwards scraper notifications as push frames. Progress
// frames carry the accumulated records with image payloads redacted; the
// bytes travel in the archive transfer, not in progress chatter.
type busNotifier struct {
	ep *bus.Endpoint
}

func (n *busNotifier) Progress(current, total int, chats []types.ChatRecord) {
	redacted := make([]types.ChatRecord, len(chats))
	for i, c := range chats {
		rc := c
		rc.Messages = make([]types.Message, len(c.Messages))
		for j, m := range c.Messages {
			rm := m
			if len(m.Images) > 0 {
				rm.Images = make([]types.Image, len(m.Images))
				for k, img := range m.Images {
					img.Bytes = nil
					rm.Images[k] = img
				}
			}
			rc.Messages[j] = rm
		}
		redacted[i] = rc
	}

	if err := n.ep.Push(context.Background(), types.ProgressPush{
		Type:    types.PushProgress,
		Current: current,
		Total:   total,
		Chats:   redacted,
	}); err != nil {
		slog.Debug("progress push failed", "error", err)
	}
}

func (n *busNotifier) Log(level, message string) {
	switch level {
	case "error":
		slog.Error(message)
	case "warn":
		slog.Warn(message)
	default:
		slog.Info(message)
	}
	if err := n.ep.Push(context.Background(), types.LogPush{
		Type:    types.PushLog,
		Level:   level,
		Message: message,
	}); err != nil {
		slog.Debug("log push failed", "error", err)
	}
}
