// internal/scraper/run.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/gemscrape/internal/types"
)

// maxStartIndex bounds how deep into the history a scrape may start.
const maxStartIndex = 1000

// Run scrapes a window of conversations and returns the accumulated records
// together with the terminal status. A failed conversation yields an error
// record in place; it never aborts the batch. Only one Run may be active per
// session.
func (s *Session) Run(ctx context.Context, rng Range, delays Delays) (types.BatchResult, error) {
	if err := s.Reserve(); err != nil {
		return types.BatchResult{Status: types.StatusScraping}, err
	}
	return s.RunReserved(ctx, rng, delays)
}

// RunReserved executes a scrape whose session was already claimed with
// Reserve, releasing the claim when it returns.
func (s *Session) RunReserved(ctx context.Context, rng Range, delays Delays) (types.BatchResult, error) {
	defer s.running.Release(1)

	result, err := s.run(ctx, rng, delays)
	s.setStatus(result.Status)
	return result, err
}

func (s *Session) run(ctx context.Context, rng Range, delays Delays) (types.BatchResult, error) {
	if !s.onTargetPage() {
		s.notify.Log("error", "not on a Gemini Business page")
		return types.BatchResult{Status: types.StatusError}, ErrWrongPage
	}
	if rng.Start < 0 || rng.Start >= maxStartIndex {
		return types.BatchResult{Status: types.StatusError},
			fmt.Errorf("%w: %d", ErrOutOfRange, rng.Start)
	}

	entries, err := s.ListConversations(ctx)
	if err != nil {
		return types.BatchResult{Status: types.StatusError}, fmt.Errorf("list conversations: %w", err)
	}
	if len(entries) == 0 {
		s.notify.Log("info", "no conversations found")
		return types.BatchResult{Status: types.StatusCompleted}, nil
	}
	if rng.Start >= len(entries) {
		return types.BatchResult{Status: types.StatusError, Total: len(entries)},
			fmt.Errorf("%w: start %d but only %d conversations", ErrOutOfRange, rng.Start, len(entries))
	}

	end := len(entries)
	if rng.Count > 0 && rng.Start+rng.Count < end {
		end = rng.Start + rng.Count
	}
	window := entries[rng.Start:end]
	total := len(window)

	s.notify.Log("info", fmt.Sprintf("scraping %d conversations starting at index %d", total, rng.Start))

	records := make([]types.ChatRecord, 0, total)
	for i, entry := range window {
		if s.stop.Load() {
			s.notify.Log("info", "scrape stopped by request")
			return types.BatchResult{Records: records, Status: types.StatusStopped, Total: len(entries)}, nil
		}
		if ctx.Err() != nil {
			return types.BatchResult{Records: records, Status: types.StatusStopped, Total: len(entries)}, ctx.Err()
		}

		index := rng.Start + i
		records = append(records, s.scrapeOne(ctx, index, entry, delays))
		s.notify.Progress(i+1, total, records)

		if i < total-1 {
			sleepCtx(ctx, delays.BetweenItems)
		}
	}

	return types.BatchResult{Records: records, Status: types.StatusCompleted, Total: len(entries)}, nil
}

// scrapeOne activates a conversation and extracts its messages. Panics from
// the page layer are contained here so a single bad conversation cannot take
// down the batch.
func (s *Session) scrapeOne(ctx context.Context, index int, entry ConversationEntry, delays Delays) (rec types.ChatRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("conversation scrape panicked", "index", index, "panic", r)
			rec = types.NewErrorRecord(index, entry.Title, fmt.Errorf("scrape panicked: %v", r))
		}
	}()

	// Activation timeout is best-effort: extraction still runs against
	// whatever the pane holds, which may be nothing.
	if !s.Activate(ctx, entry, delays) {
		s.notify.Log("warn", fmt.Sprintf("conversation %d (%s) did not load, extracting anyway", index, entry.Title))
	}

	msgs, err := s.ExtractMessages(ctx, delays)
	if err != nil {
		return types.NewErrorRecord(index, entry.Title, err)
	}
	if len(msgs) == 0 {
		s.notify.Log("warn", fmt.Sprintf("conversation %d (%s) has no messages", index, entry.Title))
	}

	return types.ChatRecord{
		Index:     index,
		Title:     entry.Title,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Messages:  msgs,
	}
}
