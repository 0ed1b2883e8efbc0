// internal/scraper/navigate.go
package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/gemscrape/internal/dom"
)

// Activate clicks a conversation entry and waits for the content pane to
// populate. It polls the turn list at a fixed interval up to the session's
// navigation timeout and reports true as soon as at least one turn renders.
// A location change is logged but is not the success condition: content can
// load with or without one. On timeout it returns false and the caller
// proceeds best-effort.
func (s *Session) Activate(ctx context.Context, entry ConversationEntry, delays Delays) bool {
	before := s.page.Location()

	if err := entry.el.Click(); err != nil {
		// Direct activation threw; fall back to a synthesized event.
		slog.Debug("direct click failed, dispatching event", "title", entry.Title, "error", err)
		if derr := entry.el.Dispatch("click"); derr != nil {
			s.notify.Log("warn", "activation failed: "+derr.Error())
		}
	}

	sleepCtx(ctx, delays.AfterActivate)

	deadline := time.Now().Add(s.navTimeout)
	for {
		turns := dom.FindAll(s.page.Root(), turnPath)
		if len(turns) > 0 {
			if after := s.page.Location(); after != before {
				slog.Debug("location changed", "from", before, "to", after)
			}
			return true
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			s.notify.Log("warn", "content pane did not populate before timeout")
			return false
		}
		sleepCtx(ctx, s.navPoll)
	}
}
