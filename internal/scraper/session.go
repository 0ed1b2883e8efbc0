// internal/scraper/session.go
package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/gemscrape/internal/dom"
	"github.com/user/gemscrape/internal/types"
)

var (
	// ErrAlreadyRunning is returned when a start request arrives while a
	// scrape is active. Concurrent starts are rejected, never queued.
	ErrAlreadyRunning = errors.New("scrape already running")

	// ErrOutOfRange is returned when the requested start index lies beyond
	// the enumerated conversation list or past the scan ceiling.
	ErrOutOfRange = errors.New("start index out of range")

	// ErrWrongPage is returned when the page host does not match the target
	// site. This is a blocking precondition, not a per-item failure.
	ErrWrongPage = errors.New("not a Gemini Business page")
)

// Notifier receives controller observations. The agent forwards these to the
// exporter as push frames; tests plug in recorders.
type Notifier interface {
	Progress(current, total int, chats []types.ChatRecord)
	Log(level, message string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Progress(int, int, []types.ChatRecord) {}
func (NopNotifier) Log(string, string)                    {}

// Delays are the pacing knobs of one scrape run.
type Delays struct {
	BetweenItems  time.Duration
	AfterActivate time.Duration
	PreviewSettle time.Duration
}

// DelaysFromConfig converts wire-level millisecond values, substituting the
// defaults for anything unset.
func DelaysFromConfig(cfg types.ScrapeConfig) Delays {
	d := Delays{
		BetweenItems:  500 * time.Millisecond,
		AfterActivate: 3 * time.Second,
		PreviewSettle: 5 * time.Second,
	}
	if cfg.DelayBetweenChats > 0 {
		d.BetweenItems = time.Duration(cfg.DelayBetweenChats) * time.Millisecond
	}
	if cfg.DelayAfterClick > 0 {
		d.AfterActivate = time.Duration(cfg.DelayAfterClick) * time.Millisecond
	}
	if cfg.PreviewWaitTime > 0 {
		d.PreviewSettle = time.Duration(cfg.PreviewWaitTime) * time.Millisecond
	}
	return d
}

// Range selects the conversation index window [Start, Start+Count).
// Count <= 0 means through the end of the list.
type Range struct {
	Start int
	Count int
}

// Session owns all mutable scrape state for one page: the running guard, the
// stop flag, and the current status. All message-handler invocations share
// one Session; nothing about a scrape lives in package globals.
type Session struct {
	page   dom.Page
	loader ImageLoader
	notify Notifier

	running *semaphore.Weighted
	stop    atomic.Bool

	mu     sync.Mutex
	status types.Status

	// Poll tuning, overridable in tests.
	navTimeout   time.Duration
	navPoll      time.Duration
	expandSettle time.Duration
}

// NewSession creates a Session bound to the given page. A nil loader
// disables network image resolution (data URIs still decode); a nil notifier
// discards notifications.
func NewSession(page dom.Page, loader ImageLoader, notify Notifier) *Session {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Session{
		page:         page,
		loader:       loader,
		notify:       notify,
		running:      semaphore.NewWeighted(1),
		status:       types.StatusIdle,
		navTimeout:   15 * time.Second,
		navPoll:      time.Second,
		expandSettle: 2 * time.Second,
	}
}

// SetNotifier replaces the session's notifier. Call before Run; the
// notifier is not guarded against a concurrent scrape.
func (s *Session) SetNotifier(n Notifier) {
	if n == nil {
		n = NopNotifier{}
	}
	s.notify = n
}

// Reserve claims the session for a scrape. Callers that must signal
// acceptance before the scrape runs claim first, then call RunReserved.
// A claim while another scrape holds it fails with ErrAlreadyRunning;
// starts are rejected, never queued.
func (s *Session) Reserve() error {
	if !s.running.TryAcquire(1) {
		return ErrAlreadyRunning
	}
	s.stop.Store(false)
	s.setStatus(types.StatusScraping)
	return nil
}

// Stop requests cooperative cancellation. The controller observes the flag
// at the top of each item iteration; in-flight waits finish their tick.
func (s *Session) Stop() {
	s.stop.Store(true)
}

// Status returns the session status and whether a scrape is active.
func (s *Session) Status() (types.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.status == types.StatusScraping
}

func (s *Session) setStatus(st types.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// onTargetPage checks the hard precondition that the page belongs to the
// one site this tool understands.
func (s *Session) onTargetPage() bool {
	return strings.Contains(s.page.Location(), expectedHost)
}

// sleepCtx sleeps for d or until the context is done, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
