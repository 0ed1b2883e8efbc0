// internal/scraper/enumerate.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/gemscrape/internal/dom"
)

const maxTitleRunes = 100

// ConversationEntry is a handle to one sidebar item plus its display title.
// The handle is only valid until the sidebar is re-enumerated or the page
// navigates; the controller re-lists per batch instead of caching entries.
type ConversationEntry struct {
	Title string
	el    dom.Element
}

// ListConversations discovers the sidebar conversation list, expanding a
// "show more" control when one is present and enabled. Initially visible
// entries come first, newly revealed ones after, matching on-screen order.
// A missing sidebar yields an empty slice, not an error: zero entries means
// "nothing to scrape".
func (s *Session) ListConversations(ctx context.Context) ([]ConversationEntry, error) {
	container := firstMatch(s.page.Root(), conversationListPaths)
	if container == nil {
		s.notify.Log("warn", "conversation list container not found")
		return nil, nil
	}

	entries := s.collectEntries(container)

	if btn := firstMatch(s.page.Root(), showMorePaths); btn != nil && btn.Visible() && btn.Enabled() {
		s.notify.Log("info", "expanding conversation list")
		if err := btn.Click(); err != nil {
			slog.Debug("show-more click failed", "error", err)
		}
		sleepCtx(ctx, s.expandSettle)

		// The container may have been re-rendered; resolve it again.
		if container = firstMatch(s.page.Root(), conversationListPaths); container != nil {
			expanded := s.collectEntries(container)
			if len(expanded) > len(entries) {
				entries = append(entries, expanded[len(entries):]...)
			}
		}
	}

	s.notify.Log("info", fmt.Sprintf("found %d conversations", len(entries)))
	return entries, nil
}

func (s *Session) collectEntries(container dom.Element) []ConversationEntry {
	var items []dom.Element
	for _, sel := range conversationItemSelectors {
		if items = dom.FindAll(container, sel); len(items) > 0 {
			break
		}
	}
	if len(items) == 0 {
		// Last resort: take the container's visible children as items.
		for _, c := range container.Children() {
			if c.Visible() {
				items = append(items, c)
			}
		}
	}

	entries := make([]ConversationEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, ConversationEntry{
			Title: entryTitle(item),
			el:    item,
		})
	}
	return entries
}

// entryTitle derives a display title from the first non-empty title-ish
// descendant, truncated to a sane length.
func entryTitle(item dom.Element) string {
	for _, sel := range entryTitleSelectors {
		el := dom.FindOne(item, sel)
		if el == nil {
			continue
		}
		if t := collapseSpace(el.Text()); t != "" {
			return truncateRunes(t, maxTitleRunes)
		}
	}
	if t := collapseSpace(item.Text()); t != "" {
		return truncateRunes(t, maxTitleRunes)
	}
	return "Untitled conversation"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstMatch(root dom.Element, paths []string) dom.Element {
	for _, p := range paths {
		if el := dom.FindOne(root, p); el != nil {
			return el
		}
	}
	return nil
}
