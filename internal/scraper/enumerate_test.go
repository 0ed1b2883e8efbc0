// internal/scraper/enumerate_test.go
package scraper

import (
	"context"
	"strings"
	"testing"

	"github.com/user/gemscrape/internal/dom"
)

func TestListConversations(t *testing.T) {
	doc := testPage(t, sidebarList("Trip planning", "Recipe ideas", "Debugging help"), "")
	s := fastSession(doc)

	entries, err := s.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	want := []string{"Trip planning", "Recipe ideas", "Debugging help"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Title != w {
			t.Errorf("entry %d: got title %q, want %q", i, entries[i].Title, w)
		}
	}
}

func TestListConversationsExpandsShowMore(t *testing.T) {
	sidebar := `<div class="conversation-list">` +
		`<div class="conversation-container"><span class="title">First</span></div>` +
		`<div class="conversation-container"><span class="title">Second</span></div>` +
		`<div class="show-more-container"><button>Show more</button></div>` +
		`</div>`
	doc := testPage(t, sidebar, "")
	s := fastSession(doc)

	btn := dom.FindOne(doc.Root(), ".show-more-container")
	if btn == nil {
		t.Fatal("show-more control not found in fixture")
	}
	list := dom.FindOne(doc.Root(), "[class*=conversation-list]")
	doc.OnClick(btn, func() error {
		return doc.SetInnerHTML(list,
			`<div class="conversation-container"><span class="title">First</span></div>`+
				`<div class="conversation-container"><span class="title">Second</span></div>`+
				`<div class="conversation-container"><span class="title">Third</span></div>`)
	})

	entries, err := s.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	want := []string{"First", "Second", "Third"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries after expansion, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Title != w {
			t.Errorf("entry %d: got title %q, want %q", i, entries[i].Title, w)
		}
	}
}

func TestListConversationsMissingSidebar(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><div>nothing here</div></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc.SetLocation(testLocation)
	s := fastSession(doc)

	entries, err := s.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestEntryTitleTruncation(t *testing.T) {
	long := strings.Repeat("a", 150)
	doc := testPage(t, sidebarList(long), "")
	s := fastSession(doc)

	entries, err := s.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := len([]rune(entries[0].Title)); got != maxTitleRunes {
		t.Errorf("title length %d, want %d", got, maxTitleRunes)
	}
}

func TestEntryTitleFallback(t *testing.T) {
	sidebar := `<div class="conversation-list"><div class="conversation-container"></div></div>`
	doc := testPage(t, sidebar, "")
	s := fastSession(doc)

	entries, err := s.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Title != "Untitled conversation" {
		t.Errorf("got title %q, want fallback", entries[0].Title)
	}
}
