// internal/scraper/scraper_test.go
package scraper

import (
	"testing"
	"time"

	"github.com/user/gemscrape/internal/dom"
)

const testLocation = "https://business.gemini.google/u/0/"

// testPage builds a minimal rendition of the app shell: a nav panel behind a
// shadow root holding the sidebar markup, a content pane holding the turn
// markup, and an empty overlay slot for preview tests.
func testPage(t *testing.T, sidebar, content string) *dom.Document {
	t.Helper()
	markup := `<html><body><ucs-standalone-app><div class="ucs-standalone-outer-row-container">` +
		`<ucs-nav-panel><template shadowrootmode="open">` + sidebar + `</template></ucs-nav-panel>` +
		`<ucs-results><ucs-conversation><div class="main">` + content + `</div></ucs-conversation></ucs-results>` +
		`<div id="overlay"></div>` +
		`</div></ucs-standalone-app></body></html>`
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatalf("parse test page: %v", err)
	}
	doc.SetLocation(testLocation)
	return doc
}

func sidebarList(items ...string) string {
	s := `<div class="conversation-list">`
	for _, it := range items {
		s += `<div class="conversation-container"><span class="title">` + it + `</span></div>`
	}
	return s + `</div>`
}

func turnMarkup(question, answer string) string {
	s := `<div class="turn"><div class="question-block"><ucs-fast-markdown><div class="markdown-document"><p><span>` +
		question + `</span></p></div></ucs-fast-markdown></div><ucs-summary>`
	if answer != "" {
		s += `<div class="summary-container"><div class="summary-contents"><ucs-text-streamer><ucs-response-markdown>` +
			`<ucs-fast-markdown><div class="markdown-document">` + answer + `</div></ucs-fast-markdown>` +
			`</ucs-response-markdown></ucs-text-streamer></div></div>`
	}
	return s + `</ucs-summary></div>`
}

// fastSession shrinks the polling and settle intervals so tests do not wait
// on production timings.
func fastSession(doc *dom.Document) *Session {
	s := NewSession(doc, nil, nil)
	s.navTimeout = 50 * time.Millisecond
	s.navPoll = time.Millisecond
	s.expandSettle = 0
	return s
}
