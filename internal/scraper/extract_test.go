// internal/scraper/extract_test.go
package scraper

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/user/gemscrape/internal/dom"
	"github.com/user/gemscrape/internal/types"
)

func attachment(src string) string {
	return `<div class="attachment-container"><ucs-markdown-image><img src="` + src + `"></ucs-markdown-image></div>`
}

func TestExtractMessagesTurnOrder(t *testing.T) {
	content := turnMarkup("How do I sort a slice?", "<p>Use <code>sort.Slice</code>.</p>") +
		turnMarkup("And stable sort?", "<p>sort.SliceStable.</p>")
	doc := testPage(t, "", content)
	s := fastSession(doc)

	msgs, err := s.ExtractMessages(context.Background(), Delays{})
	if err != nil {
		t.Fatalf("ExtractMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}

	if msgs[0].Role != types.RoleUser || msgs[0].Text != "How do I sort a slice?" {
		t.Errorf("message 0: got %s %q", msgs[0].Role, msgs[0].Text)
	}
	if msgs[1].Role != types.RoleAssistant || !strings.Contains(msgs[1].Text, "sort.Slice") {
		t.Errorf("message 1: got %s %q", msgs[1].Role, msgs[1].Text)
	}
	// Assistant text carries markup for the downstream markdown conversion.
	if !strings.Contains(msgs[1].Text, "<p>") {
		t.Errorf("assistant text lost its markup: %q", msgs[1].Text)
	}
	if msgs[2].TurnIndex != 2 || msgs[3].TurnIndex != 2 {
		t.Errorf("second turn indexes: %d, %d", msgs[2].TurnIndex, msgs[3].TurnIndex)
	}
}

func TestExtractMessagesRepeatable(t *testing.T) {
	content := turnMarkup("What is a goroutine?", "<p>A lightweight thread.</p>")
	doc := testPage(t, "", content)
	s := fastSession(doc)

	first, err := s.ExtractMessages(context.Background(), Delays{})
	if err != nil {
		t.Fatalf("ExtractMessages: %v", err)
	}
	second, err := s.ExtractMessages(context.Background(), Delays{})
	if err != nil {
		t.Fatalf("ExtractMessages again: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-extraction of an unchanged pane diverged:\n%v\n%v", first, second)
	}
}

func TestExtractMessagesNoTurns(t *testing.T) {
	doc := testPage(t, "", "")
	s := fastSession(doc)

	msgs, err := s.ExtractMessages(context.Background(), Delays{})
	if err != nil {
		t.Fatalf("ExtractMessages: %v", err)
	}
	if msgs != nil {
		t.Fatalf("got %d messages, want none", len(msgs))
	}
}

func TestExtractUserImageFromCarouselPreview(t *testing.T) {
	fullSrc := pngDataURI(t)
	content := `<div class="turn"><div class="question-block"><ucs-fast-markdown><div class="markdown-document">` +
		`<p><span>Look at this</span></p></div></ucs-fast-markdown></div>` +
		`<ucs-summary><ucs-summary-attachments>` + attachment("thumb.png") + `</ucs-summary-attachments></ucs-summary></div>`
	doc := testPage(t, "", content)
	s := fastSession(doc)

	thumb := dom.FindOne(doc.Root(), "ucs-markdown-image")
	overlay := dom.FindOne(doc.Root(), "#overlay")
	if thumb == nil || overlay == nil {
		t.Fatal("fixture missing thumbnail or overlay slot")
	}
	doc.OnClick(thumb, func() error {
		return doc.SetInnerHTML(overlay,
			`<ucs-image-preview><div class="preview-container"><img src="`+fullSrc+`"></div>`+
				`<div class="close-button"></div></ucs-image-preview>`)
	})

	msgs, err := s.ExtractMessages(context.Background(), Delays{})
	if err != nil {
		t.Fatalf("ExtractMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if len(msgs[0].Images) != 1 {
		t.Fatalf("got %d images, want 1", len(msgs[0].Images))
	}
	img := msgs[0].Images[0]
	if img.SourceRef != fullSrc {
		t.Errorf("image source is the thumbnail, not the preview")
	}
	if !img.Resolved() {
		t.Error("inline image did not resolve")
	}
	if img.MimeType != "image/png" {
		t.Errorf("got mime %q, want image/png", img.MimeType)
	}
	if img.Role != types.RoleUser {
		t.Errorf("got role %s, want user", img.Role)
	}
}

func TestExtractUserImageFallsBackToThumbnail(t *testing.T) {
	content := `<div class="turn"><div class="question-block"><ucs-fast-markdown><div class="markdown-document">` +
		`<p><span>Two copies</span></p></div></ucs-fast-markdown></div>` +
		`<ucs-summary><ucs-summary-attachments>` +
		attachment("https://example.com/a.png") + attachment("https://example.com/a.png") +
		`</ucs-summary-attachments></ucs-summary></div>`
	doc := testPage(t, "", content)
	s := fastSession(doc)

	msgs, err := s.ExtractMessages(context.Background(), Delays{})
	if err != nil {
		t.Fatalf("ExtractMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	// No preview overlay ever appears, so both thumbs fall back to their own
	// img src and the duplicate collapses.
	if len(msgs[0].Images) != 1 {
		t.Fatalf("got %d images, want 1 after dedupe", len(msgs[0].Images))
	}
	if got := msgs[0].Images[0].SourceRef; got != "https://example.com/a.png" {
		t.Errorf("got source %q", got)
	}
	if msgs[0].Images[0].Resolved() {
		t.Error("image resolved without a loader")
	}
}

func TestExtractAssistantImagesWhenNoText(t *testing.T) {
	src := pngDataURI(t)
	content := `<div class="turn"><div class="question-block"><ucs-fast-markdown><div class="markdown-document">` +
		`<p><span>Draw a cat</span></p></div></ucs-fast-markdown></div>` +
		`<ucs-summary>` + attachment(src) + `</ucs-summary></div>`
	doc := testPage(t, "", content)
	s := fastSession(doc)

	msgs, err := s.ExtractMessages(context.Background(), Delays{})
	if err != nil {
		t.Fatalf("ExtractMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	asst := msgs[1]
	if asst.Role != types.RoleAssistant || asst.Text != "" {
		t.Fatalf("got %s with text %q, want assistant image-only message", asst.Role, asst.Text)
	}
	if len(asst.Images) != 1 || !asst.Images[0].Resolved() {
		t.Fatalf("assistant image missing or unresolved")
	}
	if asst.Images[0].Role != types.RoleAssistant {
		t.Errorf("got role %s, want assistant", asst.Images[0].Role)
	}
}
