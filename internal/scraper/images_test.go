// internal/scraper/images_test.go
package scraper

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/gemscrape/internal/types"
)

// tinyPNG encodes a 1x1 image so tests carry a real decodable payload.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG(t))
}

func TestDecodeDataURI(t *testing.T) {
	raw := tinyPNG(t)

	data, mime, err := decodeDataURI("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("got mime %q, want image/png", mime)
	}
	if !bytes.Equal(data, raw) {
		t.Error("payload round-trip mismatch")
	}

	data, mime, err = decodeDataURI("data:,hello")
	if err != nil {
		t.Fatalf("decode plain: %v", err)
	}
	if mime != "text/plain" || string(data) != "hello" {
		t.Errorf("got %q %q", mime, data)
	}

	for _, bad := range []string{"http://example.com/a.png", "data:image/png;base64", "data:image/png;base64,!!!"} {
		if _, _, err := decodeDataURI(bad); err == nil {
			t.Errorf("decode %q: expected error", bad)
		}
	}
}

func TestResolveImageInline(t *testing.T) {
	doc := testPage(t, "", "")
	s := fastSession(doc)

	img := s.ResolveImage(context.Background(), types.Image{SourceRef: pngDataURI(t), Role: types.RoleUser})
	if !img.Resolved() {
		t.Fatal("inline image did not resolve")
	}
	if img.MimeType != "image/png" {
		t.Errorf("got mime %q", img.MimeType)
	}
}

func TestResolveImageHTTP(t *testing.T) {
	raw := tinyPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(raw)
	}))
	defer srv.Close()

	doc := testPage(t, "", "")
	s := NewSession(doc, NewHTTPLoader(), nil)

	img := s.ResolveImage(context.Background(), types.Image{SourceRef: srv.URL + "/a.png"})
	if !img.Resolved() {
		t.Fatal("image did not resolve")
	}
	if img.MimeType != "image/png" {
		t.Errorf("got mime %q", img.MimeType)
	}
	if !bytes.Equal(img.Bytes, raw) {
		t.Error("payload mismatch")
	}
}

func TestResolveImageReencodesNonImageMime(t *testing.T) {
	raw := tinyPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Misdeclared type: the payload is a real PNG.
		w.Header().Set("Content-Type", "application/x-blob")
		w.Write(raw)
	}))
	defer srv.Close()

	doc := testPage(t, "", "")
	s := NewSession(doc, NewHTTPLoader(), nil)

	img := s.ResolveImage(context.Background(), types.Image{SourceRef: srv.URL})
	if !img.Resolved() {
		t.Fatal("image did not resolve")
	}
	if img.MimeType != "image/png" {
		t.Errorf("got mime %q after re-encode", img.MimeType)
	}
	if _, err := png.Decode(bytes.NewReader(img.Bytes)); err != nil {
		t.Errorf("re-encoded payload is not a PNG: %v", err)
	}
}

func TestResolveImageFailureKeepsReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	doc := testPage(t, "", "")
	s := NewSession(doc, NewHTTPLoader(), nil)

	src := srv.URL + "/missing.png"
	img := s.ResolveImage(context.Background(), types.Image{SourceRef: src})
	if img.Resolved() {
		t.Fatal("image resolved from a 404")
	}
	if img.SourceRef != src {
		t.Errorf("source reference changed to %q", img.SourceRef)
	}
}

func TestResolveImageWithoutLoader(t *testing.T) {
	doc := testPage(t, "", "")
	s := fastSession(doc)

	img := s.ResolveImage(context.Background(), types.Image{SourceRef: "https://example.com/a.png"})
	if img.Resolved() {
		t.Fatal("image resolved without a loader")
	}
}
