// internal/scraper/images.go
package scraper

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	// Registered decoders for the re-encode path.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/user/gemscrape/internal/types"
)

const imageResolveTimeout = 10 * time.Second

// maxImageBytes caps a single fetched image. Chat attachments are small;
// anything larger is a misresolved locator.
const maxImageBytes = 32 << 20

// ImageLoader fetches the raw bytes behind a non-inline image locator.
// Implementations must honor the context deadline.
type ImageLoader interface {
	Load(ctx context.Context, src string) (data []byte, mimeType string, err error)
}

// HTTPLoader resolves image locators over plain HTTP.
type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader() *HTTPLoader {
	return &HTTPLoader{client: &http.Client{Timeout: 30 * time.Second}}
}

func (l *HTTPLoader) Load(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// ResolveImage fills in the pixel data for an image reference. Inline data
// URIs decode directly; everything else goes through the loader with a
// bounded timeout, re-encoding to PNG when the payload renders but does not
// already carry an image mime type. Resolution failures are not errors: the
// Image comes back with nil bytes and the caller keeps the reference.
func (s *Session) ResolveImage(ctx context.Context, img types.Image) types.Image {
	if strings.HasPrefix(img.SourceRef, "data:") {
		data, mime, err := decodeDataURI(img.SourceRef)
		if err != nil {
			slog.Debug("data URI decode failed", "error", err)
			return img
		}
		img.Bytes, img.MimeType = data, mime
		return img
	}

	if s.loader == nil {
		return img
	}

	ctx, cancel := context.WithTimeout(ctx, imageResolveTimeout)
	defer cancel()

	data, mime, err := s.loader.Load(ctx, img.SourceRef)
	if err != nil {
		slog.Debug("image resolution failed", "src", img.SourceRef, "error", err)
		return img
	}

	if !strings.HasPrefix(mime, "image/") {
		// The page rendered it, so the pixels are decodable even when the
		// transport lied about the type. Redraw to PNG.
		decoded, _, derr := image.Decode(bytes.NewReader(data))
		if derr != nil {
			slog.Debug("image re-encode failed", "src", img.SourceRef, "error", derr)
			return img
		}
		var buf bytes.Buffer
		if perr := png.Encode(&buf, decoded); perr != nil {
			return img
		}
		data, mime = buf.Bytes(), "image/png"
	}

	img.Bytes, img.MimeType = data, mime
	return img
}

// decodeDataURI parses "data:<mime>[;base64],<payload>".
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	head, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI: no payload")
	}

	mime := head
	b64 := false
	if h, found := strings.CutSuffix(head, ";base64"); found {
		mime, b64 = h, true
	}
	if mime == "" {
		mime = "text/plain"
	}

	if b64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode base64 payload: %w", err)
		}
		return data, mime, nil
	}
	return []byte(payload), mime, nil
}
