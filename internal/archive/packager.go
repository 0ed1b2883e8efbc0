// internal/archive/packager.go

// Package archive turns scraped chat records into a zip archive: one folder
// per chat holding chat.json, chat.md and the resolved images, plus a
// top-level metadata.json manifest.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/user/gemscrape/internal/types"
)

const sourceURL = "https://business.gemini.google.com"

const maxFolderTitleLen = 50

var unsafeTitleChars = regexp.MustCompile(`[/\\:*?"<>|]`)

// Manifest is the top-level metadata.json written alongside the chat folders.
type Manifest struct {
	ExportTime string        `json:"exportTime"`
	SourceURL  string        `json:"sourceUrl"`
	StartIndex int           `json:"startIndex"`
	ChatCount  int           `json:"chatCount"`
	ImageCount int           `json:"imageCount"`
	Chats      []ChatSummary `json:"chats"`
	// Images maps each archived image path back to its page locator.
	Images map[string]string `json:"images,omitempty"`
}

// ChatSummary is one manifest row.
type ChatSummary struct {
	Index        int    `json:"index"`
	Title        string `json:"title"`
	Folder       string `json:"folder"`
	MessageCount int    `json:"messageCount"`
	ImageCount   int    `json:"imageCount"`
	TokenCount   int    `json:"tokenCount,omitempty"`
	Error        string `json:"error,omitempty"`
}

// chatDoc is the chat.json shape. Image payloads live as files next to it;
// the JSON carries relative paths instead of bytes.
type chatDoc struct {
	Index     int          `json:"index"`
	Title     string       `json:"title"`
	Timestamp string       `json:"timestamp"`
	Messages  []docMessage `json:"messages"`
	Error     string       `json:"error,omitempty"`
}

type docMessage struct {
	Role      types.Role `json:"role"`
	Text      string     `json:"text"`
	TurnIndex int        `json:"turnIndex"`
	Images    []docImage `json:"images,omitempty"`
}

type docImage struct {
	Source   string `json:"src"`
	File     string `json:"file,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Packager assembles archives. The token encoder is best-effort: when it
// cannot be loaded the manifest simply omits token counts.
type Packager struct {
	enc *tiktoken.Tiktoken
}

func NewPackager() *Packager {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Debug("token encoding unavailable, skipping token counts", "error", err)
		enc = nil
	}
	return &Packager{enc: enc}
}

// Package builds the zip archive for a batch of records. startIndex is the
// batch's position in the overall export and lands in the manifest; record
// indexes are absolute already. Unresolved images keep their JSON reference
// but get no file.
func (p *Packager) Package(records []types.ChatRecord, startIndex int) ([]byte, Manifest, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := Manifest{
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		SourceURL:  sourceURL,
		StartIndex: startIndex,
		ChatCount:  len(records),
		Chats:      make([]ChatSummary, 0, len(records)),
		Images:     map[string]string{},
	}

	for _, rec := range records {
		folder := fmt.Sprintf("chat_%d_%s", rec.Index, sanitizeTitle(rec.Title))

		doc := chatDoc{
			Index:     rec.Index,
			Title:     rec.Title,
			Timestamp: rec.Timestamp,
			Error:     rec.Error,
			Messages:  make([]docMessage, 0, len(rec.Messages)),
		}
		imageCount := 0

		for _, msg := range rec.Messages {
			dm := docMessage{Role: msg.Role, Text: msg.Text, TurnIndex: msg.TurnIndex}
			for _, img := range msg.Images {
				di := docImage{Source: img.SourceRef, MimeType: img.MimeType}
				if img.Resolved() {
					name := ImageFilename(img.MimeType)
					if err := writeFile(zw, folder+"/images/"+name, img.Bytes); err != nil {
						return nil, Manifest{}, fmt.Errorf("write image: %w", err)
					}
					di.File = "images/" + name
					manifest.Images[folder+"/"+di.File] = img.SourceRef
					imageCount++
				}
				dm.Images = append(dm.Images, di)
			}
			doc.Messages = append(doc.Messages, dm)
		}

		jsonBytes, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, Manifest{}, fmt.Errorf("marshal chat %d: %w", rec.Index, err)
		}
		if err := writeFile(zw, folder+"/chat.json", jsonBytes); err != nil {
			return nil, Manifest{}, fmt.Errorf("write chat.json: %w", err)
		}

		md := renderMarkdown(doc)
		if err := writeFile(zw, folder+"/chat.md", []byte(md)); err != nil {
			return nil, Manifest{}, fmt.Errorf("write chat.md: %w", err)
		}

		manifest.ImageCount += imageCount
		manifest.Chats = append(manifest.Chats, ChatSummary{
			Index:        rec.Index,
			Title:        rec.Title,
			Folder:       folder,
			MessageCount: len(rec.Messages),
			ImageCount:   imageCount,
			TokenCount:   p.tokenCount(rec),
			Error:        rec.Error,
		})
	}

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeFile(zw, "metadata.json", manifestBytes); err != nil {
		return nil, Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, Manifest{}, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), manifest, nil
}

// Filename names a batch archive after its start index, chat count and
// build time.
func Filename(startIndex, chatCount int, now time.Time) string {
	return fmt.Sprintf("gemini-chats-idx%d-%d-%s.zip", startIndex, chatCount, now.Format("20060102-150405"))
}

func (p *Packager) tokenCount(rec types.ChatRecord) int {
	if p.enc == nil {
		return 0
	}
	total := 0
	for _, msg := range rec.Messages {
		total += len(p.enc.Encode(msg.Text, nil, nil))
	}
	return total
}

func writeFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// sanitizeTitle makes a chat title safe as a folder-name component.
func sanitizeTitle(title string) string {
	s := unsafeTitleChars.ReplaceAllString(title, "_")
	if len(s) > maxFolderTitleLen {
		s = s[:maxFolderTitleLen]
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// ImageFilename generates a unique archive name for an image payload.
func ImageFilename(mime string) string {
	return "image_" + uuid.NewString() + extForMime(mime)
}

func extForMime(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}
