// internal/types/models.go
package types

import "time"

// Role identifies which side of a conversation turn produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is one image reference extracted from a conversation turn. Bytes is
// nil until resolution succeeds; a failed resolution keeps the reference with
// nil Bytes and empty MimeType so callers can decide to drop or retry.
type Image struct {
	SourceRef string `json:"src"`
	Role      Role   `json:"role"`
	Bytes     []byte `json:"data,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
}

// Resolved reports whether pixel data was successfully captured.
func (i Image) Resolved() bool {
	return len(i.Bytes) > 0 && i.MimeType != ""
}

// Message is one side of a conversation turn. A Message is only emitted when
// it carries non-empty text or at least one image.
type Message struct {
	Role      Role    `json:"role"`
	Text      string  `json:"text"`
	Images    []Image `json:"images,omitempty"`
	TurnIndex int     `json:"turnIndex"`
}

// Empty reports whether the message carries neither text nor images.
func (m Message) Empty() bool {
	return m.Text == "" && len(m.Images) == 0
}

// ChatRecord is the scrape result for a single conversation. When the whole
// item fails, Error is set and Messages stays empty; the record still occupies
// its slot in the batch so downstream consumers see per-item outcomes.
type ChatRecord struct {
	Index     int       `json:"index"`
	Title     string    `json:"title"`
	Timestamp string    `json:"timestamp"`
	Messages  []Message `json:"messages"`
	Error     string    `json:"error,omitempty"`
}

// NewErrorRecord builds a ChatRecord for a conversation whose extraction
// pipeline failed as a whole.
func NewErrorRecord(index int, title string, err error) ChatRecord {
	return ChatRecord{
		Index:     index,
		Title:     title,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Messages:  []Message{},
		Error:     err.Error(),
	}
}

// Status is the terminal (or in-flight) state of a scrape session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusScraping  Status = "scraping"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// BatchResult is the ordered outcome of one controller pass over an index
// window. Records are in ascending index order.
type BatchResult struct {
	Records []ChatRecord `json:"records"`
	Status  Status       `json:"status"`
	// Total is how many conversations the sidebar listed, independent of the
	// requested window.
	Total int `json:"total"`
}

// ScrapeConfig is the per-run configuration carried by a startScraping
// request. Delays are in milliseconds, matching the wire contract.
type ScrapeConfig struct {
	DelayBetweenChats int  `json:"delayBetweenChats"`
	DelayAfterClick   int  `json:"delayAfterClick"`
	PreviewWaitTime   int  `json:"previewWaitTime"`
	ExportStartIndex  int  `json:"exportStartIndex"`
	ExportCount       int  `json:"exportCount"`
	UseRange          bool `json:"useRange"`
	BatchNumber       int  `json:"batchNumber"`
}
