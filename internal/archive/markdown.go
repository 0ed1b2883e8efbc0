// internal/archive/markdown.go
package archive

import (
	"fmt"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// renderMarkdown produces the human-readable chat.md rendition of a chat.
// Assistant text arrives as serialized markup and is converted; conversion
// failures fall back to the raw text rather than losing the message.
func renderMarkdown(doc chatDoc) string {
	var b strings.Builder

	title := doc.Title
	if title == "" {
		title = "Untitled conversation"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if doc.Timestamp != "" {
		fmt.Fprintf(&b, "*Exported %s*\n\n", doc.Timestamp)
	}
	if doc.Error != "" {
		fmt.Fprintf(&b, "_Export failed: %s_\n", doc.Error)
		return b.String()
	}

	for _, msg := range doc.Messages {
		switch msg.Role {
		case "assistant":
			b.WriteString("## Gemini\n\n")
		default:
			b.WriteString("## User\n\n")
		}

		text := msg.Text
		if msg.Role == "assistant" && strings.HasPrefix(strings.TrimSpace(text), "<") {
			if md, err := htmltomarkdown.ConvertString(text); err == nil {
				text = md
			} else {
				slog.Debug("markdown conversion failed", "chat", doc.Index, "error", err)
			}
		}
		if text != "" {
			b.WriteString(strings.TrimSpace(text))
			b.WriteString("\n\n")
		}

		for _, img := range msg.Images {
			if img.File != "" {
				fmt.Fprintf(&b, "![Image](%s)\n\n", img.File)
			} else {
				fmt.Fprintf(&b, "![Image](%s)\n\n", img.Source)
			}
		}
	}

	return b.String()
}
