// internal/scraper/extract.go
package scraper

import (
	"context"
	"log/slog"

	"github.com/user/gemscrape/internal/dom"
	"github.com/user/gemscrape/internal/types"
)

// ExtractMessages walks the loaded conversation's turns and extracts user and
// assistant content per turn, in turn order. A side contributes a Message
// only when it produced non-empty text or at least one image. Image
// resolution failures never fail the turn; the Image stays with nil bytes.
func (s *Session) ExtractMessages(ctx context.Context, delays Delays) ([]types.Message, error) {
	turns := dom.FindAll(s.page.Root(), turnPath)
	if len(turns) == 0 {
		s.notify.Log("warn", "no turns found in content pane")
		return nil, nil
	}

	var out []types.Message
	for ti, turn := range turns {
		turnIndex := ti + 1
		// Scope dedupe to the turn: a turn's visual payload is either a
		// user upload or an assistant output, never the same asset twice.
		seen := make(map[string]bool)

		user := types.Message{Role: types.RoleUser, TurnIndex: turnIndex}
		if el := dom.FindOne(turn, questionTextPath); el != nil {
			user.Text = el.Text()
		}
		for _, thumb := range dom.FindAll(turn, userAttachmentPath) {
			src := s.previewSource(ctx, thumb, delays)
			if src == "" || seen[src] {
				continue
			}
			seen[src] = true
			// The preview may yield a different locator than the thumbnail;
			// mark both so the assistant pass cannot re-collect this asset.
			if ts := imageSource(thumb); ts != "" {
				seen[ts] = true
			}
			user.Images = append(user.Images, s.ResolveImage(ctx, types.Image{
				SourceRef: src,
				Role:      types.RoleUser,
			}))
		}

		asst := types.Message{Role: types.RoleAssistant, TurnIndex: turnIndex}
		if el := dom.FindOne(turn, responseMarkdownPath); el != nil {
			// Serialized markup, not plain text: the markdown rendition
			// downstream needs the structure.
			asst.Text = el.HTML()
		}
		if asst.Text == "" {
			for _, iel := range dom.FindAll(turn, assistantAttachmentPath) {
				src := imageSource(iel)
				if src == "" || seen[src] {
					continue
				}
				seen[src] = true
				asst.Images = append(asst.Images, s.ResolveImage(ctx, types.Image{
					SourceRef: src,
					Role:      types.RoleAssistant,
				}))
			}
		}

		if !user.Empty() {
			out = append(out, user)
		}
		if !asst.Empty() {
			out = append(out, asst)
		}
	}

	slog.Debug("extracted messages", "turns", len(turns), "messages", len(out))
	return out, nil
}

// previewSource resolves the full-size source for a carousel thumbnail. The
// carousel only renders downscaled previews; activating the thumbnail opens
// a full-size overlay. Falls back to the thumbnail's own img when the
// overlay never appears.
func (s *Session) previewSource(ctx context.Context, thumb dom.Element, delays Delays) string {
	if err := thumb.Click(); err != nil {
		slog.Debug("thumbnail click failed", "error", err)
		return imageSource(thumb)
	}
	sleepCtx(ctx, delays.PreviewSettle)

	src := ""
	if full := firstMatch(s.page.Root(), previewImagePaths); full != nil {
		src = full.Attr("src")
	}
	if closeBtn := dom.FindOne(s.page.Root(), previewClosePath); closeBtn != nil {
		_ = closeBtn.Click()
	}
	if src == "" {
		src = imageSource(thumb)
	}
	return src
}

// imageSource digs the img element out of a ucs-markdown-image host.
func imageSource(host dom.Element) string {
	img := dom.FindOne(host, "img")
	if img == nil {
		return ""
	}
	return img.Attr("src")
}
