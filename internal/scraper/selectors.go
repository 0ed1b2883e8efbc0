// internal/scraper/selectors.go
package scraper

// Selector paths for the Gemini Business UI, discovered empirically. The app
// renders almost everything behind nested shadow roots, so paths are resolved
// with the deep query engine. Each lookup keeps a short fallback list ordered
// from most to least specific; when Google reshuffles the page these are the
// lines to update.

const expectedHost = "business.gemini.google"

var conversationListPaths = []string{
	"ucs-standalone-app .ucs-standalone-outer-row-container ucs-nav-panel .conversation-list",
	"ucs-standalone-app .conversation-list",
	"[class*=conversation-list]",
}

var conversationItemSelectors = []string{
	".conversation-container",
	".conversation-list-item",
	"[class*=conversation-list-item]",
}

var showMorePaths = []string{
	"ucs-standalone-app .ucs-standalone-outer-row-container ucs-nav-panel .conversation-list .show-more-container",
	".conversation-list .show-more-container",
	".show-more-container",
}

var entryTitleSelectors = []string{
	"[class*=title]",
	"[class*=name]",
	"span",
	"div",
}

// turnPath resolves the turn list of the currently loaded conversation pane.
const turnPath = "ucs-standalone-app .ucs-standalone-outer-row-container ucs-results ucs-conversation .main .turn"

// Paths below are resolved relative to a single turn element.
const (
	questionTextPath        = ".question-block ucs-fast-markdown .markdown-document p span"
	userAttachmentPath      = "ucs-summary ucs-summary-attachments .attachment-container ucs-markdown-image"
	responseMarkdownPath    = "ucs-summary .summary-container .summary-contents ucs-text-streamer ucs-response-markdown ucs-fast-markdown .markdown-document"
	assistantAttachmentPath = "ucs-summary .attachment-container ucs-markdown-image"
)

// Full-size preview shown after activating a carousel thumbnail.
var previewImagePaths = []string{
	"ucs-image-preview .preview-container img",
	"ucs-image-preview img",
	".image-preview img",
}

const previewClosePath = "ucs-image-preview .close-button"
