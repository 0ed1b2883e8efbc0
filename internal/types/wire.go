// internal/types/wire.go
package types

// The structs below are the literal wire contract between the exporter and
// the page agent. Request frames carry Action, push frames carry Type; the
// field and action names must not drift, the exporter and agent may be
// different builds.

// Request action names.
const (
	ActionStartScraping      = "startScraping"
	ActionStopScraping       = "stopScraping"
	ActionPing               = "ping"
	ActionFetchImages        = "fetchImages"
	ActionPackageAndTransfer = "packageAndTransfer"
)

// Push type names.
const (
	PushProgress      = "progress"
	PushLog           = "log"
	PushBatchComplete = "batch-complete"
	PushTransferStart = "transfer-start"
	PushChunk         = "chunk"
	PushTransferEnd   = "transfer-end"
)

type StartScrapingRequest struct {
	Action string       `json:"action"`
	Config ScrapeConfig `json:"config"`
}

type StopScrapingRequest struct {
	Action string `json:"action"`
}

type PingRequest struct {
	Action string `json:"action"`
}

// Ack is the generic immediate response to a request.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type PingResponse struct {
	Success    bool `json:"success"`
	IsScraping bool `json:"isScraping"`
}

// ImageRef names one image to resolve, as seen in the page.
type ImageRef struct {
	Src  string `json:"src"`
	Role Role   `json:"role"`
}

type FetchImagesRequest struct {
	Action string     `json:"action"`
	Images []ImageRef `json:"images"`
}

// FetchedImage is one resolved image keyed by its generated archive path.
type FetchedImage struct {
	Data         []byte `json:"data"`
	MimeType     string `json:"mimeType"`
	OriginalSrc  string `json:"originalSrc"`
	OriginalRole Role   `json:"originalRole"`
}

type FetchImagesResponse struct {
	Success bool                    `json:"success"`
	Images  map[string]FetchedImage `json:"images"`
	Count   int                     `json:"count"`
	Failed  int                     `json:"failed"`
}

type PackageAndTransferRequest struct {
	Action     string       `json:"action"`
	Chats      []ChatRecord `json:"chats"`
	StartIndex int          `json:"startIndex"`
	ChunkSize  int          `json:"chunkSize"`
}

type ProgressPush struct {
	Type    string       `json:"type"`
	Current int          `json:"current"`
	Total   int          `json:"total"`
	Chats   []ChatRecord `json:"chats"`
}

type LogPush struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type BatchCompletePush struct {
	Type        string `json:"type"`
	BatchNumber int    `json:"batchNumber"`
	ChatCount   int    `json:"chatCount"`
	StartIndex  int    `json:"startIndex"`
	TotalChats  int    `json:"totalChats"`
}

// TransferMetadata describes the archive announced by a transfer-start frame.
type TransferMetadata struct {
	Filename   string `json:"filename"`
	Size       int    `json:"size"`
	ChatCount  int    `json:"chatCount"`
	ImageCount int    `json:"imageCount"`
}

type TransferStartPush struct {
	Type       string           `json:"type"`
	TransferID TransferID       `json:"transferId"`
	Metadata   TransferMetadata `json:"metadata"`
}

type ChunkPush struct {
	Type        string     `json:"type"`
	TransferID  TransferID `json:"transferId"`
	ChunkIndex  int        `json:"chunkIndex"`
	TotalChunks int        `json:"totalChunks"`
	Data        []byte     `json:"data"`
	IsLast      bool       `json:"isLast"`
}

type TransferEndPush struct {
	Type       string     `json:"type"`
	TransferID TransferID `json:"transferId"`
}
