package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/hsfilter/pkg/scanner"
)

// Request types understood by the server.
const (
	TypeScan      = "scan"
	TypeScanBatch = "scan_batch"
	TypeFilter    = "filter"
	TypeClose     = "close"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "scan" | "scan_batch" | "filter" | "close"
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload for "scan" and "filter" requests
type ScanPayload struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | request type | "decode" | "unknown"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
	Engine  string `json:"engine"`
	Rules   int    `json:"rules"`
}
