package scanner

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`   // e.g. a file path or request id
	Content  string            `json:"content"`  // the actual content to scan
	Metadata map[string]string `json:"metadata"` // optional metadata
}

// Match is one pattern match inside a content item. Offsets are character
// offsets; End is the last matched character.
type Match struct {
	Name  string `json:"name"`
	ID    *uint  `json:"id,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text,omitempty"`
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string  `json:"source"`
	Matches []Match `json:"matches"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// FilterResult lists the patterns that could match an item and, of those,
// the ones that do.
type FilterResult struct {
	Source     string   `json:"source"`
	Candidates []string `json:"candidates"`
	Confirmed  []string `json:"confirmed"`
}
