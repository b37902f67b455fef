package models

// ManifestTimestampLayout is the layout of snapshot timestamps and directory names.
const ManifestTimestampLayout = "20060102_150405"

// Manifest is the authoritative index of one snapshot.
type Manifest struct {
	Timestamp string                   `json:"timestamp"`
	Tables    map[string]ManifestEntry `json:"tables"`
}

// ManifestEntry is either {count, file} or {count: 0, error}.
type ManifestEntry struct {
	Count int    `json:"count"`
	File  string `json:"file,omitempty"`
	Error string `json:"error,omitempty"`
}

// Failed reports whether the table could not be captured.
func (e ManifestEntry) Failed() bool {
	return e.Error != ""
}
