package models

// Document is one stored record document and the columns derived from its
// path and body for querying.
type Document struct {
	Path        string
	OwnerID     string
	RecordID    string
	Legacy      bool
	LogicalDate int64
	UpdatedAt   int64
	Body        map[string]any
}
