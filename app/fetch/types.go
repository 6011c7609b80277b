package fetch

import (
	"time"
)

// RawEntry is the canonical shape every format parser maps into. Each parser
// resolves GUID, absolute link, publish timestamp, lead image and tags on its
// own; downstream code never probes format-specific fields.
type RawEntry struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	ImageURL    string
	Author      string
	Tags        []string
	PublishedAt *time.Time
}

// Result is the parsed payload of one feed fetch.
type Result struct {
	FeedTitle string
	Language  string
	Entries   []RawEntry
}
