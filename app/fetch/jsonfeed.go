package fetch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// JSON Feed (jsonfeed.org) wire types. The mapping into RawEntry is total;
// no field of the wire format is probed at runtime.
type jsonFeed struct {
	Version string         `json:"version"`
	Title   string         `json:"title"`
	Items   []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	ID            string           `json:"id"`
	URL           string           `json:"url"`
	Title         string           `json:"title"`
	Summary       string           `json:"summary"`
	ContentText   string           `json:"content_text"`
	ContentHTML   string           `json:"content_html"`
	DatePublished string           `json:"date_published"`
	DateModified  string           `json:"date_modified"`
	Image         string           `json:"image"`
	BannerImage   string           `json:"banner_image"`
	Tags          []string         `json:"tags"`
	Authors       []jsonFeedAuthor `json:"authors"`
	Attachments   []jsonAttachment `json:"attachments"`
}

type jsonFeedAuthor struct {
	Name string `json:"name"`
}

type jsonAttachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

func parseJSONFeed(data []byte, feedURL string) (*Result, error) {
	var feed jsonFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if feed.Version == "" {
		return nil, fmt.Errorf("missing JSON Feed version")
	}

	result := &Result{
		FeedTitle: feed.Title,
		Entries:   make([]RawEntry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		result.Entries = append(result.Entries, mapJSONFeedItem(item, feedURL))
	}

	return result, nil
}

func mapJSONFeedItem(item jsonFeedItem, feedURL string) RawEntry {
	link := absoluteURL(item.URL, feedURL)

	content := item.ContentText
	if content == "" {
		content = item.ContentHTML
	}

	entry := RawEntry{
		GUID:        resolveGUID(item.ID, link, item.Title),
		Title:       item.Title,
		Link:        link,
		Summary:     item.Summary,
		Content:     content,
		ImageURL:    resolveJSONImage(item, feedURL),
		Tags:        item.Tags,
		PublishedAt: parseJSONDate(item.DatePublished, item.DateModified),
	}

	if len(item.Authors) > 0 {
		entry.Author = item.Authors[0].Name
	}

	return entry
}

func resolveJSONImage(item jsonFeedItem, feedURL string) string {
	if item.Image != "" {
		return absoluteURL(item.Image, feedURL)
	}
	for _, att := range item.Attachments {
		if strings.HasPrefix(att.MimeType, "image/") && att.URL != "" {
			return absoluteURL(att.URL, feedURL)
		}
	}
	if item.BannerImage != "" {
		return absoluteURL(item.BannerImage, feedURL)
	}
	return ""
}

func parseJSONDate(candidates ...string) *time.Time {
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			t = t.UTC()
			return &t
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
