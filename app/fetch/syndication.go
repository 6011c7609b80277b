package fetch

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

// parseSyndication handles the structured formats (RSS 2.0, RSS 1.0, Atom).
func parseSyndication(data []byte, feedURL string) (*Result, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse syndication feed: %w", err)
	}

	result := &Result{
		FeedTitle: feed.Title,
		Language:  feed.Language,
		Entries:   make([]RawEntry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		result.Entries = append(result.Entries, mapSyndicationItem(item, feedURL))
	}

	return result, nil
}

func mapSyndicationItem(item *gofeed.Item, feedURL string) RawEntry {
	link := absoluteURL(item.Link, feedURL)

	entry := RawEntry{
		GUID:        resolveGUID(item.GUID, link, item.Title),
		Title:       item.Title,
		Link:        link,
		Summary:     item.Description,
		Content:     resolveContent(item),
		ImageURL:    resolveImage(item, feedURL),
		Tags:        item.Categories,
		PublishedAt: resolvePublished(item),
	}

	if item.Author != nil {
		entry.Author = item.Author.Name
	}

	return entry
}

// resolveGUID falls through explicit id -> link -> hash of title+link, so
// every entry ends up with a stable per-feed identity.
func resolveGUID(guid, link, title string) string {
	if guid != "" {
		return guid
	}
	if link != "" {
		return link
	}
	return hashGUID(title + link)
}

func hashGUID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func resolveContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// resolvePublished tries parsed timestamps first, then loose parsing of the
// raw fields; feeds disagree wildly on date formats.
func resolvePublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// resolveImage walks the candidate sources in priority order: media
// extension, enclosure, feed-level item image, first inline <img>.
func resolveImage(item *gofeed.Item, feedURL string) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if strings.HasPrefix(ext.Attrs["type"], "image/") && ext.Attrs["url"] != "" {
				return absoluteURL(ext.Attrs["url"], feedURL)
			}
		}
		for _, ext := range media["thumbnail"] {
			if ext.Attrs["url"] != "" {
				return absoluteURL(ext.Attrs["url"], feedURL)
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return absoluteURL(enc.URL, feedURL)
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return absoluteURL(item.Image.URL, feedURL)
	}

	if img := firstInlineImage(resolveContent(item)); img != "" {
		return absoluteURL(img, feedURL)
	}

	return ""
}

func firstInlineImage(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return src
}

func absoluteURL(href, base string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
