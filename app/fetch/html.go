package fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const maxHTMLRegions = 10

// Article-region heuristics tried in order; the first selector with matches
// wins so a page is not double-counted by overlapping selectors.
var articleSelectors = []string{
	"article",
	".article",
	".post",
	".entry",
	"[class*=article]",
	"[class*=post]",
	"[class*=entry]",
}

// parseHTML is the last step of the cascade. It looks for repeated
// article-like regions and treats each as one entry; with none found it
// falls back to readability extraction of the whole page as a single
// synthetic entry whose link is the page URL itself.
func parseHTML(data []byte, pageURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	now := time.Now().UTC()
	pageTitle := pageTitle(doc, pageURL)
	pageImage := openGraphImage(doc)

	var regions *goquery.Selection
	for _, selector := range articleSelectors {
		found := doc.Find(selector)
		if found.Length() > 0 {
			regions = found
			break
		}
	}

	result := &Result{FeedTitle: pageTitle}

	if regions != nil && regions.Length() > 0 {
		regions.EachWithBreak(func(i int, region *goquery.Selection) bool {
			if i >= maxHTMLRegions {
				return false
			}
			text := collapseSpace(region.Text())
			if text == "" {
				return true
			}
			image, _ := region.Find("img").First().Attr("src")
			if image == "" {
				image = pageImage
			}
			result.Entries = append(result.Entries, RawEntry{
				GUID:        hashGUID(prefix(text, 100) + pageURL),
				Title:       prefix(text, 100),
				Link:        pageURL,
				Summary:     prefix(text, 200),
				Content:     text,
				ImageURL:    absoluteURL(image, pageURL),
				PublishedAt: &now,
			})
			return true
		})
	}

	if len(result.Entries) > 0 {
		return result, nil
	}

	// No article-like regions: whole-page readability extraction.
	article, err := readability.FromReader(bytes.NewReader(data), mustParseURL(pageURL))
	if err != nil {
		return nil, fmt.Errorf("failed to extract page content: %w", err)
	}

	text := collapseSpace(article.TextContent)
	if text == "" {
		return nil, fmt.Errorf("no content extracted from page")
	}

	title := article.Title
	if title == "" {
		title = pageTitle
	}

	image := article.Image
	if image == "" {
		image = pageImage
	}

	result.Entries = append(result.Entries, RawEntry{
		GUID:        hashGUID(prefix(text, 100) + pageURL),
		Title:       title,
		Link:        pageURL,
		Summary:     prefix(text, 200),
		Content:     text,
		ImageURL:    absoluteURL(image, pageURL),
		PublishedAt: &now,
	})

	return result, nil
}

func pageTitle(doc *goquery.Document, pageURL string) string {
	title := collapseSpace(doc.Find("title").First().Text())
	if title != "" {
		return title
	}
	if u, err := url.Parse(pageURL); err == nil {
		return u.Host
	}
	return pageURL
}

func openGraphImage(doc *goquery.Document) string {
	content, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	return content
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
