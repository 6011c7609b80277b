package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/atrishin/feedline/app/cfg"
	"github.com/atrishin/feedline/app/fetch"
)

const (
	maxTitleLength   = 200
	maxSummaryLength = 300
	maxContentLength = 2000
	maxSummarySentences = 3
)

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	wordRe          = regexp.MustCompile(`\pL[\pL\pN_]*`)
)

// Normalized is the fully cleaned form of a raw entry, ready to persist.
type Normalized struct {
	Title       string
	Summary     string
	Content     string
	Link        string
	ImageURL    string
	Tags        []string
	Language    string
	WordCount   int
	Fingerprint string
}

type Normalizer struct {
	defaultLanguage string
	utmEnabled      bool
	utmSource       string
	utmMedium       string
	utmCampaign     string
}

func NewNormalizer() *Normalizer {
	c := cfg.Get()

	return &Normalizer{
		defaultLanguage: c.DefaultLanguage,
		utmEnabled:      c.UTMEnabled,
		utmSource:       c.UTMSource,
		utmMedium:       c.UTMMedium,
		utmCampaign:     c.UTMCampaign,
	}
}

// Run cleans every text field, rewrites the outbound link, and computes the
// content fingerprint. It degrades field by field and never fails the entry.
func (n *Normalizer) Run(raw fetch.RawEntry) Normalized {
	title := normalizeTitle(raw.Title)
	summary := normalizeSummary(raw.Summary)
	content := normalizeContent(raw.Content)

	norm := Normalized{
		Title:    title,
		Summary:  summary,
		Content:  content,
		Link:     n.rewriteLink(raw.Link),
		ImageURL: stripTrackingParams(raw.ImageURL),

		// Fingerprint covers the normalized text only, so two feeds carrying
		// the same article in different envelopes still collide.
		Fingerprint: fingerprint(title, summary, content),
		WordCount:   countWords(content),
	}

	norm.Language = DetectLanguage(title+" "+summary, n.defaultLanguage)
	norm.Tags = deriveTags(title+" "+summary+" "+content, raw.Link, norm.Language, raw.Tags)

	return norm
}

func normalizeTitle(title string) string {
	title = collapseWhitespace(stripMarkup(title))
	return truncate(title, maxTitleLength)
}

func normalizeSummary(summary string) string {
	summary = collapseWhitespace(stripMarkup(summary))

	sentences := sentenceSplitRe.Split(summary, -1)
	trimmed := sentences[:0]
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			trimmed = append(trimmed, strings.TrimSpace(s))
		}
	}
	if len(trimmed) > maxSummarySentences {
		summary = strings.Join(trimmed[:maxSummarySentences], ". ") + "."
	}

	return truncate(summary, maxSummaryLength)
}

func normalizeContent(content string) string {
	return truncate(htmlToMarkdown(content), maxContentLength)
}

// stripMarkup drops all tags and returns plain text.
func stripMarkup(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return doc.Text()
}

// htmlToMarkdown converts body markup to a lightweight structured text form:
// headings, lists, blockquotes, code blocks, images. Scripts and styles are
// dropped. Input that is already plain text passes through unchanged.
func htmlToMarkdown(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseWhitespace(html)
	}

	doc.Find("script, style").Remove()

	var b strings.Builder
	doc.Find("p, h1, h2, h3, h4, h5, h6, ul, ol, blockquote, pre, img").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "p":
			writeBlock(&b, collapseWhitespace(sel.Text()))
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(goquery.NodeName(sel)[1] - '0')
			if text := collapseWhitespace(sel.Text()); text != "" {
				writeBlock(&b, strings.Repeat("#", level)+" "+text)
			}
		case "ul":
			sel.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				if text := collapseWhitespace(li.Text()); text != "" {
					b.WriteString("- " + text + "\n")
				}
			})
			b.WriteString("\n")
		case "ol":
			i := 0
			sel.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				if text := collapseWhitespace(li.Text()); text != "" {
					i++
					fmt.Fprintf(&b, "%d. %s\n", i, text)
				}
			})
			b.WriteString("\n")
		case "blockquote":
			if text := collapseWhitespace(sel.Text()); text != "" {
				writeBlock(&b, "> "+text)
			}
		case "pre":
			if text := strings.TrimSpace(sel.Text()); text != "" {
				writeBlock(&b, "```\n"+text+"\n```")
			}
		case "img":
			if src, ok := sel.Attr("src"); ok && src != "" {
				alt, _ := sel.Attr("alt")
				writeBlock(&b, fmt.Sprintf("![%s](%s)", alt, src))
			}
		}
	})

	out := strings.TrimSpace(b.String())
	if out == "" {
		out = collapseWhitespace(doc.Text())
	}
	return out
}

func writeBlock(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	b.WriteString(text)
	b.WriteString("\n\n")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts at max runes, reserving three for the ellipsis marker.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// rewriteLink appends the configured UTM parameters, preserving whatever
// query string the link already carries.
func (n *Normalizer) rewriteLink(link string) string {
	if link == "" || !n.utmEnabled {
		return link
	}

	u, err := url.Parse(link)
	if err != nil {
		return link
	}

	query := u.Query()
	query.Set("utm_source", n.utmSource)
	query.Set("utm_medium", n.utmMedium)
	query.Set("utm_campaign", n.utmCampaign)
	u.RawQuery = query.Encode()

	return u.String()
}

var trackingParamPrefixes = []string{"utm_", "fbclid", "gclid", "ref", "source"}

// stripTrackingParams removes known tracking parameters from image URLs.
// Non-absolute URLs are dropped entirely.
func stripTrackingParams(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	if !strings.HasPrefix(imageURL, "http") {
		return ""
	}

	u, err := url.Parse(imageURL)
	if err != nil {
		return imageURL
	}

	query := u.Query()
	for key := range query {
		for _, prefix := range trackingParamPrefixes {
			if strings.HasPrefix(key, prefix) {
				query.Del(key)
				break
			}
		}
	}
	u.RawQuery = query.Encode()

	return u.String()
}

func fingerprint(title, summary, content string) string {
	sum := sha256.Sum256([]byte(title + summary + content))
	return hex.EncodeToString(sum[:])
}

func countWords(text string) int {
	return len(wordRe.FindAllString(stripMarkup(text), -1))
}
