package publish

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/atrishin/feedline/app/database"
)

const (
	maxStoryTitleLength    = 50
	maxStorySummaryLength  = 100
	maxDigestSummaryLength = 100
)

// RenderPost builds the default post text: title, summary, source line,
// link and hashtags.
func RenderPost(entry *database.Entry) string {
	var b strings.Builder

	b.WriteString(entry.Title)
	b.WriteString("\n\n")
	if entry.Summary != "" {
		b.WriteString(entry.Summary)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Источник: %s\n", sourceDomain(entry.Link))
	b.WriteString(entry.Link)
	if len(entry.Tags) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(entry.Tags, " "))
	}

	return b.String()
}

// RenderStory is the compact overlay text for the story format.
func RenderStory(entry *database.Entry) string {
	title := shorten(entry.Title, maxStoryTitleLength)
	summary := shorten(entry.Summary, maxStorySummaryLength)
	if summary == "" {
		return title
	}
	return title + "\n\n" + summary
}

// RenderPreview carries enough context for a moderation decision without
// loading the full entry.
func RenderPreview(entry *database.Entry) string {
	var b strings.Builder

	b.WriteString("Новая статья для модерации\n\n")
	b.WriteString(entry.Title)
	b.WriteString("\n\n")
	if entry.Summary != "" {
		b.WriteString(entry.Summary)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Источник: %s\n", sourceDomain(entry.Link))
	fmt.Fprintf(&b, "Слов: %d\n", entry.WordCount)
	fmt.Fprintf(&b, "Язык: %s\n", entry.Language)
	if len(entry.Tags) > 0 {
		fmt.Fprintf(&b, "Теги: %s\n", strings.Join(entry.Tags, " "))
	}

	return b.String()
}

// RenderDigest builds the single aggregated message for a day's top entries.
func RenderDigest(entries []database.Entry) string {
	var b strings.Builder

	b.WriteString("📰 Дайджест за последние 24 часа\n\n")
	for i, entry := range entries {
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, entry.Title, entry.Link)
		if entry.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", shorten(entry.Summary, maxDigestSummaryLength))
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

func sourceDomain(link string) string {
	if link == "" {
		return "unknown"
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func shorten(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
