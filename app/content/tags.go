package content

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxTags = 5

//go:embed tags.yml
var tagRulesYAML []byte

type tagRules struct {
	Categories []tagCategory `yaml:"categories"`
}

type tagCategory struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

var rules tagRules

func init() {
	if err := yaml.Unmarshal(tagRulesYAML, &rules); err != nil {
		panic(fmt.Sprintf("invalid embedded tag rules: %v", err))
	}
}

// deriveTags builds hashtags from keyword-category matches, the source
// domain, and the detected language, capped at maxTags. Feed-provided tags
// count toward the keyword text but are not emitted verbatim.
func deriveTags(text, link, lang string, feedTags []string) []string {
	haystack := strings.ToLower(text + " " + strings.Join(feedTags, " "))

	var tags []string
	for _, category := range rules.Categories {
		for _, keyword := range category.Keywords {
			if strings.Contains(haystack, keyword) {
				tags = append(tags, "#"+category.Tag)
				break
			}
		}
	}

	if domain := extractDomain(link); domain != "" {
		replacer := strings.NewReplacer(".", "_", "-", "_")
		tags = append(tags, "#"+replacer.Replace(domain))
	}

	switch lang {
	case langEnglish:
		tags = append(tags, "#english")
	case langRussian:
		tags = append(tags, "#русский")
	}

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

func extractDomain(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
