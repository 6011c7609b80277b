package content

import (
	"unicode"

	"golang.org/x/text/language"
)

var (
	langRussian = language.Russian.String()
	langEnglish = language.English.String()
)

// DetectLanguage classifies text by the ratio of its principal alphabets:
// more Cyrillic runes than Latin means Russian, the inverse means English,
// and ties resolve to the configured default.
func DetectLanguage(text, defaultLang string) string {
	var cyrillic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	switch {
	case cyrillic > latin:
		return langRussian
	case latin > cyrillic:
		return langEnglish
	default:
		return defaultLang
	}
}
