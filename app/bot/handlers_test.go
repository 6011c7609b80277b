package bot

import (
	"testing"
	"time"

	"github.com/atrishin/feedline/app/publish"
)

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data   string
		action string
		id     string
		delay  time.Duration
	}{
		{"publish_post:abc-123", publish.CallbackPublishPost, "abc-123", 0},
		{"publish_story:abc-123", publish.CallbackPublishStory, "abc-123", 0},
		{"delay:30:abc-123", publish.CallbackDelay, "abc-123", 30 * time.Minute},
		{"delay:120:abc-123", publish.CallbackDelay, "abc-123", 2 * time.Hour},
		{"ban_source:feed-9", publish.CallbackBanSource, "feed-9", 0},
	}

	for _, c := range cases {
		dec, err := parseCallback(c.data)
		if err != nil {
			t.Errorf("parseCallback(%q): expected no error, got: %v", c.data, err)
			continue
		}
		if dec.action != c.action {
			t.Errorf("parseCallback(%q): expected action %q, got %q", c.data, c.action, dec.action)
		}
		if dec.id != c.id {
			t.Errorf("parseCallback(%q): expected id %q, got %q", c.data, c.id, dec.id)
		}
		if dec.delay != c.delay {
			t.Errorf("parseCallback(%q): expected delay %v, got %v", c.data, c.delay, dec.delay)
		}
	}
}

func TestParseCallbackRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"unknown:abc",
		"publish_post",
		"publish_post:",
		"delay:abc-123",
		"delay:x:abc-123",
		"delay:-5:abc-123",
		"delay:30:",
	}

	for _, data := range cases {
		if _, err := parseCallback(data); err == nil {
			t.Errorf("parseCallback(%q): expected error, got nil", data)
		}
	}
}
