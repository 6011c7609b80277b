package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxImageSize = 5 << 20 // 5 MiB

var _ Media = (*HTTPMedia)(nil)

// HTTPMedia downloads images over HTTP. Transforms are pass-throughs: the
// delivery channel re-encodes media server-side, so no local processing is
// needed for posts, and story overlay rendering is carried by the caption.
type HTTPMedia struct {
	client    *http.Client
	userAgent string
}

func NewHTTPMedia(client *http.Client, userAgent string) *HTTPMedia {
	return &HTTPMedia{client: client, userAgent: userAgent}
}

func (m *HTTPMedia) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	return data, nil
}

func (m *HTTPMedia) TransformForPost(data []byte) ([]byte, error) {
	return data, nil
}

func (m *HTTPMedia) TransformForStory(data []byte, overlayText string) ([]byte, error) {
	return data, nil
}
