package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/atrishin/feedline/app/cfg"
)

const maxPayloadSize = 10 << 20 // 10 MiB

type parseFunc func(data []byte, feedURL string) (*Result, error)

// Fetcher retrieves a feed payload and runs the format cascade over it:
// RSS/Atom, then JSON Feed, then the HTML heuristic fallback. The first
// parser that succeeds with at least one entry wins.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration

	sem      *semaphore.Weighted
	perHost  int64
	hostSems map[string]*semaphore.Weighted
	mu       sync.Mutex
}

func NewFetcher(client *http.Client) *Fetcher {
	c := cfg.Get()

	return &Fetcher{
		client:    client,
		userAgent: c.UserAgent,
		timeout:   time.Duration(c.FetchTimeout) * time.Second,
		sem:       semaphore.NewWeighted(int64(c.MaxFetches)),
		perHost:   int64(c.MaxHostFetches),
		hostSems:  make(map[string]*semaphore.Weighted),
	}
}

// Fetch downloads and parses one feed. All failures come back as *Error so
// the caller can record them on the FeedSource without inspecting internals.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*Result, error) {
	data, contentType, err := f.download(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	result, err := f.parse(data, feedURL, contentType)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, string, error) {
	if err := f.acquire(ctx, feedURL); err != nil {
		return nil, "", &Error{Kind: KindNetwork, URL: feedURL, Err: err}
	}
	defer f.release(feedURL)

	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, "", &Error{Kind: kind, URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &Error{Kind: KindHTTPStatus, URL: feedURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, URL: feedURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// parse selects a single parser when the declared content type is
// unambiguous; otherwise it runs the fixed-priority cascade.
func (f *Fetcher) parse(data []byte, feedURL, contentType string) (*Result, error) {
	ct := strings.ToLower(contentType)

	switch {
	case strings.Contains(ct, "json") || strings.HasSuffix(feedURL, ".json"):
		return f.cascade(data, feedURL, parseJSONFeed)
	case strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom"):
		return f.cascade(data, feedURL, parseSyndication)
	default:
		return f.cascade(data, feedURL, parseSyndication, parseJSONFeed, parseHTML)
	}
}

func (f *Fetcher) cascade(data []byte, feedURL string, parsers ...parseFunc) (*Result, error) {
	var lastErr error
	for _, parse := range parsers {
		result, err := parse(data, feedURL)
		if err != nil {
			lastErr = err
			continue
		}
		if len(result.Entries) == 0 {
			lastErr = fmt.Errorf("parser returned no entries")
			continue
		}
		return result, nil
	}

	return nil, &Error{Kind: KindFormat, URL: feedURL, Err: lastErr}
}

func (f *Fetcher) acquire(ctx context.Context, feedURL string) error {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := f.hostSem(feedURL).Acquire(ctx, 1); err != nil {
		f.sem.Release(1)
		return err
	}
	return nil
}

func (f *Fetcher) release(feedURL string) {
	f.hostSem(feedURL).Release(1)
	f.sem.Release(1)
}

func (f *Fetcher) hostSem(feedURL string) *semaphore.Weighted {
	host := ""
	if u, err := url.Parse(feedURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	sem, ok := f.hostSems[host]
	if !ok {
		sem = semaphore.NewWeighted(f.perHost)
		f.hostSems[host] = sem
	}
	return sem
}
