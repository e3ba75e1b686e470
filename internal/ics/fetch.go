package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrNotModifiedWithoutCache is returned when a server answers 304 to a
// request the fetcher holds no body for.
var ErrNotModifiedWithoutCache = errors.New("ics: 304 Not Modified without a cached body")

// maxFeedBytes bounds the body read from one feed.
const maxFeedBytes = 16 << 20

// FetchResult is the body of one feed, fresh or from the cache.
type FetchResult struct {
	Feed      Feed
	Body      []byte
	FromCache bool
}

type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
	fetchedAt    time.Time
}

// Fetcher downloads feeds with conditional requests, keeping the last body
// of every URL in memory. When a download fails the cached body is served.
type Fetcher struct {
	client *http.Client
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher returns a fetcher. A nil client gets a 15 second timeout.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, now: time.Now, logger: logger, cache: make(map[string]cacheEntry)}
}

// FetchAll fetches every feed. Feeds that fail without a cached fallback are
// reported in the error slice and left out of the results.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(feeds))
	var errs []error
	for _, feed := range feeds {
		res, err := f.FetchOne(ctx, feed)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne fetches a single feed honoring ETag and Last-Modified.
func (f *Fetcher) FetchOne(ctx context.Context, feed Feed) (FetchResult, error) {
	if feed.URL == "" {
		return FetchResult{}, errors.New("ics: feed URL is empty")
	}
	logger := f.logger.With("feed", feed.ID, "url", RedactURL(feed.URL))

	f.mu.Lock()
	cached, hasCache := f.cache[feed.URL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar")
	if hasCache {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if hasCache {
			logger.Warn("feed fetch failed, using cached body", "error", err)
			return FetchResult{Feed: feed, Body: cached.body, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
		if err != nil {
			return FetchResult{}, err
		}
		f.mu.Lock()
		f.cache[feed.URL] = cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
			fetchedAt:    f.now(),
		}
		f.mu.Unlock()
		logger.Info("feed fetched", "bytes", len(body))
		return FetchResult{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		if !hasCache {
			return FetchResult{}, ErrNotModifiedWithoutCache
		}
		logger.Debug("feed not modified")
		return FetchResult{Feed: feed, Body: cached.body, FromCache: true}, nil

	default:
		if hasCache {
			logger.Warn("feed fetch returned non-OK status, using cached body", "status", resp.StatusCode)
			return FetchResult{Feed: feed, Body: cached.body, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("ics: unexpected status %s", resp.Status)
	}
}

// LastFetched reports when url was last downloaded successfully.
func (f *Fetcher) LastFetched(url string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cache[url]
	return entry.fetchedAt, ok
}
