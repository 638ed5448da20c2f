package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/util"
	"github.com/ppiankov/reqmap/internal/worker"
)

const (
	fetchMaxAttempts      = 3
	hostRequestsPerSecond = 4
)

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// Fetcher reads pipeline inputs (outlines, requirement sets, rule catalogs)
// from local paths or http(s) URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
}

// NewFetcher creates a fetcher from the HTTP settings
func NewFetcher(cfg model.HTTPConfig) *Fetcher {
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.ProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		limiter:   worker.NewLimiter(hostRequestsPerSecond, hostRequestsPerSecond),
	}
}

// FetchResult is the raw content of one input
type FetchResult struct {
	Data        []byte
	Source      string // Path or URL as requested
	FinalURL    string // After redirects; empty for local files
	ContentType string
}

// IsURL reports whether source is an http(s) URL rather than a path
func IsURL(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch reads a local file or downloads a URL, enforcing the size limit
func (f *Fetcher) Fetch(ctx context.Context, source string) (*FetchResult, error) {
	if !IsURL(source) {
		return f.readFile(source)
	}

	host, err := worker.HostKey(source)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := f.limiter.Wait(ctx, host); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, text/yaml;q=0.9, */*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("read body: larger than %d bytes", f.maxBytes)
	}

	return &FetchResult{
		Data:        body,
		Source:      source,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// FetchWithRetry is Fetch with retries on transient failures: connection
// errors, 429 and 5xx responses. Local files are read once.
func (f *Fetcher) FetchWithRetry(ctx context.Context, source string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(attempt) * time.Second)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, source)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsURL(source) || !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) readFile(path string) (*FetchResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory", path)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("read %s: larger than %d bytes", path, f.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &FetchResult{Data: data, Source: path}, nil
}

// isRetryableFetchError classifies errors produced by Fetch
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.HasPrefix(msg, "unexpected status: ") {
		code := strings.TrimPrefix(msg, "unexpected status: ")
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return strings.HasPrefix(msg, "fetch: ")
}
