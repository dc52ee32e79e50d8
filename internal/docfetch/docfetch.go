// Package docfetch implements the idempotent, resumable document
// download described in spec.md §4.E. Grounded on the teacher's
// internal/fetcher HTTP client conventions (persistent client,
// realistic User-Agent, keep-alive) adapted from page fetching to
// binary document fetching.
package docfetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/parcelwalk/parcelwalk/internal/ratelimit"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Fetcher downloads property-record documents with politeness and
// idempotence on retry.
type Fetcher struct {
	client  *http.Client
	limiter *ratelimit.Limiter
}

// New builds a Fetcher with a persistent keep-alive client.
func New(timeout time.Duration, limiter *ratelimit.Limiter) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
	}
}

// Fetch downloads url into dir/filename. If the target already exists
// and is non-empty, it returns immediately without any network I/O
// (spec.md §8 "idempotent document download"). Otherwise it delays per
// the document rate-limit class, downloads to a sibling temp file, and
// renames it into place atomically.
func (f *Fetcher) Fetch(ctx context.Context, url, dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	target := filepath.Join(dir, filename)

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		return target, nil
	}

	if err := f.limiter.Wait(ctx, ratelimit.ClassDocument); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	// Advertising Accept-Encoding ourselves (above) opts out of
	// net/http's transparent gzip decoding, so both encodings we
	// offered have to be handled explicitly here.
	var body io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		body = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("open gzip reader for %s: %w", url, err)
		}
		defer gz.Close()
		body = gz
	}

	tmp, err := os.CreateTemp(dir, filename+".part-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename into place: %w", err)
	}

	return target, nil
}
