package docfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parcelwalk/parcelwalk/internal/ratelimit"
)

func noDelayLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Range{}, ratelimit.Range{}, 0, ratelimit.Range{})
}

func TestFetchDownloadsAndRenames(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("%PDF-1.4 fake content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(5*time.Second, noDelayLimiter())

	path, err := f.Fetch(context.Background(), srv.URL, dir, "doc.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("expected file in %s, got %s", dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected non-empty file, err=%v", err)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one request, got %d", hits)
	}
}

func TestFetchIsIdempotentOnExistingFile(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(existing, []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := New(5*time.Second, noDelayLimiter())
	path, err := f.Fetch(context.Background(), srv.URL, dir, "doc.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if path != existing {
		t.Errorf("expected %s, got %s", existing, path)
	}
	if hits != 0 {
		t.Fatalf("expected zero network requests for existing non-empty file, got %d", hits)
	}
}

func TestFetchPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(5*time.Second, noDelayLimiter())
	if _, err := f.Fetch(context.Background(), srv.URL, dir, "doc.pdf"); err == nil {
		t.Fatal("expected error on 404")
	}
}
