package retention

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/publish"
)

type fakeQueue struct {
	old     []*jobtypes.Job
	deleted []string
}

func (q *fakeQueue) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*jobtypes.Job, error) {
	return q.old, nil
}

func (q *fakeQueue) Delete(ctx context.Context, id string) error {
	q.deleted = append(q.deleted, id)
	return nil
}

type fakeStore struct {
	deleted []string
}

func (s *fakeStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	return nil
}
func (s *fakeStore) DownloadTo(ctx context.Context, key, path string) error { return nil }
func (s *fakeStore) DownloadBytes(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}
func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}
func (s *fakeStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	return []string{prefix + "parcels_enriched.xlsx", prefix + "labels.dxf"}, nil
}
func (s *fakeStore) URLFor(key string) string { return key }

var _ Queue = (*fakeQueue)(nil)
var _ publish.BlobStore = (*fakeStore)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepOnceDeletesBlobsTempDirAndRecord(t *testing.T) {
	workDir := t.TempDir()
	jobDir := filepath.Join(workDir, "job-1")
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, "scratch.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	queue := &fakeQueue{old: []*jobtypes.Job{{ID: "job-1"}}}
	store := &fakeStore{}
	sweeper := New(queue, store, workDir, time.Hour, time.Minute, discardLogger())

	sweeper.sweepOnce(context.Background())

	if len(queue.deleted) != 1 || queue.deleted[0] != "job-1" {
		t.Fatalf("expected job-1 deleted from queue, got %v", queue.deleted)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected 2 blobs deleted, got %v", store.deleted)
	}
	for _, key := range store.deleted {
		if !strings.HasPrefix(key, "jobs/job-1/") {
			t.Errorf("deleted key %q not under job prefix", key)
		}
	}
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Errorf("expected job temp dir removed, stat err = %v", err)
	}
}

func TestSweepOnceDeletesRecordWhenTempDirMissing(t *testing.T) {
	workDir := t.TempDir()
	queue := &fakeQueue{old: []*jobtypes.Job{{ID: "job-missing-dir"}}}
	store := &fakeStore{}
	sweeper := New(queue, store, workDir, time.Hour, time.Minute, discardLogger())

	// No job-scoped directory exists on disk; sweepOnce must still
	// delete the queue record rather than aborting the pass.
	sweeper.sweepOnce(context.Background())

	if len(queue.deleted) != 1 {
		t.Fatalf("expected record still deleted despite missing local dir, got %v", queue.deleted)
	}
}
