package executor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/portal/selectors"
)

func TestStrategyForKnownKinds(t *testing.T) {
	if _, err := strategyFor(jobtypes.PortalA, selectors.Override{}, time.Second); err != nil {
		t.Errorf("portal A: unexpected error: %v", err)
	}
	if _, err := strategyFor(jobtypes.PortalB, selectors.Override{}, time.Second); err != nil {
		t.Errorf("portal B: unexpected error: %v", err)
	}
}

func TestStrategyForUnrecognizedKind(t *testing.T) {
	_, err := strategyFor(jobtypes.PortalUnknown, selectors.Override{}, time.Second)
	if !errors.Is(err, jobtypes.ErrPortalUnrecognized) {
		t.Fatalf("expected ErrPortalUnrecognized, got %v", err)
	}
}

func TestClassifyPortalErrorUnwrapsJobError(t *testing.T) {
	wrapped := &jobtypes.JobError{Kind: jobtypes.KindSearchInputMissing, JobID: "j1", Err: errors.New("boom")}
	if got := classifyPortalError(wrapped); got != jobtypes.KindSearchInputMissing {
		t.Errorf("got %q, want %q", got, jobtypes.KindSearchInputMissing)
	}
}

func TestClassifyPortalErrorDefaultsWhenNotAJobError(t *testing.T) {
	if got := classifyPortalError(errors.New("some other failure")); got != jobtypes.KindParcelExtractError {
		t.Errorf("got %q, want %q", got, jobtypes.KindParcelExtractError)
	}
}

func TestDocumentPathsSkipsEmpty(t *testing.T) {
	records := []*jobtypes.ScrapedRecord{
		{ParcelID: "1", DocumentLocalPath: "/tmp/a.pdf"},
		{ParcelID: "2"},
		{ParcelID: "3", DocumentLocalPath: "/tmp/c.pdf"},
	}
	got := documentPaths(records)
	want := []string{"/tmp/a.pdf", "/tmp/c.pdf"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	nonEmpty := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(nonEmpty, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	if fileExists(empty) {
		t.Error("empty file should not count as existing input")
	}
	if !fileExists(nonEmpty) {
		t.Error("non-empty file should count as existing input")
	}
	if fileExists(filepath.Join(dir, "missing.txt")) {
		t.Error("missing file should not count as existing")
	}
}

func TestReadParcelIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcels.txt")
	if err := os.WriteFile(path, []byte("001\n002\n001\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ids, err := readParcelIDs(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %v, want 2 deduped ids", ids)
	}
}
