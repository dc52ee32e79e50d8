// Package publish defines the Blob Store interface consumed by the
// Artifact Publisher (spec.md §4.G, §6) and the publisher itself,
// which uploads a job's three fixed-name outputs under a job-scoped
// key prefix and records canonical URLs.
package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

// BlobStore is the minimal interface the core requires of an object
// store, named in spec.md §6. The concrete driver (internal/publish/s3blob)
// is an injected dependency, not part of the core's contract.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	DownloadTo(ctx context.Context, key, path string) error
	DownloadBytes(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
	URLFor(key string) string
}

// KeyPrefix returns the job-scoped key prefix spec.md §6 fixes as
// "jobs/<job_id>/".
func KeyPrefix(jobID string) string {
	return fmt.Sprintf("jobs/%s/", jobID)
}

const (
	KeyExcel     = "parcels_enriched.xlsx"
	KeyDXF       = "labels.dxf"
	KeyPRCBundle = "PRC.zip"
)

// Publisher uploads a completed job's artifacts and returns the
// results map destined for the job record (spec.md §4.G).
type Publisher struct {
	store BlobStore
}

// New builds a Publisher over store.
func New(store BlobStore) *Publisher {
	return &Publisher{store: store}
}

// Artifact names a local file to publish under a fixed key name.
type Artifact struct {
	Kind        jobtypes.ArtifactKind
	KeyName     string
	LocalPath   string
	ContentType string
}

// PublishAll uploads every artifact under jobs/<jobID>/ and returns a
// results map from artifact kind to canonical URL. It stops at the
// first artifact that fails and returns that error together with the
// URLs of the artifacts uploaded before it; those earlier uploads are
// not removed (spec.md §7 upload_failed).
func (p *Publisher) PublishAll(ctx context.Context, jobID string, artifacts []Artifact, open func(path string) (io.ReadCloser, error)) (map[jobtypes.ArtifactKind]string, error) {
	prefix := KeyPrefix(jobID)
	results := make(map[jobtypes.ArtifactKind]string, len(artifacts))

	for _, a := range artifacts {
		key := prefix + a.KeyName
		f, err := open(a.LocalPath)
		if err != nil {
			return results, &jobtypes.PublishError{Key: key, Err: fmt.Errorf("open %s: %w", a.LocalPath, err)}
		}
		err = p.store.Upload(ctx, key, f, a.ContentType)
		f.Close()
		if err != nil {
			return results, &jobtypes.PublishError{Key: key, Err: err}
		}
		results[a.Kind] = p.store.URLFor(key)
	}
	return results, nil
}

// DeletePrefix removes every blob under jobs/<jobID>/, used by the
// Retention Sweeper (spec.md §4.I).
func (p *Publisher) DeletePrefix(ctx context.Context, jobID string) error {
	prefix := KeyPrefix(jobID)
	keys, err := p.store.ListPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", prefix, err)
	}
	var firstErr error
	for _, k := range keys {
		if err := p.store.Delete(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
