package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs map[string]*jobtypes.Job
	next int
}

func newFakeQueue() *fakeQueue { return &fakeQueue{jobs: make(map[string]*jobtypes.Job)} }

func (q *fakeQueue) Insert(ctx context.Context, job *jobtypes.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	job.ID = strings.Repeat("a", q.next)
	q.jobs[job.ID] = job
	return nil
}

func (q *fakeQueue) Find(ctx context.Context, id string) (*jobtypes.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, jobtypes.ErrNoPendingJob
	}
	return j, nil
}

func (q *fakeQueue) Update(ctx context.Context, id string, patch bson.M) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return jobtypes.ErrNoPendingJob
	}
	if key, ok := patch["parcel_input.key"].(string); ok {
		job.ParcelInput.Key = key
	}
	if key, ok := patch["shape_input.key"].(string); ok {
		job.ShapeInput.Key = key
	}
	return nil
}

func (q *fakeQueue) Cancel(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return jobtypes.ErrNoPendingJob
	}
	job.Status = jobtypes.StatusCancelled
	return nil
}

func (q *fakeQueue) Delete(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, id)
	return nil
}

func (q *fakeQueue) List(ctx context.Context, filter bson.M, page, pageSize int) ([]*jobtypes.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*jobtypes.Job
	for _, j := range q.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (q *fakeQueue) Count(ctx context.Context, filter bson.M) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

type fakeStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{uploads: make(map[string][]byte)} }

func (s *fakeStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = data
	return nil
}
func (s *fakeStore) DownloadTo(ctx context.Context, key, path string) error { return nil }
func (s *fakeStore) DownloadBytes(ctx context.Context, key string) ([]byte, error) {
	return s.uploads[key], nil
}
func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.uploads[key]
	return ok, nil
}
func (s *fakeStore) Delete(ctx context.Context, key string) error { return nil }
func (s *fakeStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range s.uploads {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
func (s *fakeStore) URLFor(key string) string { return "https://blobs.test/" + key }

func newTestServer() (*Server, *fakeQueue, *fakeStore) {
	q := newFakeQueue()
	st := newFakeStore()
	srv := NewServer(Config{Addr: ":0", MaxIdentifiers: 3, MaxInputBytes: 1 << 20}, q, st, discardLogger())
	return srv, q, st
}

func buildMultipart(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(fileContent); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleCreateJobRejectsTooManyIdentifiers(t *testing.T) {
	srv, _, _ := newTestServer()
	body, contentType := buildMultipart(t, map[string]string{
		"county":     "Example",
		"portal_url": "https://qpublic.net/example",
		"crs_code":   "4326",
	}, "parcels", "parcels.txt", []byte("001\n002\n003\n004\n"))

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "too_many_identifiers") {
		t.Errorf("body = %s, want too_many_identifiers kind", rec.Body.String())
	}
}

func TestHandleCreateJobSucceedsAndUploadsParcels(t *testing.T) {
	srv, q, st := newTestServer()
	body, contentType := buildMultipart(t, map[string]string{
		"county":     "Example",
		"portal_url": "https://qpublic.net/example",
		"crs_code":   "4326",
	}, "parcels", "parcels.txt", []byte("001\n002\n"))

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	if len(q.jobs) != 1 {
		t.Fatalf("expected 1 job inserted, got %d", len(q.jobs))
	}
	if len(st.uploads) != 1 {
		t.Fatalf("expected 1 blob uploaded, got %d", len(st.uploads))
	}
}

func TestHandleCancelAndGetJob(t *testing.T) {
	srv, q, _ := newTestServer()
	job := jobtypes.NewJob("Example", "https://qpublic.net/example", jobtypes.PortalA, 4326)
	q.Insert(context.Background(), job)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cancelled"`) {
		t.Errorf("body = %s, want cancelled status", rec.Body.String())
	}
}
