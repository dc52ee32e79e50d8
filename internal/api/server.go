// Package api is the thin HTTP surface (spec.md §6): job submission,
// status polling, listing, and cancellation, backed directly by the
// Queue Repository and Blob Store rather than any in-memory state.
// Grounded on the teacher's internal/api/server.go ServeMux routing
// and JSON response conventions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/parcelfile"
	"github.com/parcelwalk/parcelwalk/internal/portal"
	"github.com/parcelwalk/parcelwalk/internal/publish"
)

// Queue is the subset of jobqueue.Repository the API consumes.
type Queue interface {
	Insert(ctx context.Context, job *jobtypes.Job) error
	Find(ctx context.Context, id string) (*jobtypes.Job, error)
	Update(ctx context.Context, id string, patch bson.M) error
	Cancel(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter bson.M, page, pageSize int) ([]*jobtypes.Job, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
}

// Server is the HTTP surface described by spec.md §6.
type Server struct {
	mux    *http.ServeMux
	addr   string
	logger *slog.Logger

	queue Queue
	store publish.BlobStore

	maxIdentifiers int
	maxInputBytes  int64
}

// Config configures the submission-time limits spec.md §7 names as
// rejected before job creation.
type Config struct {
	Addr           string
	MaxIdentifiers int
	MaxInputBytes  int64
}

// NewServer builds the API server over queue and store.
func NewServer(cfg Config, queue Queue, store publish.BlobStore, logger *slog.Logger) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		addr:           cfg.Addr,
		logger:         logger.With("component", "api_server"),
		queue:          queue,
		store:          store,
		maxIdentifiers: cfg.MaxIdentifiers,
		maxInputBytes:  cfg.MaxInputBytes,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the underlying mux, e.g. for http.Server wiring or tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// RegisterMetrics mounts h at /metrics on the same mux and port as the
// job API, so operators don't need a second listener just to scrape
// counters.
func (s *Server) RegisterMetrics(h http.Handler) {
	s.mux.Handle("/metrics", h)
}

// ListenAndServe blocks serving on s.addr.
func (s *Server) ListenAndServe() error {
	s.logger.Info("API server starting", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	s.mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "version": "dev"})
}

// handleCreateJob implements submission (spec.md §6): it validates
// the identifier list before any job record is created, per §7's
// input_too_large/too_many_identifiers "rejected before job creation"
// recovery policy.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxInputBytes + (1 << 20)); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	county := r.FormValue("county")
	portalURL := r.FormValue("portal_url")
	crsCode, err := strconv.Atoi(r.FormValue("crs_code"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "crs_code must be an integer")
		return
	}
	if county == "" || portalURL == "" {
		s.jsonError(w, http.StatusBadRequest, "county and portal_url are required")
		return
	}

	parcelsName, parcelsBytes, err := readUploadedFile(r, "parcels")
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "parcels file: "+err.Error())
		return
	}
	if int64(len(parcelsBytes)) > s.maxInputBytes {
		s.jsonErrorKind(w, http.StatusRequestEntityTooLarge, jobtypes.KindInputTooLarge, "parcels file exceeds max_input_bytes")
		return
	}
	if _, err := parcelfile.Read(bytes.NewReader(parcelsBytes), parcelsName, s.maxIdentifiers); err != nil {
		if errors.Is(err, jobtypes.ErrTooManyIdentifiers) {
			s.jsonErrorKind(w, http.StatusBadRequest, jobtypes.KindTooManyIdentifiers, err.Error())
			return
		}
		s.jsonError(w, http.StatusBadRequest, "parcels file: "+err.Error())
		return
	}

	var shapeBytes []byte
	if hasUploadedFile(r, "shapefile") {
		_, shapeBytes, err = readUploadedFile(r, "shapefile")
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "shapefile: "+err.Error())
			return
		}
		if int64(len(shapeBytes)) > s.maxInputBytes {
			s.jsonErrorKind(w, http.StatusRequestEntityTooLarge, jobtypes.KindInputTooLarge, "shapefile exceeds max_input_bytes")
			return
		}
	}

	kind := portal.DetectKind(portalURL)
	job := jobtypes.NewJob(county, portalURL, kind, crsCode)
	if email := r.FormValue("owner_email"); email != "" {
		job.Owner = &jobtypes.Owner{Email: email, DisplayName: r.FormValue("owner_display_name")}
	}

	ctx := r.Context()
	if err := s.queue.Insert(ctx, job); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "insert job: "+err.Error())
		return
	}

	prefix := publish.KeyPrefix(job.ID)
	parcelKey := prefix + "parcels" + filepath.Ext(parcelsName)
	if err := s.store.Upload(ctx, parcelKey, bytes.NewReader(parcelsBytes), ""); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "upload parcels: "+err.Error())
		return
	}
	patch := bson.M{"parcel_input.key": parcelKey}

	if shapeBytes != nil {
		shapeKey := prefix + "shapefiles.zip"
		if err := s.store.Upload(ctx, shapeKey, bytes.NewReader(shapeBytes), "application/zip"); err != nil {
			s.jsonError(w, http.StatusInternalServerError, "upload shapefile: "+err.Error())
			return
		}
		patch["shape_input.key"] = shapeKey
	}

	if err := s.queue.Update(ctx, job.ID, patch); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "finalize job: "+err.Error())
		return
	}

	job, err = s.queue.Find(ctx, job.ID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "reload job: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	jobs, err := s.queue.List(r.Context(), filter, page, pageSize)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "list jobs: "+err.Error())
		return
	}
	total, err := s.queue.Count(r.Context(), filter)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "count jobs: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": total,
		"page":  page,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.queue.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, jobView(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.queue.Cancel(r.Context(), id); err != nil {
		s.jsonError(w, http.StatusConflict, err.Error())
		return
	}
	job, err := s.queue.Find(r.Context(), id)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, jobView(job))
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.queue.Delete(r.Context(), id); err != nil {
		s.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// jobView adds the derived timing fields spec.md §6 names alongside
// the stored job record.
func jobView(job *jobtypes.Job) map[string]any {
	return map[string]any{
		"id":           job.ID,
		"status":       job.Status,
		"county":       job.County,
		"portal_kind":  job.PortalKind,
		"crs_code":     job.CRSCode,
		"current_step": job.CurrentStep,
		"error":        job.Error,
		"counts": map[string]any{
			"total":      job.Counts.Total,
			"completed":  job.Counts.Completed,
			"failed":     job.Counts.Failed,
			"percentage": job.Counts.Percentage(),
		},
		"timing": map[string]any{
			"elapsed_seconds":             job.ElapsedSeconds(),
			"estimated_remaining_seconds": job.EstimatedRemainingSeconds(),
		},
		"results":    job.Results,
		"timestamps": job.Timestamps,
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

func (s *Server) jsonErrorKind(w http.ResponseWriter, status int, kind jobtypes.ErrorKind, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message, "kind": string(kind)})
}

func hasUploadedFile(r *http.Request, field string) bool {
	if r.MultipartForm == nil {
		return false
	}
	return len(r.MultipartForm.File[field]) > 0
}

func readUploadedFile(r *http.Request, field string) (name string, data []byte, err error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing or unreadable %s upload: %w", field, err)
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("read %s upload: %w", field, err)
	}
	return strings.TrimSpace(header.Filename), data, nil
}
