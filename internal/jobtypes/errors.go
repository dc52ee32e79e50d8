package jobtypes

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on, mirroring the
// ScrapeGoat convention of package-level sentinels for the common
// failure modes (see internal/types/errors.go in the teacher repo).
var (
	ErrNoPendingJob        = errors.New("no pending job available")
	ErrJobCancelled        = errors.New("job was cancelled")
	ErrPortalUnrecognized  = errors.New("portal_unrecognized")
	ErrSearchInputMissing  = errors.New("search_input_missing")
	ErrShapefileMissing    = errors.New("shapefile_missing")
	ErrJoinEmpty           = errors.New("join_empty")
	ErrTooManyIdentifiers  = errors.New("too_many_identifiers")
	ErrInputTooLarge       = errors.New("input_too_large")
)

// ErrorKind tags a job-level error with the vocabulary from spec.md §7.
type ErrorKind string

const (
	KindInputTooLarge        ErrorKind = "input_too_large"
	KindTooManyIdentifiers   ErrorKind = "too_many_identifiers"
	KindPortalUnrecognized   ErrorKind = "portal_unrecognized"
	KindSearchInputMissing   ErrorKind = "search_input_missing"
	KindParcelNotFound       ErrorKind = "parcel_not_found"
	KindParcelExtractError   ErrorKind = "parcel_extract_error"
	KindDocumentDownloadFail ErrorKind = "document_download_failed"
	KindShapefileMissing     ErrorKind = "shapefile_missing"
	KindJoinEmpty            ErrorKind = "join_empty"
	KindUploadFailed         ErrorKind = "upload_failed"
	KindCancelled            ErrorKind = "cancelled"
)

// JobError wraps a job-terminating failure with its classification.
type JobError struct {
	Kind ErrorKind
	JobID string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed (%s): %v", e.JobID, e.Kind, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// PortalError wraps a failure originating in a Portal Strategy.
type PortalError struct {
	ParcelID string
	Kind     ErrorKind
	Err      error
}

func (e *PortalError) Error() string {
	if e.ParcelID != "" {
		return fmt.Sprintf("portal error for parcel %s (%s): %v", e.ParcelID, e.Kind, e.Err)
	}
	return fmt.Sprintf("portal error (%s): %v", e.Kind, e.Err)
}

func (e *PortalError) Unwrap() error { return e.Err }

// JoinError wraps a failure in the Label Export Pipeline's geometry
// join (spec.md §4.F step 4).
type JoinError struct {
	Stage string
	Err   error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("label export error at stage %q: %v", e.Stage, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }

// PublishError wraps a failure uploading an artifact (spec.md §4.G).
type PublishError struct {
	Key string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish error for key %q: %v", e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
