// Package jobtypes defines the central data model shared by every
// subsystem of the parcel job pipeline: the persisted job record, the
// transient scraped record produced by a portal strategy, and the
// geometry join intermediate consumed by the label export pipeline.
package jobtypes

import "time"

// Status is the job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// PortalKind names a supported Portal Strategy variant.
type PortalKind string

const (
	PortalA       PortalKind = "A"
	PortalB       PortalKind = "B"
	PortalUnknown PortalKind = "unknown"
)

// ArtifactKind names a published output file.
type ArtifactKind string

const (
	ArtifactExcel     ArtifactKind = "excel"
	ArtifactDXF       ArtifactKind = "dxf"
	ArtifactPRCBundle ArtifactKind = "prc_bundle"
)

// BlobRef is a blob-store key paired with the local path it is
// materialized to for the duration of a job run.
type BlobRef struct {
	Key       string `json:"key" bson:"key"`
	LocalPath string `json:"local_path,omitempty" bson:"local_path,omitempty"`
}

// Owner identifies the principal that submitted a job.
type Owner struct {
	PrincipalID string `json:"principal_id,omitempty" bson:"principal_id,omitempty"`
	Email       string `json:"email,omitempty" bson:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty" bson:"display_name,omitempty"`
}

// Counts tracks per-parcel progress for a job.
type Counts struct {
	Total     int `json:"total" bson:"total"`
	Completed int `json:"completed" bson:"completed"`
	Failed    int `json:"failed" bson:"failed"`
}

// Percentage returns completion percentage, 0 when Total is 0.
func (c Counts) Percentage() float64 {
	if c.Total == 0 {
		return 0
	}
	return 100 * float64(c.Completed+c.Failed) / float64(c.Total)
}

// Timestamps captures the job's lifecycle instants.
type Timestamps struct {
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Job is the central entity owned exclusively by the Queue Repository.
// It is mutated only by the single worker goroutine while Status is
// processing; any number of HTTP readers may observe it concurrently.
type Job struct {
	ID          string     `json:"id" bson:"_id"`
	Owner       *Owner     `json:"owner,omitempty" bson:"owner,omitempty"`
	County      string     `json:"county" bson:"county"`
	CRSCode     int        `json:"crs_code" bson:"crs_code"`
	PortalURL   string     `json:"portal_url" bson:"portal_url"`
	PortalKind  PortalKind `json:"portal_kind" bson:"portal_kind"`
	ParcelInput BlobRef    `json:"parcel_input" bson:"parcel_input"`
	ShapeInput  BlobRef    `json:"shape_input" bson:"shape_input"`

	Status      Status `json:"status" bson:"status"`
	CurrentStep string `json:"current_step,omitempty" bson:"current_step,omitempty"`
	Counts      Counts `json:"counts" bson:"counts"`
	Error       string `json:"error,omitempty" bson:"error,omitempty"`

	Results map[ArtifactKind]string `json:"results,omitempty" bson:"results,omitempty"`

	Timestamps Timestamps `json:"timestamps" bson:"timestamps"`
}

// NewJob constructs a fresh pending job. It does not assign an ID —
// the Queue Repository's Insert is responsible for that, generating a
// string ID up front and storing it as _id rather than letting
// MongoDB mint an ObjectID it would then have to be decoded back into
// the string-typed ID field.
func NewJob(county, portalURL string, kind PortalKind, crsCode int) *Job {
	now := time.Now()
	return &Job{
		County:     county,
		CRSCode:    crsCode,
		PortalURL:  portalURL,
		PortalKind: kind,
		Status:     StatusPending,
		Timestamps: Timestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ElapsedSeconds returns seconds since StartedAt, or 0 if not started.
func (j *Job) ElapsedSeconds() float64 {
	if j.Timestamps.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if j.Timestamps.CompletedAt != nil {
		end = *j.Timestamps.CompletedAt
	}
	return end.Sub(*j.Timestamps.StartedAt).Seconds()
}

// EstimatedRemainingSeconds implements the formula from the job
// record's external contract: average elapsed time per completed
// parcel, extrapolated across the remaining parcels. Returns nil when
// the job isn't processing or no parcel has completed yet.
func (j *Job) EstimatedRemainingSeconds() *float64 {
	if j.Status != StatusProcessing || j.Counts.Completed == 0 {
		return nil
	}
	elapsed := j.ElapsedSeconds()
	perParcel := elapsed / float64(j.Counts.Completed)
	remaining := perParcel * float64(j.Counts.Total-j.Counts.Completed)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
