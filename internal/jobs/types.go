// Package jobs defines background jobs run after an invoice session is
// booked.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/invoice-intake/internal/ledger"
)

var (
	// ErrJobNotFound is returned by a JobStore for an unknown id.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned when publishing to a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExportBookings copies booking results to the ledger sinks.
	JobTypeExportBookings JobType = "export_bookings"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is waiting for another attempt.
	JobStatusRetrying JobStatus = "retrying"
)

// ExportBookingsJob exports the bookings of one finalize call.
type ExportBookingsJob struct {
	JobID     string `json:"jobId"`
	SessionID string `json:"sessionId"`

	// Entries are the bookings to export. They are not rendered in job
	// listings.
	Entries []ledger.Entry `json:"-"`
	Count   int            `json:"count"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retryCount"`
	MaxRetries  int        `json:"maxRetries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ExportBookingsJob) GetID() string        { return j.JobID }
func (j *ExportBookingsJob) GetType() JobType     { return JobTypeExportBookings }
func (j *ExportBookingsJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishExportBookings(ctx context.Context, job *ExportBookingsJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs. The handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for
// a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for inspection.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExportBookingsJob) error
	GetJob(ctx context.Context, jobID string) (*ExportBookingsJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportBookingsJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	SessionID string
	Status    JobStatus
	Limit     int
	Offset    int
}
