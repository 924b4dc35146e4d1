package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-reminders/internal/reminder"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRunReminders represents a reminder dispatch run.
	JobTypeRunReminders JobType = "run_reminders"
)

// ErrRetryable marks a handler error after which the job may run again
// without repeating any side effect. Other errors are never retried.
var ErrRetryable = errors.New("retryable")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// RunRemindersJob represents a request to run the reminder engine once.
type RunRemindersJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Trigger names what requested the run, e.g. api or schedule.
	Trigger string `json:"trigger"`

	// RunID is the ID of the reminder run, set once the run has started.
	RunID string `json:"run_id,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// RunStatus is SUCCESS or DEGRADED once the run finished.
	RunStatus string `json:"run_status,omitempty"`

	// Outcome is the run summary, set once the run finished.
	Outcome *reminder.Outcome `json:"outcome,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed. Only errors
	// wrapping ErrRetryable are retried.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *RunRemindersJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *RunRemindersJob) GetType() JobType {
	return JobTypeRunReminders
}

// GetStatus implements the Job interface.
func (j *RunRemindersJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishRunReminders publishes a reminder run job.
	PublishRunReminders(ctx context.Context, job *RunRemindersJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RunRemindersJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RunRemindersJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RunRemindersJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Trigger filters jobs by trigger.
	Trigger string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
