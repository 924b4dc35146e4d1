// Package runner executes reminder runs and records their outcome.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
	"github.com/dvloznov/finance-reminders/internal/logger"
	"github.com/dvloznov/finance-reminders/internal/metrics"
	"github.com/dvloznov/finance-reminders/internal/reminder"
)

// Persistence targets used in logs and metrics.
const (
	TargetBigQuery = "bigquery"
	TargetArchive  = "gcs"
)

// Engine performs a single reminder pass.
type Engine interface {
	Run(ctx context.Context) reminder.Outcome
}

// Archiver stores a JSON copy of a run record.
type Archiver interface {
	ArchiveRun(ctx context.Context, runID string, startedAt time.Time, v interface{}) (string, error)
}

// Record describes a finished run.
type Record struct {
	RunID      string           `json:"run_id"`
	Trigger    string           `json:"trigger"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Status     string           `json:"status"`
	Outcome    reminder.Outcome `json:"outcome"`
	ArchiveURI string           `json:"archive_uri,omitempty"`
}

// Options are the optional collaborators of a Runner. Nil fields are skipped.
type Options struct {
	Runs     infraBQ.RunRepository
	Archiver Archiver
	Metrics  *metrics.Metrics
}

// Runner wraps an Engine with run bookkeeping.
type Runner struct {
	engine  Engine
	runs    infraBQ.RunRepository
	archive Archiver
	metrics *metrics.Metrics
	log     zerolog.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Runner.
func New(engine Engine, log zerolog.Logger, opts Options) *Runner {
	return &Runner{
		engine:  engine,
		runs:    opts.Runs,
		archive: opts.Archiver,
		metrics: opts.Metrics,
		log:     log,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Execute runs the engine once. The returned record is always populated;
// a non-nil error means the record could not be persisted or archived.
func (r *Runner) Execute(ctx context.Context, trigger string) (*Record, error) {
	rec := &Record{
		RunID:     r.newID(),
		Trigger:   trigger,
		StartedAt: r.now(),
	}
	log := logger.WithRun(r.log, rec.RunID, trigger)
	ctx = logger.WithContext(ctx, log)

	log.Info().Msg("Starting reminder run")

	rec.Outcome = r.engine.Run(ctx)
	rec.FinishedAt = r.now()
	rec.Status = metrics.Status(rec.Outcome)

	if r.metrics != nil {
		r.metrics.ObserveOutcome(rec.Outcome, rec.FinishedAt.Sub(rec.StartedAt))
	}

	log.Info().
		Str("status", rec.Status).
		Int("sent", rec.Outcome.Sent).
		Int("skipped", rec.Outcome.Skipped).
		Int("errors", rec.Outcome.Errors).
		Dur("elapsed", rec.FinishedAt.Sub(rec.StartedAt)).
		Msg("Reminder run completed")

	var errs []error

	if r.archive != nil {
		uri, err := r.archive.ArchiveRun(ctx, rec.RunID, rec.StartedAt, rec)
		if err != nil {
			errs = append(errs, r.persistFailed(log, TargetArchive, err))
		} else {
			rec.ArchiveURI = uri
		}
	}

	if r.runs != nil {
		row, err := RowFromRecord(rec)
		if err == nil {
			err = r.runs.InsertReminderRun(ctx, row)
		}
		if err != nil {
			errs = append(errs, r.persistFailed(log, TargetBigQuery, err))
		}
	}

	if len(errs) > 0 {
		return rec, fmt.Errorf("Execute: recording run %s: %w", rec.RunID, errors.Join(errs...))
	}
	return rec, nil
}

func (r *Runner) persistFailed(log zerolog.Logger, target string, err error) error {
	log.Error().Err(err).Str("target", target).Msg("Failed to record run")
	if r.metrics != nil {
		r.metrics.PersistFailed(target)
	}
	return err
}

// RowFromRecord converts a record into a reminder_runs row.
func RowFromRecord(rec *Record) (*infraBQ.ReminderRunRow, error) {
	reasons, err := json.Marshal(rec.Outcome.Reasons)
	if err != nil {
		return nil, fmt.Errorf("RowFromRecord: encoding reasons: %w", err)
	}

	row := &infraBQ.ReminderRunRow{
		RunID:           rec.RunID,
		Trigger:         rec.Trigger,
		StartedTS:       rec.StartedAt,
		FinishedTS:      rec.FinishedAt,
		Status:          rec.Status,
		UsersConsidered: int64(rec.Outcome.UsersConsidered),
		RemindersTotal:  int64(rec.Outcome.RemindersTotal),
		Sent:            int64(rec.Outcome.Sent),
		Skipped:         int64(rec.Outcome.Skipped),
		Errors:          int64(rec.Outcome.Errors),
		Reasons:         bigquery.NullJSON{JSONVal: string(reasons), Valid: true},
	}
	if rec.ArchiveURI != "" {
		row.ArchiveURI = bigquery.NullString{StringVal: rec.ArchiveURI, Valid: true}
	}
	return row, nil
}

// RecordFromRow converts a stored reminder_runs row back into a record.
func RecordFromRow(row *infraBQ.ReminderRunRow) (*Record, error) {
	rec := &Record{
		RunID:      row.RunID,
		Trigger:    row.Trigger,
		StartedAt:  row.StartedTS,
		FinishedAt: row.FinishedTS,
		Status:     row.Status,
		Outcome: reminder.Outcome{
			UsersConsidered: int(row.UsersConsidered),
			RemindersTotal:  int(row.RemindersTotal),
			Sent:            int(row.Sent),
			Skipped:         int(row.Skipped),
			Errors:          int(row.Errors),
			Reasons:         map[reminder.Reason]int{},
		},
	}
	if row.ArchiveURI.Valid {
		rec.ArchiveURI = row.ArchiveURI.StringVal
	}
	if row.Reasons.Valid && row.Reasons.JSONVal != "" {
		if err := json.Unmarshal([]byte(row.Reasons.JSONVal), &rec.Outcome.Reasons); err != nil {
			return nil, fmt.Errorf("RecordFromRow: decoding reasons of %s: %w", row.RunID, err)
		}
	}
	return rec, nil
}
