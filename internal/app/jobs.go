package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-reminders/internal/jobs"
	"github.com/dvloznov/finance-reminders/internal/ledger"
	"github.com/dvloznov/finance-reminders/internal/logger"
)

// HandleJob is a jobs.JobHandler that executes one reminder run per
// RunRemindersJob and stores the run summary on the job. A run that could not
// read the ledger sent nothing, so its error is marked jobs.ErrRetryable.
func (a *App) HandleJob(ctx context.Context, job jobs.Job) error {
	runJob, ok := job.(*jobs.RunRemindersJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job type: %T", job)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("job_id", runJob.JobID).Str("trigger", runJob.Trigger).Msg("Processing run job")

	rec, err := a.Runner.Execute(ctx, runJob.Trigger)
	if rec != nil {
		out := rec.Outcome
		runJob.RunID = rec.RunID
		runJob.RunStatus = rec.Status
		runJob.Outcome = &out
	}
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if rec != nil && rec.Outcome.LedgerUnavailable() {
		errs = append(errs, fmt.Errorf("run %s: %w: %w", rec.RunID, ledger.ErrLedgerUnavailable, jobs.ErrRetryable))
	}
	if len(errs) > 0 {
		err = errors.Join(errs...)
		log.Error().Err(err).Str("job_id", runJob.JobID).Msg("Run job failed")
		return fmt.Errorf("HandleJob: %w", err)
	}
	return nil
}
