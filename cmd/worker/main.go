package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reminders/internal/app"
	"github.com/dvloznov/finance-reminders/internal/config"
	"github.com/dvloznov/finance-reminders/internal/jobs"
	"github.com/dvloznov/finance-reminders/internal/jobs/inmemory"
	"github.com/dvloznov/finance-reminders/internal/logger"
)

// scheduleTrigger is recorded on runs started by the worker.
const scheduleTrigger = "schedule"

func main() {
	runNow := flag.Bool("now", false, "Also run once immediately at startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timezone")
	}
	hour, minute, err := cfg.DailyAt()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid schedule")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	// A single worker keeps scheduled runs from overlapping.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(1, 1, jobStore,
		inmemory.WithRetries(cfg.Jobs.MaxRetries, cfg.Jobs.RetryDelay))

	if err := jobQueue.Start(ctx, a.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Str("daily_at", cfg.Schedule.DailyAt).Str("timezone", cfg.Timezone).Msg("Worker service started")

	go schedule(ctx, jobQueue, *runNow, func(now time.Time) time.Time {
		return nextRun(now, hour, minute, loc)
	}, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancel()

	log.Info().Msg("Worker service stopped")
}

// schedule publishes a run job at every time returned by next until ctx is done.
func schedule(ctx context.Context, pub jobs.Publisher, runNow bool, next func(time.Time) time.Time, log zerolog.Logger) {
	if runNow {
		publish(ctx, pub, log)
	}
	for {
		at := next(time.Now())
		log.Info().Time("next_run", at).Msg("Next reminder run scheduled")

		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			publish(ctx, pub, log)
		}
	}
}

func publish(ctx context.Context, pub jobs.Publisher, log zerolog.Logger) {
	job := &jobs.RunRemindersJob{Trigger: scheduleTrigger}
	if err := pub.PublishRunReminders(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue scheduled run")
		return
	}
	log.Info().Str("job_id", job.JobID).Msg("Scheduled run enqueued")
}

// nextRun returns the first hour:minute in loc strictly after now.
func nextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !at.After(local) {
		at = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return at
}
