// Package app wires configuration, storage clients and the reminder engine
// into the components used by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reminders/internal/config"
	"github.com/dvloznov/finance-reminders/internal/gcs"
	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
	"github.com/dvloznov/finance-reminders/internal/interactions"
	"github.com/dvloznov/finance-reminders/internal/ledger"
	"github.com/dvloznov/finance-reminders/internal/messaging"
	"github.com/dvloznov/finance-reminders/internal/metrics"
	"github.com/dvloznov/finance-reminders/internal/plans"
	"github.com/dvloznov/finance-reminders/internal/reminder"
	"github.com/dvloznov/finance-reminders/internal/runner"
)

// Repository is the BigQuery access the application needs.
type Repository interface {
	infraBQ.LedgerRepository
	infraBQ.SubscriptionRepository
	infraBQ.RunRepository
}

// Clients are the external connections the application is built on.
type Clients struct {
	Repo  Repository
	Redis redis.Cmdable
	// Archiver is nil when archiving is disabled.
	Archiver runner.Archiver
}

// App holds the wired components.
type App struct {
	Config   *config.Config
	Engine   *reminder.Engine
	Runner   *runner.Runner
	Tracker  interactions.Tracker
	Runs     infraBQ.RunRepository
	Metrics  *metrics.Metrics
	Messages *messaging.Client

	closers []func() error
}

// New opens the clients described by cfg and wires the application.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	repo, err := infraBQ.NewRepository(ctx, infraBQ.Dataset{
		ProjectID: cfg.BigQuery.ProjectID,
		DatasetID: cfg.BigQuery.DatasetID,
	})
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	closers = append(closers, repo.Close)
	clients := Clients{Repo: repo}

	if needsRedis(cfg) {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, fmt.Errorf("New: connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		clients.Redis = rdb
	}

	if cfg.Archive.Bucket != "" {
		archiver, err := gcs.NewArchiver(ctx, cfg.Archive.Bucket)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("New: %w", err)
		}
		closers = append(closers, archiver.Close)
		clients.Archiver = archiver
	}

	a, err := Wire(ctx, cfg, clients, log)
	if err != nil {
		closeAll()
		return nil, err
	}
	a.closers = closers
	return a, nil
}

// Wire builds the application on already opened clients.
func Wire(ctx context.Context, cfg *config.Config, clients Clients, log zerolog.Logger) (*App, error) {
	if clients.Repo == nil {
		return nil, errors.New("Wire: a BigQuery repository is required")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("Wire: %w", err)
	}

	source, err := ledger.NewSource(ctx, cfg, clients.Repo)
	if err != nil {
		return nil, fmt.Errorf("Wire: %w", err)
	}
	reader := ledger.NewRetryingReader(source, ledger.PolicyFromConfig(cfg.Ledger), log)

	names := plans.NewBigQueryChecker(clients.Repo, log)
	var checker reminder.PlanChecker = names
	if cfg.Plans.CacheTTL > 0 && clients.Redis != nil {
		checker = plans.NewCachedChecker(names, clients.Redis, cfg.Plans.CacheTTL, log)
	}

	tracker, err := newTracker(cfg, clients.Redis, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Tracker: tracker,
		Runs:    clients.Repo,
		Metrics: metrics.New(),
	}

	var sender reminder.Sender
	if cfg.DryRun {
		log.Warn().Msg("Dry run: reminders are logged, not sent")
		sender = messaging.NewLogSender(log)
	} else {
		client, err := messaging.New(messaging.ConfigFrom(cfg.WhatsApp), log)
		if err != nil {
			return nil, fmt.Errorf("Wire: %w", err)
		}
		a.Messages = client
		sender = client
	}

	a.Engine = reminder.NewEngine(reminder.Dependencies{
		Reader:       reader,
		Plans:        checker,
		Names:        names,
		Interactions: tracker,
		Sender:       sender,
		Location:     loc,
		Logger:       log,
	})
	a.Runner = runner.New(a.Engine, log, runner.Options{
		Runs:     clients.Repo,
		Archiver: clients.Archiver,
		Metrics:  a.Metrics,
	})
	return a, nil
}

// Close releases every client opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Interactions.Backend == config.BackendRedis || cfg.Plans.CacheTTL > 0
}

func newTracker(cfg *config.Config, rdb redis.Cmdable, log zerolog.Logger) (interactions.Tracker, error) {
	switch cfg.Interactions.Backend {
	case config.BackendRedis:
		if rdb == nil {
			return nil, errors.New("Wire: the redis interaction backend needs a redis client")
		}
		return interactions.NewRedisTracker(rdb, cfg.Interactions.Window, log), nil
	case config.BackendMemory:
		return interactions.NewMemoryTracker(cfg.Interactions.Window), nil
	default:
		return nil, fmt.Errorf("Wire: unknown interactions backend %q", cfg.Interactions.Backend)
	}
}
