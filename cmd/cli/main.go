package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reminders/internal/app"
	"github.com/dvloznov/finance-reminders/internal/config"
	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
	"github.com/dvloznov/finance-reminders/internal/logger"
	"github.com/dvloznov/finance-reminders/internal/reminder"
	"github.com/dvloznov/finance-reminders/internal/runner"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runReminders(os.Args[2:])
	case "preview":
		runPreview(os.Args[2:])
	case "runs":
		runHistory(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Reminders CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Send due-date reminders once")
	fmt.Println("  preview   Print the messages a run would send")
	fmt.Println("  runs      List recent runs")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nConfiguration is read from $" + config.PathEnvVar + " and " + config.EnvPrefix + "* variables.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// loadConfig loads the configuration or exits.
func loadConfig(overrides ...func(*config.Config)) (*config.Config, zerolog.Logger) {
	cfg, err := config.Load(overrides...)
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg, logger.New(cfg.LogLevel)
}

func runReminders(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Log messages instead of sending them")
	trigger := fs.String("trigger", "cli", "Trigger recorded with the run")
	fs.Parse(args)

	cfg, log := loadConfig(func(c *config.Config) {
		if *dryRun {
			c.DryRun = true
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	rec, err := a.Runner.Execute(ctx, *trigger)
	printRecord(os.Stdout, rec)
	if err != nil {
		log.Error().Err(err).Msg("Run finished but could not be recorded")
		a.Close()
		os.Exit(1)
	}
}

func runPreview(args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print previews as JSON")
	fs.Parse(args)

	// Previews never send, so credentials are not needed.
	cfg, log := loadConfig(func(c *config.Config) { c.DryRun = true })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	previews, out := a.Engine.Preview(ctx)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{"previews": previews, "outcome": out})
		return
	}
	printPreviews(os.Stdout, previews, out)
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Number of runs to list")
	fs.Parse(args)

	cfg, log := loadConfig(func(c *config.Config) { c.DryRun = true })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo, err := infraBQ.NewRepository(ctx, infraBQ.Dataset{
		ProjectID: cfg.BigQuery.ProjectID,
		DatasetID: cfg.BigQuery.DatasetID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	rows, err := repo.ListRecentReminderRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	printHistory(os.Stdout, rows, log)
}

func printRecord(w io.Writer, rec *runner.Record) {
	if rec == nil {
		return
	}
	fmt.Fprintf(w, "\n=== Run %s ===\n", rec.RunID)
	fmt.Fprintf(w, "Status:    %s\n", rec.Status)
	fmt.Fprintf(w, "Trigger:   %s\n", rec.Trigger)
	fmt.Fprintf(w, "Duration:  %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	printOutcome(w, rec.Outcome)
	if rec.ArchiveURI != "" {
		fmt.Fprintf(w, "Archive:   %s\n", rec.ArchiveURI)
	}
}

func printOutcome(w io.Writer, out reminder.Outcome) {
	fmt.Fprintf(w, "Users:     %d\n", out.UsersConsidered)
	fmt.Fprintf(w, "Reminders: %d\n", out.RemindersTotal)
	fmt.Fprintf(w, "Sent:      %d\n", out.Sent)
	fmt.Fprintf(w, "Skipped:   %d\n", out.Skipped)
	fmt.Fprintf(w, "Errors:    %d\n", out.Errors)
	for _, reason := range reminder.Reasons {
		if n := out.Reasons[reason]; n > 0 {
			fmt.Fprintf(w, "  %-18s %d\n", reason, n)
		}
	}
}

func printPreviews(w io.Writer, previews []reminder.Preview, out reminder.Outcome) {
	fmt.Fprintf(w, "\n=== Previews (%d) ===\n", len(previews))
	for i, p := range previews {
		fmt.Fprintf(w, "\n%d. %s (%d items)\n", i+1, p.Destination, p.Items)
		fmt.Fprintln(w, p.Message)
	}
	fmt.Fprintln(w)
	printOutcome(w, out)
}

func printHistory(w io.Writer, rows []*infraBQ.ReminderRunRow, log zerolog.Logger) {
	fmt.Fprintf(w, "\n=== Runs (%d) ===\n", len(rows))
	for _, row := range rows {
		rec, err := runner.RecordFromRow(row)
		if err != nil {
			log.Warn().Err(err).Str("run_id", row.RunID).Msg("Skipping unreadable run row")
			continue
		}
		fmt.Fprintf(w, "%s  %-8s  %-8s  sent=%d skipped=%d errors=%d  %s\n",
			rec.StartedAt.Format(time.RFC3339),
			rec.Status,
			rec.Trigger,
			rec.Outcome.Sent,
			rec.Outcome.Skipped,
			rec.Outcome.Errors,
			rec.RunID,
		)
	}
}
