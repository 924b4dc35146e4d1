package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
	"github.com/dvloznov/finance-reminders/internal/metrics"
	"github.com/dvloznov/finance-reminders/internal/reminder"
)

type mockEngine struct {
	RunFunc func(ctx context.Context) reminder.Outcome
}

func (m *mockEngine) Run(ctx context.Context) reminder.Outcome {
	return m.RunFunc(ctx)
}

type mockRunRepository struct {
	InsertReminderRunFunc      func(ctx context.Context, row *infraBQ.ReminderRunRow) error
	ListRecentReminderRunsFunc func(ctx context.Context, limit int) ([]*infraBQ.ReminderRunRow, error)
}

func (m *mockRunRepository) InsertReminderRun(ctx context.Context, row *infraBQ.ReminderRunRow) error {
	return m.InsertReminderRunFunc(ctx, row)
}

func (m *mockRunRepository) ListRecentReminderRuns(ctx context.Context, limit int) ([]*infraBQ.ReminderRunRow, error) {
	return m.ListRecentReminderRunsFunc(ctx, limit)
}

type mockArchiver struct {
	ArchiveRunFunc func(ctx context.Context, runID string, startedAt time.Time, v interface{}) (string, error)
}

func (m *mockArchiver) ArchiveRun(ctx context.Context, runID string, startedAt time.Time, v interface{}) (string, error) {
	return m.ArchiveRunFunc(ctx, runID, startedAt, v)
}

func sampleOutcome() reminder.Outcome {
	return reminder.Outcome{
		UsersConsidered: 2,
		RemindersTotal:  3,
		Sent:            1,
		Skipped:         1,
		Reasons: map[reminder.Reason]int{
			reminder.ReasonSentOK:         1,
			reminder.ReasonSentTemplateOK: 1,
			reminder.ReasonInactivePlan:   1,
		},
	}
}

func newTestRunner(engine Engine, opts Options) *Runner {
	r := New(engine, zerolog.Nop(), opts)
	start := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	calls := 0
	r.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 3 * time.Second)
	}
	r.newID = func() string { return "run-1" }
	return r
}

func TestExecute(t *testing.T) {
	var inserted *infraBQ.ReminderRunRow
	var archived interface{}

	m := metrics.New()
	r := newTestRunner(
		&mockEngine{RunFunc: func(ctx context.Context) reminder.Outcome { return sampleOutcome() }},
		Options{
			Runs: &mockRunRepository{
				InsertReminderRunFunc: func(ctx context.Context, row *infraBQ.ReminderRunRow) error {
					inserted = row
					return nil
				},
			},
			Archiver: &mockArchiver{
				ArchiveRunFunc: func(ctx context.Context, runID string, startedAt time.Time, v interface{}) (string, error) {
					archived = v
					return "gs://archive/reminder-runs/2026/10/19/" + runID + ".json", nil
				},
			},
			Metrics: m,
		},
	)

	rec, err := r.Execute(context.Background(), "cli")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if rec.RunID != "run-1" || rec.Trigger != "cli" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Status != metrics.StatusSuccess {
		t.Errorf("Status = %q, want %q", rec.Status, metrics.StatusSuccess)
	}
	if got := rec.FinishedAt.Sub(rec.StartedAt); got != 3*time.Second {
		t.Errorf("elapsed = %v, want 3s", got)
	}
	if archived == nil {
		t.Error("run was not archived")
	}

	if inserted == nil {
		t.Fatal("run row was not inserted")
	}
	if inserted.Sent != 1 || inserted.Skipped != 1 || inserted.UsersConsidered != 2 || inserted.RemindersTotal != 3 {
		t.Errorf("inserted counters = %+v", inserted)
	}
	if !inserted.ArchiveURI.Valid || !strings.HasSuffix(inserted.ArchiveURI.StringVal, "/run-1.json") {
		t.Errorf("ArchiveURI = %+v", inserted.ArchiveURI)
	}
	if !inserted.Reasons.Valid || !strings.Contains(inserted.Reasons.JSONVal, `"inactive_plan":1`) {
		t.Errorf("Reasons = %+v", inserted.Reasons)
	}

	if got := testutil.ToFloat64(m.Runs.WithLabelValues(metrics.StatusSuccess)); got != 1 {
		t.Errorf("successful runs = %v, want 1", got)
	}
}

func TestExecute_Degraded(t *testing.T) {
	r := newTestRunner(
		&mockEngine{RunFunc: func(ctx context.Context) reminder.Outcome {
			return reminder.Outcome{Errors: 1, Reasons: map[reminder.Reason]int{reminder.ReasonSendError: 1}}
		}},
		Options{},
	)

	rec, err := r.Execute(context.Background(), "api")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if rec.Status != metrics.StatusDegraded {
		t.Errorf("Status = %q, want %q", rec.Status, metrics.StatusDegraded)
	}
}

func TestExecute_PersistFailures(t *testing.T) {
	m := metrics.New()
	r := newTestRunner(
		&mockEngine{RunFunc: func(ctx context.Context) reminder.Outcome { return sampleOutcome() }},
		Options{
			Runs: &mockRunRepository{
				InsertReminderRunFunc: func(ctx context.Context, row *infraBQ.ReminderRunRow) error {
					if row.ArchiveURI.Valid {
						t.Error("ArchiveURI set although archiving failed")
					}
					return errors.New("quota exceeded")
				},
			},
			Archiver: &mockArchiver{
				ArchiveRunFunc: func(ctx context.Context, runID string, startedAt time.Time, v interface{}) (string, error) {
					return "", errors.New("bucket not found")
				},
			},
			Metrics: m,
		},
	)

	rec, err := r.Execute(context.Background(), "cli")
	if err == nil {
		t.Fatal("Execute() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") || !strings.Contains(err.Error(), "bucket not found") {
		t.Errorf("error = %v, want both failures", err)
	}
	if rec == nil || rec.Outcome.Sent != 1 {
		t.Errorf("record = %+v, want the computed outcome", rec)
	}

	if got := testutil.ToFloat64(m.PersistFails.WithLabelValues(TargetBigQuery)); got != 1 {
		t.Errorf("bigquery persist failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PersistFails.WithLabelValues(TargetArchive)); got != 1 {
		t.Errorf("archive persist failures = %v, want 1", got)
	}
}

func TestExecute_LogsRunID(t *testing.T) {
	var buf bytes.Buffer
	r := New(
		&mockEngine{RunFunc: func(ctx context.Context) reminder.Outcome { return sampleOutcome() }},
		zerolog.New(&buf),
		Options{},
	)
	r.newID = func() string { return "run-42" }

	if _, err := r.Execute(context.Background(), "cli"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"run_id":"run-42"`) {
		t.Errorf("log output missing run_id:\n%s", buf.String())
	}
}

func TestRecordFromRow(t *testing.T) {
	row := &infraBQ.ReminderRunRow{
		RunID:      "run-7",
		Trigger:    "api",
		Status:     metrics.StatusDegraded,
		Sent:       4,
		Errors:     1,
		Reasons:    bigquery.NullJSON{JSONVal: `{"send_error":1,"sent_ok":4}`, Valid: true},
		ArchiveURI: bigquery.NullString{StringVal: "gs://a/b.json", Valid: true},
	}

	rec, err := RecordFromRow(row)
	if err != nil {
		t.Fatalf("RecordFromRow() error = %v", err)
	}
	if rec.Outcome.Reasons[reminder.ReasonSentOK] != 4 || rec.Outcome.Reasons[reminder.ReasonSendError] != 1 {
		t.Errorf("Reasons = %v", rec.Outcome.Reasons)
	}
	if rec.ArchiveURI != "gs://a/b.json" || rec.Outcome.Errors != 1 {
		t.Errorf("record = %+v", rec)
	}

	row.Reasons = bigquery.NullJSON{JSONVal: "not json", Valid: true}
	if _, err := RecordFromRow(row); err == nil {
		t.Error("RecordFromRow() with bad reasons error = nil, want error")
	}
}
