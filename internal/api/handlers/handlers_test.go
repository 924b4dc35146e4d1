package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
	"github.com/dvloznov/finance-reminders/internal/jobs"
	"github.com/dvloznov/finance-reminders/internal/jobs/inmemory"
	"github.com/dvloznov/finance-reminders/internal/reminder"
)

type mockPublisher struct {
	PublishRunRemindersFunc func(ctx context.Context, job *jobs.RunRemindersJob) error
}

func (m *mockPublisher) PublishRunReminders(ctx context.Context, job *jobs.RunRemindersJob) error {
	return m.PublishRunRemindersFunc(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

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

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		publishErr  error
		wantStatus  int
		wantTrigger string
	}{
		{"empty body", "", nil, http.StatusAccepted, "api"},
		{"explicit trigger", `{"trigger":"schedule"}`, nil, http.StatusAccepted, "schedule"},
		{"invalid body", `{`, nil, http.StatusBadRequest, ""},
		{"queue closed", "", inmemory.ErrQueueClosed, http.StatusServiceUnavailable, "api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var published *jobs.RunRemindersJob
			pub := &mockPublisher{
				PublishRunRemindersFunc: func(ctx context.Context, job *jobs.RunRemindersJob) error {
					published = job
					job.JobID = "job-1"
					job.Status = jobs.JobStatusPending
					return tt.publishErr
				},
			}
			h := NewRunsHandler(pub, inmemory.NewStore(), nil, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.CreateRun(rec, httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantTrigger != "" && (published == nil || published.Trigger != tt.wantTrigger) {
				t.Errorf("published job = %+v, want trigger %q", published, tt.wantTrigger)
			}
			if rec.Code == http.StatusAccepted {
				var resp map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatal(err)
				}
				if resp["job_id"] != "job-1" || resp["status"] != "pending" {
					t.Errorf("response = %v", resp)
				}
			}
		})
	}
}

func TestGetRunAndListRuns(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	_ = store.SaveJob(ctx, &jobs.RunRemindersJob{
		JobID:     "job-1",
		Trigger:   "api",
		Status:    jobs.JobStatusCompleted,
		RunStatus: "SUCCESS",
		Outcome:   &reminder.Outcome{Sent: 2},
		CreatedAt: time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC),
	})
	_ = store.SaveJob(ctx, &jobs.RunRemindersJob{
		JobID:     "job-2",
		Trigger:   "schedule",
		Status:    jobs.JobStatusFailed,
		CreatedAt: time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC),
	})
	h := NewRunsHandler(nil, store, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetRun(rec, httptest.NewRequest(http.MethodGet, "/api/runs/job-1", nil), "job-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("GetRun status = %d", rec.Code)
	}
	var job jobs.RunRemindersJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.Outcome == nil || job.Outcome.Sent != 2 || job.RunStatus != "SUCCESS" {
		t.Errorf("job = %+v", job)
	}

	rec = httptest.NewRecorder()
	h.GetRun(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil), "nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GetRun(missing) status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs?trigger=schedule&limit=10", nil))
	var list struct {
		Runs  []jobs.RunRemindersJob `json:"runs"`
		Count int                    `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Runs[0].JobID != "job-2" {
		t.Errorf("ListRuns = %+v", list)
	}
}

func TestListHistory(t *testing.T) {
	var gotLimit int
	repo := &mockRunRepository{
		ListRecentReminderRunsFunc: func(ctx context.Context, limit int) ([]*infraBQ.ReminderRunRow, error) {
			gotLimit = limit
			return []*infraBQ.ReminderRunRow{
				{RunID: "run-2", Status: "SUCCESS", Sent: 3, Reasons: bigquery.NullJSON{JSONVal: `{"sent_ok":3}`, Valid: true}},
				{RunID: "run-1", Status: "DEGRADED", Reasons: bigquery.NullJSON{JSONVal: `garbage`, Valid: true}},
			}, nil
		},
	}
	h := NewRunsHandler(nil, inmemory.NewStore(), repo, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/runs/history?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want 5", gotLimit)
	}
	if !strings.Contains(rec.Body.String(), `"count":1`) || !strings.Contains(rec.Body.String(), `"run-2"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/runs/history?limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}

	repo.ListRecentReminderRunsFunc = func(ctx context.Context, limit int) ([]*infraBQ.ReminderRunRow, error) {
		return nil, errors.New("bigquery down")
	}
	rec = httptest.NewRecorder()
	h.ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/runs/history", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("repo error status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewRunsHandler(nil, inmemory.NewStore(), nil, zerolog.Nop()).
		ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/runs/history", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("no history status = %d, want 501", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("Health = %d %s", rec.Code, rec.Body.String())
	}
}
