package ledger

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dvloznov/finance-reminders/internal/logger"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestRetryingReader_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	inner := ReaderFunc(func(ctx context.Context) ([]Entry, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("temporary")
		}
		return []Entry{{ID: "1"}}, nil
	})

	r := NewRetryingReader(inner, fastPolicy(3), logger.NewWithWriter(io.Discard))
	entries, err := r.ReadEntries(context.Background())
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "1" {
		t.Errorf("ReadEntries() = %+v", entries)
	}
	if calls != 2 {
		t.Errorf("inner called %d times, want 2", calls)
	}
}

func TestRetryingReader_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cause := errors.New("bigquery down")
	inner := ReaderFunc(func(ctx context.Context) ([]Entry, error) {
		calls++
		return nil, cause
	})

	r := NewRetryingReader(inner, fastPolicy(3), logger.NewWithWriter(io.Discard))
	_, err := r.ReadEntries(context.Background())
	if err == nil {
		t.Fatal("ReadEntries() error = nil, want error")
	}
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Errorf("error %v does not wrap ErrLedgerUnavailable", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error %v does not wrap the cause", err)
	}
	if calls != 3 {
		t.Errorf("inner called %d times, want 3", calls)
	}
}

func TestRetryingReader_SingleAttempt(t *testing.T) {
	calls := 0
	inner := ReaderFunc(func(ctx context.Context) ([]Entry, error) {
		calls++
		return nil, errors.New("nope")
	})

	r := NewRetryingReader(inner, fastPolicy(0), logger.NewWithWriter(io.Discard))
	if _, err := r.ReadEntries(context.Background()); err == nil {
		t.Fatal("ReadEntries() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("inner called %d times, want 1", calls)
	}
}
