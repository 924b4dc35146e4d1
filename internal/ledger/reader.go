package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// ErrLedgerUnavailable is returned when the ledger could not be read after all retries.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Reader reads every ledger entry in one bulk call.
type Reader interface {
	ReadEntries(ctx context.Context) ([]Entry, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context) ([]Entry, error)

// ReadEntries implements Reader.
func (f ReaderFunc) ReadEntries(ctx context.Context) ([]Entry, error) {
	return f(ctx)
}

// RetryPolicy bounds the retries around a ledger read.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns three attempts with a 500ms initial backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// RetryingReader retries a Reader with exponential backoff.
type RetryingReader struct {
	inner  Reader
	policy RetryPolicy
	log    zerolog.Logger
}

// NewRetryingReader wraps inner with the given retry policy.
func NewRetryingReader(inner Reader, policy RetryPolicy, log zerolog.Logger) *RetryingReader {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingReader{
		inner:  inner,
		policy: policy,
		log:    log,
	}
}

// ReadEntries implements Reader. After the last failed attempt the returned
// error wraps both ErrLedgerUnavailable and the final cause.
func (r *RetryingReader) ReadEntries(ctx context.Context) ([]Entry, error) {
	exp := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		exp.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		exp.MaxInterval = r.policy.MaxInterval
	}
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxAttempts-1)), ctx)

	attempt := 0
	var entries []Entry
	op := func() error {
		attempt++
		var err error
		entries, err = r.inner.ReadEntries(ctx)
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.policy.MaxAttempts).
			Dur("retry_in", wait).
			Msg("Ledger read failed, retrying")
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, fmt.Errorf("ReadEntries: %w after %d attempt(s): %w", ErrLedgerUnavailable, attempt, err)
	}
	return entries, nil
}
