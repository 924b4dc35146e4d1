package ledger

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"

	"github.com/dvloznov/finance-reminders/internal/config"
	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
)

// NewSource builds the Reader selected by cfg.Ledger.Source. repo is only used
// by the bigquery source and may be nil otherwise.
func NewSource(ctx context.Context, cfg *config.Config, repo infraBQ.LedgerRepository) (Reader, error) {
	switch cfg.Ledger.Source {
	case config.SourceBigQuery:
		if repo == nil {
			return nil, errors.New("NewSource: bigquery source needs a ledger repository")
		}
		return NewBigQuerySource(repo), nil

	case config.SourceSheets:
		var opts []option.ClientOption
		if cfg.Sheets.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Sheets.CredentialsFile))
		}
		src, err := NewSheetsSource(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range, opts...)
		if err != nil {
			return nil, fmt.Errorf("NewSource: %w", err)
		}
		return src, nil

	case config.SourceNotion:
		return NewNotionSource(NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID), nil

	default:
		return nil, fmt.Errorf("NewSource: unknown ledger source %q", cfg.Ledger.Source)
	}
}

// PolicyFromConfig converts the ledger retry settings into a RetryPolicy.
func PolicyFromConfig(cfg config.LedgerConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     cfg.RetryAttempts,
		InitialInterval: cfg.RetryInitial,
		MaxInterval:     cfg.RetryMaxBackoff,
	}
}
