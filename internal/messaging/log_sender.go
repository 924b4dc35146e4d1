package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender logs every message instead of sending it. Used for dry runs.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Bool("dry_run", true).Logger()}
}

// SendText implements reminder.Sender.
func (s *LogSender) SendText(ctx context.Context, to, body string) (bool, error) {
	s.log.Info().Str("to", to).Str("body", body).Msg("Would send text")
	return true, nil
}

// SendTemplate implements reminder.Sender.
func (s *LogSender) SendTemplate(ctx context.Context, to, userID, firstName string) (bool, error) {
	if firstName == "" {
		firstName = DefaultFirstName
	}
	s.log.Info().Str("to", to).Str("recipient", userID).Str("first_name", firstName).Msg("Would send template")
	return true, nil
}

// SendCopyPrompt implements reminder.Sender.
func (s *LogSender) SendCopyPrompt(ctx context.Context, to, label, code, buttonText string) error {
	s.log.Info().Str("to", to).Str("label", label).Str("code", code).Msg("Would send copy prompt")
	return nil
}
