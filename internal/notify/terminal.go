package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// TerminalChannel writes notifications to the structured log.
type TerminalChannel struct {
	logger  zerolog.Logger
	enabled bool
}

// NewTerminalChannel creates a terminal notification channel.
func NewTerminalChannel(logger zerolog.Logger, enabled bool) *TerminalChannel {
	return &TerminalChannel{logger: logger, enabled: enabled}
}

// Name implements Channel.
func (t *TerminalChannel) Name() string { return "terminal" }

// IsEnabled implements Channel.
func (t *TerminalChannel) IsEnabled() bool { return t.enabled }

// Send implements Channel.
func (t *TerminalChannel) Send(_ context.Context, n Notification) error {
	evt := t.logger.Info().
		Str("kind", string(n.Kind)).
		Str("user_id", n.UserID)
	for k, v := range n.Data {
		evt = evt.Interface(k, v)
	}
	evt.Msg(n.Title + ": " + n.Message)
	return nil
}

var _ Channel = (*TerminalChannel)(nil)
