package notify

import (
	"context"

	"github.com/MrEthical07/accountauth"
	"github.com/rs/zerolog"
)

// LogDispatcher writes every message to a logger instead of sending it.
type LogDispatcher struct {
	logger *zerolog.Logger
}

func NewLogDispatcher(logger *zerolog.Logger) *LogDispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, to, subject, body string) error {
	d.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("outbound email")
	return nil
}

var _ accountauth.Notifier = (*LogDispatcher)(nil)
