package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leapstep/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(l *slog.Logger) adapter.Adapter { return New(l) })
}
