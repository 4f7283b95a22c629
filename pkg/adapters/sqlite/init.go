package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapstep/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(l *slog.Logger) adapter.Adapter { return New(l) })
}
