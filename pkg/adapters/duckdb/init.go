package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapstep/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(l *slog.Logger) adapter.Adapter { return New(l) })
	adapter.Register("csv", func(l *slog.Logger) adapter.Adapter { return NewCSV(l) })
}
