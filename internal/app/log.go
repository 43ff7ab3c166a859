package app

import (
	"fmt"
	"io"

	"github.com/decred/slog"
)

// NewLogger builds a subsystem logger writing to w at the named level.
func NewLogger(w io.Writer, subsys, level string) (slog.Logger, error) {
	if level == "off" {
		return slog.Disabled, nil
	}
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	log := slog.NewBackend(w).Logger(subsys)
	log.SetLevel(lvl)
	return log, nil
}
