package stream

import (
	"log/slog"
	"time"

	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
)

// TaskLogger is the loop's hook surface. It is primarily used in
// LoopConfig; the default implementation logs through slog, tests plug
// in recorders.
type TaskLogger interface {
	// LogFrame is called once per rendered frame.
	LogFrame(frame int, elapsed time.Duration)
	// LogStats is called on the StatsEvery cadence with a fresh index
	// summary.
	LogStats(frame int, s tilemap.Summary)
}

type slogLogger struct {
	log *slog.Logger
}

func (l slogLogger) LogFrame(frame int, elapsed time.Duration) {
	l.log.Debug("frame done", "frame", frame, "elapsed", elapsed)
}

func (l slogLogger) LogStats(frame int, s tilemap.Summary) {
	l.log.Info("index stats", "frame", frame,
		"buckets", s.Buckets, "elements", s.Elements, "balanced", s.Balanced)
}
