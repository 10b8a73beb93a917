/*
The stream loop: pull a frame from the source, render it, hand it to
every sink, repeat at a capped rate. One loop per process; the api reads
what the loop publishes instead of rendering on request.
*/
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bokononistmonkey/Mosaic/core/render"
	"golang.org/x/time/rate"
)

// Counters is a snapshot of loop progress.
type Counters struct {
	Frames     int
	LastRender time.Duration
}

type loopInternal struct {
	mx     sync.Mutex
	frames int
	last   time.Duration
}

// LoopConfig configures Run.
type LoopConfig struct {
	// Source yields the frames. Required.
	Source FrameSource
	// Renderer turns source frames into mosaics. Required.
	Renderer *render.Renderer
	// Sinks receive every rendered frame. Optional.
	Sinks []FrameSink
	// FPS caps the frame rate; values below 1 run unpaced.
	FPS int
	// StatsEvery triggers the stats hook every Nth frame; 0 disables.
	StatsEvery int
	// L receives the per-frame and stats hooks. Defaults to a slog
	// logger on Log.
	L TaskLogger
	// Log defaults to slog.Default().
	Log *slog.Logger

	// Added by the loop.
	internal loopInternal
}

func (cfg *LoopConfig) tick(elapsed time.Duration) int {
	cfg.internal.mx.Lock()
	defer cfg.internal.mx.Unlock()
	cfg.internal.frames++
	cfg.internal.last = elapsed
	return cfg.internal.frames
}

// Counters may be called from other goroutines while the loop runs; the
// api's stats endpoint does.
func (cfg *LoopConfig) Counters() Counters {
	cfg.internal.mx.Lock()
	defer cfg.internal.mx.Unlock()
	return Counters{Frames: cfg.internal.frames, LastRender: cfg.internal.last}
}

// withEvery runs task on the given frame-count cadence.
func withEvery(frame, every int, task func()) {
	if every < 1 {
		return
	}
	if frame%every == 0 {
		task()
	}
}

// Run drives the loop until the context ends or the source is exhausted;
// both are normal shutdowns and return nil. Render and sink errors abort
// the loop and are returned.
func Run(ctx context.Context, cfg *LoopConfig) error {
	if cfg == nil {
		return errors.New("stream: nil loop config")
	}
	if cfg.Source == nil {
		return errors.New("stream: nil frame source")
	}
	if cfg.Renderer == nil {
		return errors.New("stream: nil renderer")
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "stream")

	l := cfg.L
	if l == nil {
		l = slogLogger{log: log}
	}

	var limiter *rate.Limiter
	if cfg.FPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FPS), 1)
	}

	log.Info("stream loop starting", "fps", cfg.FPS, "sinks", len(cfg.Sinks))
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				log.Info("stream loop stopped", "frames", cfg.Counters().Frames)
				return nil
			}
		} else if ctx.Err() != nil {
			log.Info("stream loop stopped", "frames", cfg.Counters().Frames)
			return nil
		}

		src, err := cfg.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			log.Info("frame source exhausted", "frames", cfg.Counters().Frames)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream: next frame: %w", err)
		}

		f, err := cfg.Renderer.Render(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream: rendering frame %v: %w", cfg.Counters().Frames, err)
		}

		for _, sink := range cfg.Sinks {
			if err := sink.Publish(f); err != nil {
				return fmt.Errorf("stream: publishing frame %v: %w", cfg.Counters().Frames, err)
			}
		}

		frame := cfg.tick(f.Elapsed)
		l.LogFrame(frame, f.Elapsed)
		withEvery(frame, cfg.StatsEvery, func() {
			l.LogStats(frame, cfg.Renderer.Summary())
		})
	}
}
