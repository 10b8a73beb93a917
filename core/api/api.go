/*
The api package defines a small JSON/HTTP preview surface over a running
mosaic engine, using std net/http. See routes in ./handler.go.

*/
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bokononistmonkey/Mosaic/cfg"
	"github.com/bokononistmonkey/Mosaic/core/render"
	"github.com/bokononistmonkey/Mosaic/core/stream"
)

// Alias for readability.
type Addr = cfg.Addr

// Config is used as args to the Start func.
type Config struct {
	// Addr specifies the address of the server.
	Addr Addr

	ReadTimeout time.Duration
	// WriteTimeout cuts long-lived MJPEG streams short; keep it at 0
	// when /api/stream matters.
	WriteTimeout time.Duration

	// Renderer fronts the engine; all index access goes through it so
	// API queries serialize against in-flight frames. Required.
	Renderer *render.Renderer
	// Latest is the stream loop's frame sink. Optional; without it the
	// frame and stream endpoints answer 404.
	Latest *stream.Latest
	// Counters reports loop progress on the stats endpoint. Optional.
	Counters func() stream.Counters
	// Log defaults to slog.Default().
	Log *slog.Logger
}

func (c *Config) check() error {
	if c.Renderer == nil {
		return errors.New("api: nil renderer in config")
	}
	return nil
}

func newHandler(c Config) *handler {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	return &handler{
		renderer: c.Renderer,
		latest:   c.Latest,
		counters: c.Counters,
		log:      log.With("component", "api"),
	}
}

// Start runs an http.Server fronting the engine. Blocks like
// http.ListenAndServe does.
func Start(c Config) error {
	if err := c.check(); err != nil {
		return err
	}

	h := newHandler(c)
	s := http.Server{
		Addr:         c.Addr.ToStr(),
		Handler:      h.routes(),
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}

	h.log.Info("api listening", "addr", c.Addr.ToStr())
	return s.ListenAndServe()
}
