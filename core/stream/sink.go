/*
Frame sinks. The loop hands every rendered frame to each registered
sink; a sink error aborts the stream.
*/
package stream

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/bokononistmonkey/Mosaic/core/render"
)

// FrameSink receives every rendered frame.
type FrameSink interface {
	Publish(f *render.Frame) error
}

// Latest holds the most recent frame for pull-style consumers; the api's
// frame and stream endpoints read it while the loop keeps writing.
type Latest struct {
	mx  sync.RWMutex
	f   *render.Frame
	seq uint64
}

func (l *Latest) Publish(f *render.Frame) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.f = f
	l.seq++
	return nil
}

// Frame returns the current frame (nil before the first publish) and a
// sequence number that changes with every publish, so pollers can tell
// whether they've already seen this frame.
func (l *Latest) Frame() (*render.Frame, uint64) {
	l.mx.RLock()
	defer l.mx.RUnlock()
	return l.f, l.seq
}

// PNGWriter writes every frame as a zero-padded PNG file into one
// directory.
type PNGWriter struct {
	Dir string
	// Prefix defaults to "frame-".
	Prefix string

	n int
}

func (w *PNGWriter) Publish(f *render.Frame) error {
	prefix := w.Prefix
	if prefix == "" {
		prefix = "frame-"
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("%s%06d.png", prefix, w.n))

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := png.Encode(out, f.Image); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	w.n++
	return nil
}
