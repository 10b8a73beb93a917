/*
Frame sources for the stream loop. A FrameSource is pull-based; the loop
asks for one frame per tick and stops on io.EOF.
*/
package stream

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// FrameSource yields source frames one by one. Next returns io.EOF once
// the source is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

// SequenceSource plays the image files of one directory in lexical
// order, optionally looping forever.
type SequenceSource struct {
	paths []string
	pos   int
	loop  bool
}

// NewSequenceSource lists the frame files up front, so a bad directory
// fails here and not mid-stream. Errors also on a directory without a
// single image file.
func NewSequenceSource(dir string, loop bool) (*SequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("stream: listing frames: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("stream: no frame images in %s", dir)
	}
	sort.Strings(paths)

	return &SequenceSource{paths: paths, loop: loop}, nil
}

func (s *SequenceSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.paths) {
		if !s.loop {
			return nil, io.EOF
		}
		s.pos = 0
	}

	path := s.paths[s.pos]
	s.pos++

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", path, err)
	}
	return img, nil
}

// SyntheticSource produces a deterministic animated gradient, so the
// loop can run without any frame material on disk. Two sources with the
// same dimensions produce identical frame sequences.
type SyntheticSource struct {
	// W, H are the frame dimensions.
	W, H int
	// Count limits the number of frames; 0 means unbounded.
	Count int

	tick int
}

func (s *SyntheticSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Count > 0 && s.tick >= s.Count {
		return nil, io.EOF
	}

	w, h := s.W, s.H
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8((x*255/w + s.tick*8) % 256)
			g := uint8(y * 255 / h)
			img.Set(x, y, rgba(r, g, 255-r/2-g/2))
		}
	}
	s.tick++
	return img, nil
}

func rgba(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
