/*
This pkg paints mosaic frames: chop a source image into a grid of
tile-sized cells, average each cell's source region, ask the index for
the closest element and draw that element's tile into the cell.

Cells render in parallel, but the index itself is single-threaded (every
query mutates usage counters), so the Renderer owns a mutex and funnels
all queries through it. Anything else querying the same index while
frames are in flight (the api pkg) must use Renderer.Query / Summary
instead of touching the index directly.
*/
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Frame is one rendered output.
type Frame struct {
	// Image is the mosaic canvas, sized to whole tiles.
	Image *image.RGBA
	// Grid holds the chosen element id per cell, row-major.
	Grid [][]uint32
	// Elapsed is the wall time the render took.
	Elapsed time.Duration
}

// NewRendererArgs contain arguments for NewRenderer.
type NewRendererArgs struct {
	// Index answers the per-cell queries. Required, normally balanced.
	Index *tilemap.BigBucket
	// TileSize is the cell side length in pixels.
	TileSize int
	// Workers bounds per-cell parallelism. Values below 1 mean 1.
	Workers int
	// Log defaults to slog.Default().
	Log *slog.Logger
}

func (args *NewRendererArgs) check() error {
	if args.Index == nil {
		return errors.New("render: nil index")
	}
	if args.TileSize < 1 {
		return fmt.Errorf("render: tile size %v is below 1", args.TileSize)
	}
	return nil
}

// Renderer paints frames against one index. Safe for concurrent use.
type Renderer struct {
	index    *tilemap.BigBucket
	tileSize int
	workers  int
	log      *slog.Logger

	// mx serializes every index access; see the pkg comment.
	mx sync.Mutex
}

func NewRenderer(args NewRendererArgs) (*Renderer, error) {
	if err := args.check(); err != nil {
		return nil, err
	}
	workers := args.Workers
	if workers < 1 {
		workers = 1
	}
	log := args.Log
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		index:    args.Index,
		tileSize: args.TileSize,
		workers:  workers,
		log:      log.With("component", "render"),
	}, nil
}

// Query runs one closest-element lookup under the renderer's index lock.
func (r *Renderer) Query(target colorutils.RGB) (*tilemap.Element, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.index.ClosestElement(target)
}

// QueryDetailed returns the chosen element together with the bucket that
// answered, both resolved under one lock hold. The api's query endpoint
// uses this to report the bucket average alongside the element.
func (r *Renderer) QueryDetailed(target colorutils.RGB) (*tilemap.Element, *tilemap.Bucket, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	b, err := r.index.ClosestBucket(target)
	if err != nil {
		return nil, nil, err
	}
	e, err := b.Closest(target)
	if err != nil {
		return nil, nil, err
	}
	return e, b, nil
}

// Summary snapshots the index under the same lock.
func (r *Renderer) Summary() tilemap.Summary {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.index.Summarize()
}

// Render paints one frame. The grid is the source bounds rounded down to
// whole tiles; partial edge cells are dropped. Engine errors (notably an
// empty index) abort the frame.
func (r *Renderer) Render(ctx context.Context, src image.Image) (*Frame, error) {
	if src == nil {
		return nil, errors.New("render: nil source image")
	}
	start := time.Now()

	b := src.Bounds()
	cols := b.Dx() / r.tileSize
	rows := b.Dy() / r.tileSize
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("render: source %vx%v is smaller than one %vpx tile",
			b.Dx(), b.Dy(), r.tileSize)
	}

	out := image.NewRGBA(image.Rect(0, 0, cols*r.tileSize, rows*r.tileSize))
	grid := make([][]uint32, rows)
	for i := range grid {
		grid[i] = make([]uint32, cols)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			row, col := row, col
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				region := image.Rect(
					b.Min.X+col*r.tileSize, b.Min.Y+row*r.tileSize,
					b.Min.X+(col+1)*r.tileSize, b.Min.Y+(row+1)*r.tileSize,
				)
				e, err := r.Query(regionAverage(src, region))
				if err != nil {
					return err
				}

				// Each cell writes a disjoint rect of 'out' and its own
				// grid slot, so no lock is needed here.
				grid[row][col] = e.ID()
				cell := image.Rect(
					col*r.tileSize, row*r.tileSize,
					(col+1)*r.tileSize, (row+1)*r.tileSize,
				)
				paint(out, cell, e)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := Frame{Image: out, Grid: grid, Elapsed: time.Since(start)}
	r.log.Debug("frame rendered",
		"cells", rows*cols, "size", fmt.Sprintf("%vx%v", out.Rect.Dx(), out.Rect.Dy()),
		"elapsed", f.Elapsed)
	return &f, nil
}

// paint draws an element's tile into one cell: direct copy when the tile
// already has cell size, Catmull-Rom scale otherwise. Elements without an
// image handle become a flat fill of their average color.
func paint(dst *image.RGBA, cell image.Rectangle, e *tilemap.Element) {
	tile := e.Img()
	if tile == nil {
		c := e.Color()
		fill := image.NewUniform(color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		draw.Draw(dst, cell, fill, image.Point{}, draw.Src)
		return
	}

	tb := tile.Bounds()
	if tb.Dx() == cell.Dx() && tb.Dy() == cell.Dy() {
		draw.Draw(dst, cell, tile, tb.Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(dst, cell, tile, tb, draw.Src, nil)
}

// regionAverage is the per-cell target color: a channel-wise mean over a
// strided sample of the region, at most 8 sample points per axis.
func regionAverage(src image.Image, region image.Rectangle) colorutils.RGB {
	step := region.Dx() / 8
	if step < 1 {
		step = 1
	}

	var r, g, b, n uint64
	for y := region.Min.Y; y < region.Max.Y; y += step {
		for x := region.Min.X; x < region.Max.X; x += step {
			cr, cg, cb, _ := src.At(x, y).RGBA()
			r += uint64(cr >> 8)
			g += uint64(cg >> 8)
			b += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return colorutils.RGB{}
	}
	return colorutils.RGB{
		R: colorutils.RoundChannel(float64(r) / float64(n)),
		G: colorutils.RoundChannel(float64(g) / float64(n)),
		B: colorutils.RoundChannel(float64(b) / float64(n)),
	}
}
