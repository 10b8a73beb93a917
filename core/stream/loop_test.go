package stream

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bokononistmonkey/Mosaic/core/render"
	"github.com/bokononistmonkey/Mosaic/core/testutils"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.NewRenderer(render.NewRendererArgs{
		Index:    testutils.NewLoadedIndex(8, testutils.Palette()...),
		TileSize: 8,
		Workers:  2,
	})
	require.NoError(t, err)
	return r
}

// recorder captures TaskLogger calls.
type recorder struct {
	frames []int
	stats  []int
}

func (r *recorder) LogFrame(frame int, _ time.Duration)   { r.frames = append(r.frames, frame) }
func (r *recorder) LogStats(frame int, _ tilemap.Summary) { r.stats = append(r.stats, frame) }

type failSink struct{}

func (failSink) Publish(*render.Frame) error { return errors.New("sink down") }

func TestRunUntilEOF(t *testing.T) {
	dir := t.TempDir()
	var latest Latest
	rec := recorder{}

	cfg := LoopConfig{
		Source:     &SyntheticSource{W: 24, H: 16, Count: 4},
		Renderer:   newTestRenderer(t),
		Sinks:      []FrameSink{&latest, &PNGWriter{Dir: dir}},
		FPS:        1000,
		StatsEvery: 2,
		L:          &rec,
	}
	require.NoError(t, Run(context.Background(), &cfg))

	assert.Equal(t, 4, cfg.Counters().Frames)
	assert.Greater(t, cfg.Counters().LastRender, time.Duration(0))

	f, seq := latest.Frame()
	require.NotNil(t, f)
	assert.EqualValues(t, 4, seq)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	assert.Equal(t, []int{1, 2, 3, 4}, rec.frames)
	assert.Equal(t, []int{2, 4}, rec.stats)
}

func TestRunChecksConfig(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil))

	assert.Error(t, Run(context.Background(), &LoopConfig{
		Renderer: newTestRenderer(t),
	}))

	assert.Error(t, Run(context.Background(), &LoopConfig{
		Source: &SyntheticSource{W: 8, H: 8},
	}))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := LoopConfig{
		Source:   &SyntheticSource{W: 16, H: 16},
		Renderer: newTestRenderer(t),
		FPS:      500,
	}
	require.NoError(t, Run(ctx, &cfg))
	assert.Greater(t, cfg.Counters().Frames, 0)
}

func TestRunSinkError(t *testing.T) {
	err := Run(context.Background(), &LoopConfig{
		Source:   &SyntheticSource{W: 16, H: 16},
		Renderer: newTestRenderer(t),
		Sinks:    []FrameSink{failSink{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing")
}

func TestRunRenderError(t *testing.T) {
	// An empty index can't answer any cell query; the first frame must
	// abort the loop.
	r, err := render.NewRenderer(render.NewRendererArgs{
		Index:    testutils.NewIndex(),
		TileSize: 8,
	})
	require.NoError(t, err)

	err = Run(context.Background(), &LoopConfig{
		Source:   &SyntheticSource{W: 16, H: 16},
		Renderer: r,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, tilemap.ErrEmptyIndex)
}

func TestWithEvery(t *testing.T) {
	ran := []int{}
	for frame := 1; frame <= 6; frame++ {
		withEvery(frame, 2, func() { ran = append(ran, frame) })
	}
	assert.Equal(t, []int{2, 4, 6}, ran)

	withEvery(4, 0, func() { t.Fatal("cadence 0 must never run") })
}
