package corpus

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniform returns a w x h image filled with one color.
func uniform(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func writeBytes(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func newTestIndex(t *testing.T, distanceThreshold float64) *tilemap.BigBucket {
	t.Helper()
	bb, err := tilemap.NewBigBucket(tilemap.NewBigBucketArgs{
		DistanceThreshold: distanceThreshold,
		MinBucketSize:     1,
		MaxBucketSize:     512,
		MergeThreshold:    1,
	})
	require.NoError(t, err)
	return bb
}

type stubSource struct {
	keys  []string
	fetch func(key string) (image.Image, error)
}

func (s stubSource) Keys(context.Context) ([]string, error) { return s.keys, nil }

func (s stubSource) Fetch(_ context.Context, key string) (image.Image, error) {
	return s.fetch(key)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (image.Image, error) {
	return nil, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, image.Image) error {
	return errors.New("cache down")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "r1.png", uniform(color.RGBA{R: 250, G: 10, B: 10, A: 255}, 24, 24))
	writePNG(t, dir, "r2.png", uniform(color.RGBA{R: 240, G: 5, B: 5, A: 255}, 24, 12))
	writePNG(t, dir, "r3.png", uniform(color.RGBA{R: 245, A: 255}, 12, 24))
	writePNG(t, dir, "b1.png", uniform(color.RGBA{R: 10, G: 10, B: 250, A: 255}, 24, 24))
	writePNG(t, dir, "b2.png", uniform(color.RGBA{R: 5, G: 5, B: 240, A: 255}, 24, 24))
	writePNG(t, dir, "b3.png", uniform(color.RGBA{B: 245, A: 255}, 24, 24))
	writeBytes(t, dir, "broken.jpg", []byte("not an image"))
	writeBytes(t, dir, "notes.txt", []byte("not listed at all"))

	idx := newTestIndex(t, 60)
	rep, err := Load(context.Background(), LoadArgs{
		Source:   DirSource{Dir: dir},
		Index:    idx,
		TileSize: 8,
		Workers:  4,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, rep.Loaded)
	assert.Equal(t, 1, rep.Skipped)
	assert.Greater(t, rep.Elapsed, time.Duration(0))
	assert.Equal(t, 6, idx.Len())

	// Two color families, far beyond the routing threshold from each
	// other, always end up as two buckets of three regardless of which
	// worker finished first.
	require.Len(t, idx.Buckets, 2)
	assert.Equal(t, 3, idx.Buckets[0].Len())
	assert.Equal(t, 3, idx.Buckets[1].Len())

	t.Run("query after balance", func(t *testing.T) {
		require.NoError(t, idx.Balance())
		e, err := idx.ClosestElement(colorutils.RGB{R: 255})
		require.NoError(t, err)
		assert.Greater(t, e.Color().R, uint8(200))
		require.NotNil(t, e.Img())
		b := e.Img().Bounds()
		assert.Equal(t, 8, b.Dx())
		assert.Equal(t, 8, b.Dy())
	})
}

func TestLoadChecksArgs(t *testing.T) {
	idx := newTestIndex(t, 10)
	src := stubSource{}

	_, err := Load(context.Background(), LoadArgs{Index: idx, TileSize: 8})
	assert.Error(t, err)

	_, err = Load(context.Background(), LoadArgs{Source: src, TileSize: 8})
	assert.Error(t, err)

	_, err = Load(context.Background(), LoadArgs{Source: src, Index: idx})
	assert.Error(t, err)
}

func TestLoadCanceled(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", uniform(color.RGBA{R: 200, A: 255}, 16, 16))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, LoadArgs{
		Source:   DirSource{Dir: dir},
		Index:    newTestIndex(t, 10),
		TileSize: 8,
	})
	assert.Error(t, err)
}

func TestLoadBalancedIndex(t *testing.T) {
	idx := newTestIndex(t, 10)
	_, err := idx.AddElement(tilemap.NewElement(1, 2, 3, nil))
	require.NoError(t, err)
	require.NoError(t, idx.Balance())

	src := stubSource{
		keys: []string{"a"},
		fetch: func(string) (image.Image, error) {
			return uniform(color.RGBA{R: 9, A: 255}, 16, 16), nil
		},
	}
	_, err = Load(context.Background(), LoadArgs{Source: src, Index: idx, TileSize: 8})
	assert.ErrorIs(t, err, tilemap.ErrBalanced)
}

func TestLoadCacheDegrades(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", uniform(color.RGBA{R: 200, A: 255}, 16, 16))
	writePNG(t, dir, "b.png", uniform(color.RGBA{G: 200, A: 255}, 16, 16))

	idx := newTestIndex(t, 10)
	rep, err := Load(context.Background(), LoadArgs{
		Source:   DirSource{Dir: dir},
		Index:    idx,
		TileSize: 8,
		Workers:  2,
		Cache:    failingCache{},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Loaded)
	assert.Equal(t, 0, rep.Skipped)
}

func TestLoadServesFromCache(t *testing.T) {
	cache := NewMemoryCache()
	tile := uniform(color.RGBA{R: 255, A: 255}, 8, 8)
	require.NoError(t, cache.Set(context.Background(), cacheKey("a", 8), tile))

	// The source can list but not fetch; a hit must not touch Fetch.
	src := stubSource{
		keys: []string{"a"},
		fetch: func(string) (image.Image, error) {
			return nil, errors.New("source down")
		},
	}

	idx := newTestIndex(t, 10)
	rep, err := Load(context.Background(), LoadArgs{
		Source:   src,
		Index:    idx,
		TileSize: 8,
		Cache:    cache,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Loaded)
	assert.Equal(t, 0, rep.Skipped)

	e, err := idx.ClosestElement(colorutils.RGB{R: 255})
	require.NoError(t, err)
	assert.Equal(t, colorutils.RGB{R: 255}, e.Color())
}

func TestLoadPopulatesCache(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", uniform(color.RGBA{B: 123, A: 255}, 16, 16))

	cache := NewMemoryCache()
	_, err := Load(context.Background(), LoadArgs{
		Source:   DirSource{Dir: dir},
		Index:    newTestIndex(t, 10),
		TileSize: 8,
		Cache:    cache,
	})
	require.NoError(t, err)

	tile, err := cache.Get(context.Background(), cacheKey(path, 8))
	require.NoError(t, err)
	assert.Equal(t, 8, tile.Bounds().Dx())
}
