package corpus

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	assert.NotEqual(t, cacheKey("a", 8), cacheKey("a", 16))
	assert.NotEqual(t, cacheKey("a", 8), cacheKey("b", 8))
	assert.Equal(t, cacheKey("a", 8), cacheKey("a", 8))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	tile := uniform(color.RGBA{R: 1, G: 2, B: 3, A: 255}, 8, 8)
	require.NoError(t, c.Set(ctx, "k", tile))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, tile.Bounds(), got.Bounds())

	// Overwrites are allowed.
	require.NoError(t, c.Set(ctx, "k", uniform(color.RGBA{A: 255}, 4, 4)))
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Bounds().Dx())
}
