package corpus

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "red.png", uniform(color.RGBA{R: 255, A: 255}, 32, 32))
	writePNG(t, dir, "blue.png", uniform(color.RGBA{B: 255, A: 255}, 16, 16))
	writeBytes(t, dir, "broken.jpg", []byte("jpg by extension only"))
	writeBytes(t, dir, "notes.txt", []byte("never a candidate"))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writePNG(t, sub, "nested.png", uniform(color.RGBA{G: 255, A: 255}, 16, 16))

	src := DirSource{Dir: dir}

	t.Run("keys", func(t *testing.T) {
		keys, err := src.Keys(context.Background())
		require.NoError(t, err)
		assert.Len(t, keys, 4)
		assert.Contains(t, keys, filepath.Join(dir, "red.png"))
		assert.Contains(t, keys, filepath.Join(dir, "broken.jpg"))
		assert.Contains(t, keys, filepath.Join(sub, "nested.png"))
		assert.NotContains(t, keys, filepath.Join(dir, "notes.txt"))
	})

	t.Run("fetch", func(t *testing.T) {
		img, err := src.Fetch(context.Background(), filepath.Join(dir, "red.png"))
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	})

	t.Run("fetch broken", func(t *testing.T) {
		_, err := src.Fetch(context.Background(), filepath.Join(dir, "broken.jpg"))
		assert.Error(t, err)
	})

	t.Run("fetch missing", func(t *testing.T) {
		_, err := src.Fetch(context.Background(), filepath.Join(dir, "nope.png"))
		assert.Error(t, err)
	})

	t.Run("missing dir", func(t *testing.T) {
		_, err := DirSource{Dir: filepath.Join(dir, "absent")}.Keys(context.Background())
		assert.Error(t, err)
	})
}
