/*
Test utils for the core pkg. Contains prefab tilemap indexes plus
synthetic images, so collaborator tests (corpus/render/stream/api) don't
each reinvent engine setup.
*/
package testutils

import (
	"fmt"
	"image"
	"image/color"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
)

// Abbreviations.
type Element = tilemap.Element
type BigBucket = tilemap.BigBucket

type RGB = colorutils.RGB

// NewIndexArgs is a loose engine config that accepts any small palette:
// wide routing threshold, no merging pressure.
var NewIndexArgs = tilemap.NewBigBucketArgs{
	DistanceThreshold: 30,
	MinBucketSize:     1,
	MaxBucketSize:     256,
	MergeThreshold:    30,
}

// NewIndex creates an empty BigBucket prefab.
func NewIndex() *BigBucket {
	bb, err := tilemap.NewBigBucket(NewIndexArgs)
	if err != nil {
		panic("couldn't setup BigBucket for test")
	}
	return bb
}

// NewLoadedIndex creates a balanced BigBucket prefab holding one element
// per palette color. With tileSize > 0 each element carries a uniform
// tileSize x tileSize image of its color; with 0 the handles are nil.
func NewLoadedIndex(tileSize int, palette ...color.RGBA) *BigBucket {
	bb := NewIndex()
	for _, c := range palette {
		var img image.Image
		if tileSize > 0 {
			img = Uniform(c, tileSize, tileSize)
		}
		if _, err := bb.AddElement(tilemap.NewElement(c.R, c.G, c.B, img)); err != nil {
			panic(fmt.Sprintf("couldn't load element %v", c))
		}
	}
	if err := bb.Balance(); err != nil {
		panic("couldn't balance test index")
	}
	return bb
}

// Palette is a set of mutually distant colors; with NewIndexArgs each
// lands in its own bucket.
func Palette() []color.RGBA {
	return []color.RGBA{
		{R: 250, G: 5, B: 5, A: 255},
		{R: 5, G: 250, B: 5, A: 255},
		{R: 5, G: 5, B: 250, A: 255},
		{R: 250, G: 250, B: 5, A: 255},
	}
}

// Uniform returns a w x h image filled with one color.
func Uniform(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Blocks builds an image out of cell x cell blocks, one block per entry.
// Outer slice is rows, inner is columns; all rows must be equally long.
func Blocks(cells [][]color.RGBA, cell int) *image.RGBA {
	rows := len(cells)
	if rows == 0 {
		panic("no block rows")
	}
	cols := len(cells[0])

	img := image.NewRGBA(image.Rect(0, 0, cols*cell, rows*cell))
	for row := 0; row < rows; row++ {
		if len(cells[row]) != cols {
			panic("ragged block rows")
		}
		for col := 0; col < cols; col++ {
			for y := row * cell; y < (row+1)*cell; y++ {
				for x := col * cell; x < (col+1)*cell; x++ {
					img.SetRGBA(x, y, cells[row][col])
				}
			}
		}
	}
	return img
}
