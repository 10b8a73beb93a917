/*
Tile preparation: normalizing a candidate image into a square tile and
squashing a tile into the single color the index clusters on.
*/
package corpus

import (
	"errors"
	"image"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/disintegration/gift"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// AverageMode selects how a tile is reduced to one color.
type AverageMode int

const (
	// AverageMean is the channel-wise mean over a small thumbnail of
	// the tile. Cheap and stable; the default.
	AverageMean AverageMode = iota
	// AverageDominant is the center of the largest k-means color
	// cluster, which tracks the tile's dominant hue instead of washing
	// it out.
	AverageDominant
)

// Normalize center-crops an image to its largest inscribed square and
// scales it to size x size. A positive blurSigma applies a gaussian
// blur first, which softens noisy candidates.
func Normalize(img image.Image, size int, blurSigma float32) image.Image {
	if blurSigma > 0 {
		g := gift.New(gift.GaussianBlur(blurSigma))
		blurred := image.NewRGBA(g.Bounds(img.Bounds()))
		g.Draw(blurred, img)
		img = blurred
	}

	tile := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(tile, tile.Bounds(), img, maxSquareIn(img.Bounds()), draw.Src, nil)
	return tile
}

// maxSquareIn is the largest centered square that fits in r.
func maxSquareIn(r image.Rectangle) image.Rectangle {
	side := r.Dx()
	if r.Dy() < side {
		side = r.Dy()
	}
	off := image.Point{X: (r.Dx() - side) / 2, Y: (r.Dy() - side) / 2}
	return image.Rect(0, 0, side, side).Add(r.Min).Add(off)
}

func averageColor(tile image.Image, mode AverageMode) (colorutils.RGB, error) {
	switch mode {
	case AverageDominant:
		return dominantColor(tile)
	default:
		return meanColor(tile), nil
	}
}

// meanColor downsamples first so the sum touches a bounded pixel count
// no matter how large the tile is.
func meanColor(tile image.Image) colorutils.RGB {
	thumb := resize.Thumbnail(32, 32, tile, resize.NearestNeighbor)
	b := thumb.Bounds()

	var r, g, bl, n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := thumb.At(x, y).RGBA()
			r += uint64(cr >> 8)
			g += uint64(cg >> 8)
			bl += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return colorutils.RGB{}
	}
	return colorutils.RGB{
		R: colorutils.RoundChannel(float64(r) / float64(n)),
		G: colorutils.RoundChannel(float64(g) / float64(n)),
		B: colorutils.RoundChannel(float64(bl) / float64(n)),
	}
}

func dominantColor(tile image.Image) (colorutils.RGB, error) {
	items, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, tile)
	if err != nil {
		return colorutils.RGB{}, err
	}
	if len(items) == 0 {
		return colorutils.RGB{}, errors.New("no color clusters")
	}

	best := items[0]
	for _, item := range items[1:] {
		if item.Cnt > best.Cnt {
			best = item
		}
	}
	return colorutils.RGB{
		R: uint8(best.Color.R),
		G: uint8(best.Color.G),
		B: uint8(best.Color.B),
	}, nil
}
