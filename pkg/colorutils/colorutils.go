/*
This file contains the RGB color triple used across the project, plus a few
helpers for comparing and combining colors (euclidean distance and means).

*/

package colorutils

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB is a color with 8-bit channels. It is the only color form used
// internally; collaborators squash raw pixel data down to this before
// anything else happens.
type RGB struct {
	R, G, B uint8
}

// Distance finds the euclidean distance between two colors. Channel
// differences are squared, summed, then the sum is square-rooted.
// Channel diffs are bounded by 255 so overflow isn't a concern.
func Distance(c1, c2 RGB) float64 {
	dr := float64(c1.R) - float64(c2.R)
	dg := float64(c1.G) - float64(c2.G)
	db := float64(c1.B) - float64(c2.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Mean finds the component-wise mean of all colors yielded by the generator
// (bool=false signals end of iterable), rounded to nearest integer per
// channel. The bool return is false if the generator yields nothing.
func Mean(generator func() (RGB, bool)) (RGB, bool) {
	c, cont := generator()
	if !cont {
		return RGB{}, false
	}

	var r, g, b, n uint64
	for cont {
		r += uint64(c.R)
		g += uint64(c.G)
		b += uint64(c.B)
		n++
		c, cont = generator()
	}
	return RGB{
		R: RoundChannel(float64(r) / float64(n)),
		G: RoundChannel(float64(g) / float64(n)),
		B: RoundChannel(float64(b) / float64(n)),
	}, true
}

// RoundChannel rounds a channel value to the nearest integer, clamped
// into the 8-bit range.
func RoundChannel(v float64) uint8 {
	r := math.Round(v)
	if r > 255 {
		r = 255
	}
	if r < 0 {
		r = 0
	}
	return uint8(r)
}

// Hex renders a color as '#rrggbb', for logs and diagnostics.
func (c RGB) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}
