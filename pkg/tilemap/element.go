package tilemap

import (
	"image"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
)

// Element ties one candidate tile image to its precomputed average color
// and a usage counter. The color never changes after construction, and the
// usage counter is only ever touched by the bucket that currently owns the
// element.
type Element struct {
	id    uint32
	color colorutils.RGB
	img   image.Image
	uses  int
}

// NewElement wraps the average color of one candidate image plus a handle
// to the image itself. The handle is only carried, never inspected; it can
// be nil when nothing needs to be painted (as in most tests).
func NewElement(r, g, b uint8, img image.Image) *Element {
	return &Element{color: colorutils.RGB{R: r, G: g, B: b}, img: img}
}

// ID is the arena id assigned when the element was added to an index.
func (e *Element) ID() uint32 { return e.id }

func (e *Element) Color() colorutils.RGB { return e.color }

func (e *Element) Img() image.Image { return e.img }

// Uses reports how often the element has been handed out, minus the
// penalties it collected for being passed over.
func (e *Element) Uses() int { return e.uses }

// arena owns every element of an index, addressed by a stable id. Ids are
// handed out sequentially, so ascending id order is insertion order --
// buckets rely on that for iteration.
type arena struct {
	elems []*Element
}

func newArena(capHint int) *arena {
	if capHint < 0 {
		capHint = 0
	}
	return &arena{elems: make([]*Element, 0, capHint)}
}

func (a *arena) put(e *Element) uint32 {
	id := uint32(len(a.elems))
	e.id = id
	a.elems = append(a.elems, e)
	return id
}

func (a *arena) at(id uint32) *Element { return a.elems[id] }

func (a *arena) size() int { return len(a.elems) }
