/*
This file contains the Bucket type: a set of elements with similar average
color. Buckets don't hold elements directly, they hold element ids into the
index's arena (as roaring bitmaps). Element moves during balancing are then
just bitmap surgery, with no ambiguity about who owns what.

*/

package tilemap

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
)

// repeatCeiling caps how often one element is preferred in a row before
// alternatives get a turn (see Bucket.Closest).
const repeatCeiling = 3

// Bucket is an unordered set of elements with similar average color. It
// caches the component-wise mean of its members' colors and keeps that
// cache consistent on every mutation. A bucket is never empty: every
// constructor requires at least one member.
type Bucket struct {
	arena *arena
	ids   *roaring.Bitmap
	avg   colorutils.RGB
}

// newBucket creates a bucket around a single seed element; the average is
// simply that element's color.
func newBucket(a *arena, seedID uint32) *Bucket {
	b := Bucket{arena: a, ids: roaring.BitmapOf(seedID)}
	b.avg = a.at(seedID).color
	return &b
}

// newBucketFromBitmap creates a bucket from an id set, computing the
// average from all members. ok=false if the set is empty.
func newBucketFromBitmap(a *arena, ids *roaring.Bitmap) (*Bucket, bool) {
	if ids.IsEmpty() {
		return nil, false
	}
	b := Bucket{arena: a, ids: ids}
	b.recompute()
	return &b, true
}

func newBucketFromIDs(a *arena, ids []uint32) (*Bucket, bool) {
	return newBucketFromBitmap(a, roaring.BitmapOf(ids...))
}

// colorGenerator iterates the colors of all member elements, ascending by
// id, which is insertion order.
func (b *Bucket) colorGenerator() func() (colorutils.RGB, bool) {
	it := b.ids.Iterator()
	return func() (colorutils.RGB, bool) {
		if !it.HasNext() {
			return colorutils.RGB{}, false
		}
		return b.arena.at(it.Next()).color, true
	}
}

// recompute refreshes the cached average from current membership. All
// construction and mutation paths go through here, so the cache can't be
// observed in an inconsistent state.
func (b *Bucket) recompute() {
	if avg, ok := colorutils.Mean(b.colorGenerator()); ok {
		b.avg = avg
	}
}

// add inserts an element id and refreshes the average. Adding an id that
// is already a member is a no-op.
func (b *Bucket) add(id uint32) {
	if !b.ids.CheckedAdd(id) {
		return
	}
	b.recompute()
}

// Avg is the cached component-wise mean of all member colors, rounded to
// nearest integer per channel.
func (b *Bucket) Avg() colorutils.RGB { return b.avg }

func (b *Bucket) Len() int { return int(b.ids.GetCardinality()) }

// IDs lists member element ids in insertion order. Mostly for diagnostics.
func (b *Bucket) IDs() []uint32 { return b.ids.ToArray() }

// Closest returns the member element nearest to 'target' in euclidean
// color distance, with a twist for repeat avoidance: a strictly closer
// candidate only takes over as best if its usage count is below
// repeatCeiling, or below the current best's count. A candidate rejected
// on usage has its count decremented as a penalty for being passed over,
// which makes it pickable again after a few more queries. The returned
// element's count is incremented. Ties keep the first-seen element.
//
// Without this, the single closest image in a sparse bucket would be
// replayed on every matching tile and the output would look stamped.
func (b *Bucket) Closest(target colorutils.RGB) (*Element, error) {
	if b.ids.IsEmpty() {
		return nil, ErrEmptyBucket
	}

	var best *Element
	bestDist := math.MaxFloat64

	it := b.ids.Iterator()
	for it.HasNext() {
		e := b.arena.at(it.Next())
		d := colorutils.Distance(e.color, target)
		if d >= bestDist {
			continue
		}
		if e.uses < repeatCeiling || (best != nil && e.uses < best.uses) {
			best = e
			bestDist = d
			continue
		}
		e.uses--
	}

	// Every candidate was rejected on usage. Fall back to a plain nearest
	// scan so a non-empty bucket always answers; the penalties applied
	// above stand.
	if best == nil {
		it := b.ids.Iterator()
		for it.HasNext() {
			e := b.arena.at(it.Next())
			if d := colorutils.Distance(e.color, target); d < bestDist {
				best = e
				bestDist = d
			}
		}
	}

	best.uses++
	return best, nil
}
