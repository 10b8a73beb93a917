/*
This file contains the one-shot balancing pass for BigBucket. Load order
shapes the initial clustering (see AddElement in bigbucket.go), which can
leave some buckets oversized and others tiny. Balance runs once after
load: oversized buckets are split into near-even parts, then undersized
buckets with similar averages are merged. Both passes are single sweeps,
not fixed-point loops; a bucket created by a split or merge is not itself
re-examined in the same call, so a merged bucket may legitimately end up
below the min size or above the max.

*/

package tilemap

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Balance runs the split+merge pass using the sizes and thresholds fixed
// at construction. It runs exactly once; a second call errors. From that
// point on bucket identities are frozen and AddElement is rejected.
func (bb *BigBucket) Balance() error {
	if bb.balanced {
		return ErrBalanced
	}
	bb.balanced = true
	bb.splitOversized()
	bb.mergeUndersized()
	return nil
}

// splitOversized replaces every bucket larger than the max size with its
// split parts. The parts take the original bucket's position in the
// index, ordered by their members' insertion order.
func (bb *BigBucket) splitOversized() {
	next := make([]*Bucket, 0, len(bb.Buckets))
	for _, b := range bb.Buckets {
		if b.Len() <= bb.maxBucketSize {
			next = append(next, b)
			continue
		}
		next = append(next, bb.splitBucket(b)...)
	}
	bb.Buckets = next
}

// splitBucket partitions one oversized bucket into ceil(size/max) new
// buckets, each no larger than max.
func (bb *BigBucket) splitBucket(b *Bucket) []*Bucket {
	splits := (b.Len() + bb.maxBucketSize - 1) / bb.maxBucketSize
	if bb.splitStyle == SplitKMeans {
		if res, ok := bb.splitBucketKMeans(b, splits); ok {
			return res
		}
		// Partition failed, contiguous slicing below still applies.
	}
	return bb.splitBucketContiguous(b, splits)
}

// splitBucketContiguous slices the member ids (ascending id order, which
// is insertion order) into 'splits' contiguous near-even runs. Sizes
// differ by at most one, with the larger runs last; splitting 100 ids
// into 3 gives runs of 33/33/34. No run can exceed the max size since
// splits = ceil(size/max).
func (bb *BigBucket) splitBucketContiguous(b *Bucket, splits int) []*Bucket {
	ids := b.ids.ToArray()
	res := make([]*Bucket, 0, splits)

	base := len(ids) / splits
	rem := len(ids) % splits
	start := 0
	for i := 0; i < splits; i++ {
		size := base
		if i >= splits-rem {
			size++
		}
		if nb, ok := newBucketFromIDs(bb.arena, ids[start:start+size]); ok {
			res = append(res, nb)
		}
		start += size
	}
	return res
}

// colorObservation lets the kmeans library cluster member colors while
// keeping hold of the element ids they belong to.
type colorObservation struct {
	id uint32
	c  colorutils.RGB
}

func (o colorObservation) Coordinates() clusters.Coordinates {
	return clusters.Coordinates{float64(o.c.R), float64(o.c.G), float64(o.c.B)}
}

func (o colorObservation) Distance(point clusters.Coordinates) float64 {
	dr := float64(o.c.R) - point[0]
	dg := float64(o.c.G) - point[1]
	db := float64(o.c.B) - point[2]
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// splitBucketKMeans partitions one oversized bucket into 'splits' color
// clusters instead of insertion-order slices. Empty clusters are dropped,
// and a cluster that still exceeds the max size is re-sliced contiguously
// so the size ceiling holds for this style too. ok=false means the
// partition failed and the caller should fall back to contiguous slicing.
func (bb *BigBucket) splitBucketKMeans(b *Bucket, splits int) ([]*Bucket, bool) {
	obs := make(clusters.Observations, 0, b.Len())
	it := b.ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		obs = append(obs, colorObservation{id: id, c: bb.arena.at(id).color})
	}

	cls, err := kmeans.New().Partition(obs, splits)
	if err != nil {
		return nil, false
	}

	res := make([]*Bucket, 0, len(cls))
	for _, cl := range cls {
		ids := make([]uint32, 0, len(cl.Observations))
		for _, o := range cl.Observations {
			ids = append(ids, o.(colorObservation).id)
		}
		nb, ok := newBucketFromIDs(bb.arena, ids)
		if !ok {
			continue
		}
		if nb.Len() > bb.maxBucketSize {
			over := (nb.Len() + bb.maxBucketSize - 1) / bb.maxBucketSize
			res = append(res, bb.splitBucketContiguous(nb, over)...)
			continue
		}
		res = append(res, nb)
	}
	if len(res) == 0 {
		return nil, false
	}
	return res, true
}

// mergeUndersized collects buckets below the min size (in index order)
// and greedily merges each still-unmerged candidate with every other
// unmerged candidate whose average is within the merge threshold OF THE
// SEED -- distances are not checked pairwise within the group. Combined
// buckets are appended after the survivors and never re-examined in the
// same call.
func (bb *BigBucket) mergeUndersized() {
	cands := make([]int, 0, len(bb.Buckets))
	for i, b := range bb.Buckets {
		if b.Len() < bb.minBucketSize {
			cands = append(cands, i)
		}
	}

	taken := make(map[int]bool, len(cands))
	combined := make([]*Bucket, 0)

	for ci, i := range cands {
		if taken[i] {
			continue
		}
		seed := bb.Buckets[i]

		group := []*roaring.Bitmap{seed.ids}
		for _, j := range cands[ci+1:] {
			if taken[j] {
				continue
			}
			if colorutils.Distance(seed.avg, bb.Buckets[j].avg) <= bb.mergeThreshold {
				group = append(group, bb.Buckets[j].ids)
				taken[j] = true
			}
		}
		// Nothing near enough; the seed stays as it is, even if tiny.
		if len(group) == 1 {
			continue
		}
		taken[i] = true
		if nb, ok := newBucketFromBitmap(bb.arena, roaring.FastOr(group...)); ok {
			combined = append(combined, nb)
		}
	}

	if len(combined) == 0 {
		return
	}

	next := make([]*Bucket, 0, len(bb.Buckets))
	for i, b := range bb.Buckets {
		if !taken[i] {
			next = append(next, b)
		}
	}
	bb.Buckets = append(next, combined...)
}
