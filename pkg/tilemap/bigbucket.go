/*
This file contains the BigBucket type: the top-level index that owns the
element arena and all buckets. It routes elements into buckets at load
time and answers closest-element queries in two stages (closest bucket,
then that bucket's closest element), so query cost depends on the bucket
count and one bucket's size, not on the corpus size.

The index is built for single-threaded use: load everything, balance once
(see balance.go), then query. Callers that query from multiple goroutines
must serialize externally, since every query mutates usage counters.

*/

package tilemap

import (
	"errors"
	"fmt"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/bokononistmonkey/Mosaic/pkg/searchutils"
)

var (
	// ErrEmptyIndex signals a query against an index with no elements.
	ErrEmptyIndex = errors.New("tilemap: query on empty index")
	// ErrEmptyBucket signals a query against an empty bucket. Buckets are
	// never constructed empty, so seeing this means the balancing logic
	// broke an invariant -- it is deliberately distinct from ErrEmptyIndex.
	ErrEmptyBucket = errors.New("tilemap: bucket has no elements")
	// ErrBalanced signals a load-phase operation after Balance has run.
	ErrBalanced = errors.New("tilemap: index already balanced")
	// ErrBadConfig wraps all construction-time validation failures.
	ErrBadConfig = errors.New("tilemap: invalid index config")
)

// SplitStyle selects how Balance partitions oversized buckets.
type SplitStyle int

const (
	// SplitContiguous slices an oversized bucket's elements by insertion
	// order. Cheap and deterministic; slices aren't color-homogeneous.
	SplitContiguous SplitStyle = iota
	// SplitKMeans clusters an oversized bucket's elements by color before
	// rebucketing them. Produces tighter buckets at the cost of speed and
	// determinism, so it is opt-in.
	SplitKMeans
)

// NewBigBucketArgs contain arguments for NewBigBucket.
type NewBigBucketArgs struct {
	// DistanceThreshold is the max euclidean color distance at which a new
	// element still joins its nearest existing bucket; anything further
	// away opens a new bucket. Must be positive.
	DistanceThreshold float64
	// MinBucketSize is the size below which a bucket becomes a merge
	// candidate during Balance. Must be at least 1 and not above
	// MaxBucketSize.
	MinBucketSize int
	// MaxBucketSize is the size above which a bucket is split during
	// Balance. Must be at least 1.
	MaxBucketSize int
	// MergeThreshold is the max euclidean distance between two undersized
	// buckets' averages for them to be combined during Balance. Typically
	// larger than DistanceThreshold. Must be positive.
	MergeThreshold float64
	// SplitStyle selects the Balance split strategy. Zero value is
	// SplitContiguous.
	SplitStyle SplitStyle
	// InitCap hints the expected corpus size. Optional.
	InitCap int
}

func (args *NewBigBucketArgs) check() error {
	if args.DistanceThreshold <= 0 {
		return fmt.Errorf("%w: distance threshold %v is not positive", ErrBadConfig, args.DistanceThreshold)
	}
	if args.MergeThreshold <= 0 {
		return fmt.Errorf("%w: merge threshold %v is not positive", ErrBadConfig, args.MergeThreshold)
	}
	if args.MinBucketSize < 1 {
		return fmt.Errorf("%w: min bucket size %v is below 1", ErrBadConfig, args.MinBucketSize)
	}
	if args.MinBucketSize > args.MaxBucketSize {
		return fmt.Errorf("%w: min bucket size %v exceeds max %v", ErrBadConfig, args.MinBucketSize, args.MaxBucketSize)
	}
	if args.SplitStyle != SplitContiguous && args.SplitStyle != SplitKMeans {
		return fmt.Errorf("%w: unknown split style %v", ErrBadConfig, args.SplitStyle)
	}
	return nil
}

// BigBucket is the top-level index. See the file comment for the intended
// load -> balance -> query lifecycle.
type BigBucket struct {
	// Buckets is exposed for diagnostics and tests; treat as read-only.
	Buckets []*Bucket

	arena             *arena
	distanceThreshold float64
	minBucketSize     int
	maxBucketSize     int
	mergeThreshold    float64
	splitStyle        SplitStyle
	balanced          bool
}

// NewBigBucket creates an empty index. Configuration is validated here
// and fixed for the index's lifetime.
func NewBigBucket(args NewBigBucketArgs) (*BigBucket, error) {
	if err := args.check(); err != nil {
		return nil, err
	}
	return &BigBucket{
		Buckets:           make([]*Bucket, 0, 10),
		arena:             newArena(args.InitCap),
		distanceThreshold: args.DistanceThreshold,
		minBucketSize:     args.MinBucketSize,
		maxBucketSize:     args.MaxBucketSize,
		mergeThreshold:    args.MergeThreshold,
		splitStyle:        args.SplitStyle,
	}, nil
}

func (bb *BigBucket) bucketAvgGenerator() func() (colorutils.RGB, bool) {
	i := 0
	return func() (colorutils.RGB, bool) {
		if i >= len(bb.Buckets) {
			return colorutils.RGB{}, false
		}
		i++
		return bb.Buckets[i-1].avg, true
	}
}

// AddElement routes a new element into the nearest bucket, or into a brand
// new singleton bucket if nothing is within the distance threshold. This
// is a single greedy pass: earlier placements are never revisited, so
// insertion order shapes the final clustering. Returns the arena id the
// element was assigned. Errors after Balance has run, since bucket
// identities are frozen from that point on.
func (bb *BigBucket) AddElement(e *Element) (uint32, error) {
	if e == nil {
		return 0, errors.New("tilemap: nil element")
	}
	if bb.balanced {
		return 0, ErrBalanced
	}

	id := bb.arena.put(e)
	if len(bb.Buckets) == 0 {
		bb.Buckets = append(bb.Buckets, newBucket(bb.arena, id))
		return id, nil
	}

	i, ok := searchutils.Nearest(e.color, bb.bucketAvgGenerator())
	if !ok || colorutils.Distance(e.color, bb.Buckets[i].avg) > bb.distanceThreshold {
		bb.Buckets = append(bb.Buckets, newBucket(bb.arena, id))
		return id, nil
	}
	bb.Buckets[i].add(id)
	return id, nil
}

// ClosestBucket scans all buckets and returns the one whose average is
// nearest to 'target'. Ties keep the first-seen bucket.
func (bb *BigBucket) ClosestBucket(target colorutils.RGB) (*Bucket, error) {
	if len(bb.Buckets) == 0 {
		return nil, ErrEmptyIndex
	}
	i, ok := searchutils.Nearest(target, bb.bucketAvgGenerator())
	if !ok {
		return nil, ErrEmptyIndex
	}
	return bb.Buckets[i], nil
}

// ClosestElement is the hot path: ClosestBucket, then that bucket's
// Closest. One call per output tile.
func (bb *BigBucket) ClosestElement(target colorutils.RGB) (*Element, error) {
	b, err := bb.ClosestBucket(target)
	if err != nil {
		return nil, err
	}
	return b.Closest(target)
}

// Len is the total element count across all buckets.
func (bb *BigBucket) Len() int { return bb.arena.size() }

// Balanced reports whether Balance has run.
func (bb *BigBucket) Balanced() bool { return bb.balanced }

// BucketSummary is one bucket's row in a Summary.
type BucketSummary struct {
	Avg  colorutils.RGB
	Hex  string
	Size int
}

// Summary is a read-only snapshot of index shape, for logs and the stats
// endpoint.
type Summary struct {
	Buckets  int
	Elements int
	Balanced bool
	Items    []BucketSummary
}

// Summarize reports bucket count, element count and per-bucket average
// color and size. No effect on state.
func (bb *BigBucket) Summarize() Summary {
	s := Summary{
		Buckets:  len(bb.Buckets),
		Elements: bb.arena.size(),
		Balanced: bb.balanced,
		Items:    make([]BucketSummary, len(bb.Buckets)),
	}
	for i, b := range bb.Buckets {
		s.Items[i] = BucketSummary{Avg: b.avg, Hex: b.avg.Hex(), Size: b.Len()}
	}
	return s
}
