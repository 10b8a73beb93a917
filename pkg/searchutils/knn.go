/*
This file contains linear k-nearest searching over colors. The main
implementation is KNearestBrute(...), while the other exported funcs
(below it) are convenience funcs/prefabs which configure KNearestBrute.

*/

package searchutils

import (
	"math"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
)

// Internal type for tracking searched elements that are best.
type resultItem struct {
	// The search funcs essentially operate on iterables (currently
	// generators) and return a slice of indexes which represent
	// elements in those iterables. This var represents those indexes.
	index int
	// Used in search funcs to keep track of color relevance, i.e the
	// euclidean distance to the search target.
	score float64
	// Used as a signal for whether or not the instance of resultItem
	// is actually used and not just initialised.
	set bool
}

// bubble inserts the 'insertee' into 'items' in an ascending ordered manner
// (in place), without changing the length of 'items' (i.e a value will be
// lost). Note: only works as expected if the 'items' slice is already sorted.
// The comparison is a strict less-than, so on equal scores the already-placed
// item keeps its slot -- that is what gives first-seen tie-breaking.
//		Example(0, [1,2,3]) -> [0,1,2]
func bubble(insertee *resultItem, items []resultItem) {
	for i := 0; i < len(items); i++ {
		// Clarification: '|| !items[i].set' specifies that an inactive
		// slot can always be taken.
		if insertee.score < items[i].score || !items[i].set {
			*insertee, items[i] = items[i], *insertee
		}
	}
}

// resItems2Indexes simply converts a slice of resultItems to a slice of contained index values.
func resItems2Indexes(items []resultItem) []int {
	res := make([]int, 0, len(items))
	for i := 0; i < len(items); i++ {
		if items[i].set {
			res = append(res, items[i].index)
		}
	}
	return res
}

// KNearestArgs contain arguments for KNearestBrute. All args must be specified.
type KNearestArgs struct {
	// What the neighbours must be near to.
	TargetColor colorutils.RGB
	// Intended to be a generator which returns all candidate colors that
	// TargetColor will be compared to (bool=false signals end of iterable).
	// A generator is used because it makes the search funcs work over
	// whatever actually stores the colors, without copying into a slice.
	ColorPoolGenerator func() (colorutils.RGB, bool)
	// The K in k-nearest.
	K int
}

// KNearestBrute is a general-purpose linear search for finding the k nearest
// neighbours of a color, returning their indexes (into the generator order),
// nearest first. See KNearestArgs (accepted argument) for more info.
func KNearestBrute(args KNearestArgs) []int {
	res := make([]resultItem, args.K)
	// Apply worst score to all resultItems.
	for i := 0; i < args.K; i++ {
		res[i].score = math.MaxFloat64
	}
	i := 0
	for {
		// Next color.
		c, cont := args.ColorPoolGenerator()
		if !cont {
			break
		}
		// Evaluate inclusion of current color.
		newSlot := &resultItem{i, colorutils.Distance(args.TargetColor, c), true}
		bubble(newSlot, res)
		i++
	}
	return resItems2Indexes(res)
}

// KNearest finds the 'k' nearest neighbours of 'targetColor' using euclidean
// distance. All candidates are given by 'colorPoolGenerator' (bool=false
// signals stop). The return is a slice of indexes referencing the nearest
// neighbours, nearest first.
func KNearest(targetColor colorutils.RGB, colorPoolGenerator func() (colorutils.RGB, bool), k int) []int {
	return KNearestBrute(KNearestArgs{
		TargetColor:        targetColor,
		ColorPoolGenerator: colorPoolGenerator,
		K:                  k,
	})
}

// Nearest is a convenience for the k=1 case. The bool return is false if
// the generator yielded no candidates at all.
func Nearest(targetColor colorutils.RGB, colorPoolGenerator func() (colorutils.RGB, bool)) (int, bool) {
	indexes := KNearest(targetColor, colorPoolGenerator, 1)
	if len(indexes) == 0 {
		return 0, false
	}
	return indexes[0], true
}
