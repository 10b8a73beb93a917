package searchutils

import (
	"testing"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
)

func rgb(r, g, b uint8) colorutils.RGB {
	return colorutils.RGB{R: r, G: g, B: b}
}

func colorPoolGenerator(pool ...colorutils.RGB) func() (colorutils.RGB, bool) {
	i := 0
	return func() (colorutils.RGB, bool) {
		if i == len(pool) {
			return colorutils.RGB{}, false
		}
		i++
		return pool[i-1], true
	}
}

func TestBubble(t *testing.T) {
	insertee := resultItem{0, 0, true}
	res := []resultItem{
		{1, 1, true},
		{2, 2, true},
		{3, 3, true},
	}
	bubble(&insertee, res)
	if res[0].index != 0 || res[1].index != 1 || res[2].index != 2 {
		t.Errorf("unordered on bubble down: %v", res)
	}
}

func TestKNearest(t *testing.T) {
	pool := []colorutils.RGB{
		// Increasingly far from the target below.
		rgb(2, 2, 2),
		rgb(3, 3, 3),
		rgb(4, 4, 4),
	}
	res := KNearest(rgb(5, 5, 5), colorPoolGenerator(pool...), 2)
	t.Log(res)
	if res[0] != 2 || res[1] != 1 {
		t.Errorf("neighbours not in correct order: %v", res)
	}
}

func TestKNearestTie(t *testing.T) {
	pool := []colorutils.RGB{
		// Both are equally far from the target below; the
		// first-seen one should win.
		rgb(4, 4, 4),
		rgb(6, 6, 6),
	}
	res := KNearest(rgb(5, 5, 5), colorPoolGenerator(pool...), 1)
	if len(res) != 1 || res[0] != 0 {
		t.Errorf("tie didn't keep first-seen candidate: %v", res)
	}
}

func TestKNearestSmallPool(t *testing.T) {
	// k is bigger than the pool; result should only index what exists.
	res := KNearest(rgb(0, 0, 0), colorPoolGenerator(rgb(1, 1, 1)), 3)
	if len(res) != 1 || res[0] != 0 {
		t.Errorf("unexpected result for undersized pool: %v", res)
	}
}

func TestNearest(t *testing.T) {
	pool := []colorutils.RGB{
		rgb(100, 100, 100),
		rgb(9, 9, 9),
		rgb(200, 200, 200),
	}
	i, ok := Nearest(rgb(10, 10, 10), colorPoolGenerator(pool...))
	if !ok {
		t.Fatal("nearest signalled not ok for non-empty pool")
	}
	if i != 1 {
		t.Fatalf("incorrect nearest index: %v", i)
	}
}

func TestNearestEmptyPool(t *testing.T) {
	if _, ok := Nearest(rgb(0, 0, 0), colorPoolGenerator()); ok {
		t.Fatal("nearest signalled ok for empty pool")
	}
}
