package bound

import (
	"cmp"
	"slices"
	"sort"
)

// point is a (progress gain, quality gain) pair reachable from a relaxed state.
type point struct {
	progress uint32
	quality  uint32
}

// paretoFront reduces pts to its non-dominated members, ordered by ascending
// progress (and so strictly descending quality). pts is reordered in place.
func paretoFront(pts []point) []point {
	slices.SortFunc(pts, func(a, b point) int {
		if c := cmp.Compare(b.progress, a.progress); c != 0 {
			return c
		}
		return cmp.Compare(b.quality, a.quality)
	})
	out := make([]point, 0, len(pts))
	for i, p := range pts {
		if i == 0 || p.quality > out[len(out)-1].quality {
			out = append(out, p)
		}
	}
	slices.Reverse(out)
	return out
}

// bestQuality returns the largest quality gain among points whose progress gain
// covers missing.
func bestQuality(front []point, missing uint32) (uint32, bool) {
	i := sort.Search(len(front), func(i int) bool { return front[i].progress >= missing })
	if i == len(front) {
		return 0, false
	}
	return front[i].quality, true
}
