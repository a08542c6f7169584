package detector

import "gonum.org/v1/gonum/mat"

// streakRange is an inclusive range of candidate arc lengths.
type streakRange struct {
	min, max int
}

var (
	stage3Range = streakRange{min: 3, max: 6}
	stage4Range = streakRange{min: 4, max: 8}
)

// hasStreak reports whether the ring c around (x, y) contains a contiguous arc
// whose length lies in r and whose every timestamp is strictly newer than every
// timestamp outside it. The arc's first point must not be older than its
// predecessor and its last point must not be older than its successor.
//
// (x, y) must be at least maxRadius away from every grid edge.
func hasStreak(grid *mat.Dense, c circle, x, y int, r streakRange) bool {
	n := len(c)

	// The grid is not mutated while the ring is evaluated, so sample it once.
	var buf [circle4Len]float64
	ts := buf[:n]
	for k, o := range c {
		ts[k] = grid.At(y+o.dy, x+o.dx)
	}
	at := func(k int) float64 { return ts[k%n] }

	for i := 0; i < n; i++ {
		for l := r.min; l <= r.max; l++ {
			if at(i) < at(i+n-1) {
				continue
			}
			if at(i+l-1) < at(i+l) {
				continue
			}

			minT := at(i)
			for j := 1; j < l; j++ {
				if tj := at(i + j); tj < minT {
					minT = tj
				}
			}

			dominated := true
			for j := l; j < n; j++ {
				if at(i+j) >= minT {
					dominated = false
					break
				}
			}
			if dominated {
				return true
			}
		}
	}
	return false
}
