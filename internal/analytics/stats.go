package analytics

import (
	"math"
	"sort"

	"bicdash/internal/core"
)

// meanCents is total/count rounded half away from zero; 0 when count is 0.
func meanCents(total int64, count int) core.Money {
	if count == 0 {
		return core.Money{}
	}
	return core.RoundCents(float64(total) / float64(count))
}

// medianCents sorts cents in place and interpolates the two middle values.
func medianCents(cents []int64) core.Money {
	n := len(cents)
	if n == 0 {
		return core.Money{}
	}
	sort.Slice(cents, func(i, j int) bool { return cents[i] < cents[j] })
	if n%2 == 1 {
		return core.Money{Cents: cents[n/2]}
	}
	return core.RoundCents(float64(cents[n/2-1]+cents[n/2]) / 2)
}

// pearson returns the sample correlation of xs and ys. ok is false with
// fewer than two points or zero variance on either side.
func pearson(xs, ys []float64) (r float64, ok bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return math.NaN(), false
	}
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/float64(n), sy/float64(n)
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN(), false
	}
	r = cov / math.Sqrt(vx*vy)
	// clamp rounding noise
	return math.Max(-1, math.Min(1, r)), true
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
