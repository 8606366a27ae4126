package game

import "math/rand/v2"

// Source supplies uniformly distributed integers in the inclusive range [lo, hi].
// The default is an ordinary PRNG; tests pass a deterministic Source.
type Source interface {
	IntN(lo, hi int) int
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(lo, hi int) int

// IntN calls f(lo, hi).
func (f SourceFunc) IntN(lo, hi int) int { return f(lo, hi) }

// Fixed returns a Source that always yields n, clamped to the requested range.
func Fixed(n int) Source {
	return SourceFunc(func(lo, hi int) int {
		return min(max(n, lo), hi)
	})
}

type prngSource struct{}

func (prngSource) IntN(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rand.IntN(hi-lo+1)
}

// DefaultSource is the package-wide non-secure PRNG source.
var DefaultSource Source = prngSource{}
