package exam

import "math/rand/v2"

// Shuffle returns a uniformly permuted copy of in using Fisher-Yates.
// The input slice is left untouched.
func Shuffle[T any](in []T) []T {
	return shuffle(in, rand.IntN)
}

// ShuffleWith is Shuffle driven by an explicit source.
func ShuffleWith[T any](r *rand.Rand, in []T) []T {
	return shuffle(in, r.IntN)
}

func shuffle[T any](in []T, intN func(int) int) []T {
	out := make([]T, len(in))
	copy(out, in)

	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Sample returns n elements of in chosen uniformly without replacement.
func Sample[T any](r *rand.Rand, in []T, n int) []T {
	if n > len(in) {
		n = len(in)
	}
	if r == nil {
		return Shuffle(in)[:n]
	}
	return ShuffleWith(r, in)[:n]
}
