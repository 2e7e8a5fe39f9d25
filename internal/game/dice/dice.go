// Package dice provides the randomness abstraction shared by enemy action
// selection and parry window sampling.
package dice

// Source is the randomness provider for one encounter.
//
// A single Source is seeded once at battle start and shared by every consumer
// so that a fixed seed reproduces the whole encounter. Implementations are not
// required to be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
	// Float64 returns a random float64 in [0, 1).
	Float64() float64
}

// Lerp linearly interpolates between lo and hi by t.
//
// Postcondition: Returns lo when t == 0 and hi when t == 1.
func Lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*t
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
