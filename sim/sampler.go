package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Sampler draws a non-negative duration at simulation time t.
// +Inf is a legal result and means "never" (e.g. no further arrivals).
// Implementations live in sim/dist.
type Sampler interface {
	Sample(t float64, rng *rand.Rand) float64
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(t float64, rng *rand.Rand) float64

// Sample implements Sampler.
func (f SamplerFunc) Sample(t float64, rng *rand.Rand) float64 {
	return f(t, rng)
}

// BaulkingFunc maps the occupancy seen by an arriving individual to the
// probability that it refuses to join.
type BaulkingFunc func(occupancy int) float64

// drawDuration samples s and rejects negative or NaN results.
func drawDuration(s Sampler, t float64, rng *rand.Rand, what string) (float64, error) {
	d := s.Sample(t, rng)
	if math.IsNaN(d) || d < 0 {
		return 0, fmt.Errorf("%s at t=%g: got %v: %w", what, t, d, ErrInvalidSample)
	}
	return d, nil
}

// drawBatchSize samples s and requires a finite non-negative integer.
func drawBatchSize(s Sampler, t float64, rng *rand.Rand) (int, error) {
	if s == nil {
		return 1, nil
	}
	b := s.Sample(t, rng)
	if math.IsNaN(b) || math.IsInf(b, 0) || b < 0 || b != math.Trunc(b) {
		return 0, fmt.Errorf("batch size at t=%g: got %v: %w", t, b, ErrInvalidBatchSize)
	}
	return int(b), nil
}
