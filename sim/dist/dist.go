// Package dist provides the service, arrival, patience and batch-size
// distributions used by sim networks. Every type implements sim.Sampler.
package dist

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/qsim/sim"
)

// ErrBadParameter is wrapped by every constructor error.
var ErrBadParameter = errors.New("invalid distribution parameter")

func badParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadParameter, fmt.Sprintf(format, args...))
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Deterministic always returns the same value.
type Deterministic struct {
	value float64
}

// NewDeterministic requires a finite non-negative value.
func NewDeterministic(value float64) (*Deterministic, error) {
	if !finite(value) || value < 0 {
		return nil, badParam("deterministic value %v", value)
	}
	return &Deterministic{value: value}, nil
}

func (d *Deterministic) Sample(float64, *rand.Rand) float64 { return d.value }

// Exponential has the given rate.
type Exponential struct {
	rate float64
}

// NewExponential requires a positive finite rate.
func NewExponential(rate float64) (*Exponential, error) {
	if !finite(rate) || rate <= 0 {
		return nil, badParam("exponential rate %v", rate)
	}
	return &Exponential{rate: rate}, nil
}

func (e *Exponential) Sample(_ float64, rng *rand.Rand) float64 {
	return distuv.Exponential{Rate: e.rate, Src: rng}.Rand()
}

// Uniform is continuous on [lower, upper].
type Uniform struct {
	lower, upper float64
}

// NewUniform requires 0 <= lower <= upper.
func NewUniform(lower, upper float64) (*Uniform, error) {
	if !finite(lower, upper) || lower < 0 || upper < lower {
		return nil, badParam("uniform bounds [%v, %v]", lower, upper)
	}
	return &Uniform{lower: lower, upper: upper}, nil
}

func (u *Uniform) Sample(_ float64, rng *rand.Rand) float64 {
	if u.lower == u.upper {
		return u.lower
	}
	return distuv.Uniform{Min: u.lower, Max: u.upper, Src: rng}.Rand()
}

// Triangular has support [lower, upper] and the given mode.
type Triangular struct {
	lower, mode, upper float64
}

// NewTriangular requires 0 <= lower <= mode <= upper and lower < upper.
func NewTriangular(lower, mode, upper float64) (*Triangular, error) {
	if !finite(lower, mode, upper) || lower < 0 || mode < lower || upper < mode || lower == upper {
		return nil, badParam("triangular (%v, %v, %v)", lower, mode, upper)
	}
	return &Triangular{lower: lower, mode: mode, upper: upper}, nil
}

func (t *Triangular) Sample(_ float64, rng *rand.Rand) float64 {
	return distuv.NewTriangle(t.lower, t.upper, t.mode, rng).Rand()
}

// Gamma has the given shape and scale.
type Gamma struct {
	shape, scale float64
}

// NewGamma requires positive shape and scale.
func NewGamma(shape, scale float64) (*Gamma, error) {
	if !finite(shape, scale) || shape <= 0 || scale <= 0 {
		return nil, badParam("gamma shape %v scale %v", shape, scale)
	}
	return &Gamma{shape: shape, scale: scale}, nil
}

func (g *Gamma) Sample(_ float64, rng *rand.Rand) float64 {
	return distuv.Gamma{Alpha: g.shape, Beta: 1 / g.scale, Src: rng}.Rand()
}

// Lognormal is exp(N(mu, sigma^2)).
type Lognormal struct {
	mu, sigma float64
}

// NewLognormal requires a positive sigma.
func NewLognormal(mu, sigma float64) (*Lognormal, error) {
	if !finite(mu, sigma) || sigma <= 0 {
		return nil, badParam("lognormal mu %v sigma %v", mu, sigma)
	}
	return &Lognormal{mu: mu, sigma: sigma}, nil
}

func (l *Lognormal) Sample(_ float64, rng *rand.Rand) float64 {
	return distuv.LogNormal{Mu: l.mu, Sigma: l.sigma, Src: rng}.Rand()
}

// Weibull has the given scale and shape.
type Weibull struct {
	scale, shape float64
}

// NewWeibull requires positive scale and shape.
func NewWeibull(scale, shape float64) (*Weibull, error) {
	if !finite(scale, shape) || scale <= 0 || shape <= 0 {
		return nil, badParam("weibull scale %v shape %v", scale, shape)
	}
	return &Weibull{scale: scale, shape: shape}, nil
}

func (w *Weibull) Sample(_ float64, rng *rand.Rand) float64 {
	return distuv.Weibull{Lambda: w.scale, K: w.shape, Src: rng}.Rand()
}

// TruncatedNormal is N(mean, sd^2) resampled until non-negative.
type TruncatedNormal struct {
	mean, sd float64
}

// NewTruncatedNormal requires a positive sd and a mean that leaves some mass
// above zero.
func NewTruncatedNormal(mean, sd float64) (*TruncatedNormal, error) {
	if !finite(mean, sd) || sd <= 0 || mean < -6*sd {
		return nil, badParam("truncated normal mean %v sd %v", mean, sd)
	}
	return &TruncatedNormal{mean: mean, sd: sd}, nil
}

func (n *TruncatedNormal) Sample(_ float64, rng *rand.Rand) float64 {
	d := distuv.Normal{Mu: n.mean, Sigma: n.sd, Src: rng}
	for {
		if x := d.Rand(); x >= 0 {
			return x
		}
	}
}

// Sequence cycles through a fixed list of values. It keeps its position
// across samples, so each node/class pair needs its own Sequence.
type Sequence struct {
	values []float64
	next   int
}

// NewSequence requires a non-empty list of non-negative values; +Inf is
// allowed and means "never".
func NewSequence(values []float64) (*Sequence, error) {
	if len(values) == 0 {
		return nil, badParam("empty sequence")
	}
	for i, v := range values {
		if math.IsNaN(v) || v < 0 {
			return nil, badParam("sequence value %d is %v", i, v)
		}
	}
	return &Sequence{values: append([]float64(nil), values...)}, nil
}

func (s *Sequence) Sample(float64, *rand.Rand) float64 {
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	return v
}

// Empirical draws uniformly from a list of observations.
type Empirical struct {
	observations []float64
}

// NewEmpirical requires a non-empty list of finite non-negative observations.
func NewEmpirical(observations []float64) (*Empirical, error) {
	if len(observations) == 0 {
		return nil, badParam("empirical distribution has no observations")
	}
	for i, v := range observations {
		if !finite(v) || v < 0 {
			return nil, badParam("observation %d is %v", i, v)
		}
	}
	return &Empirical{observations: append([]float64(nil), observations...)}, nil
}

func (e *Empirical) Sample(_ float64, rng *rand.Rand) float64 {
	return e.observations[rng.IntN(len(e.observations))]
}

// Pmf draws values[i] with probability probs[i]. It is the usual batch-size
// distribution.
type Pmf struct {
	values []float64
	cdf    []float64
}

// NewPmf requires matching non-empty slices, non-negative values and
// probabilities summing to 1.
func NewPmf(values, probs []float64) (*Pmf, error) {
	if len(values) == 0 || len(values) != len(probs) {
		return nil, badParam("pmf needs one probability per value, got %d values and %d probabilities",
			len(values), len(probs))
	}
	cdf := make([]float64, len(probs))
	acc := 0.0
	for i, p := range probs {
		if !finite(p, values[i]) || p < 0 || values[i] < 0 {
			return nil, badParam("pmf entry %d (%v, %v)", i, values[i], p)
		}
		acc += p
		cdf[i] = acc
	}
	if math.Abs(acc-1) > 1e-9 {
		return nil, badParam("pmf probabilities sum to %v", acc)
	}
	cdf[len(cdf)-1] = 1
	return &Pmf{values: append([]float64(nil), values...), cdf: cdf}, nil
}

func (p *Pmf) Sample(_ float64, rng *rand.Rand) float64 {
	idx := sort.SearchFloat64s(p.cdf, rng.Float64())
	if idx >= len(p.values) {
		idx = len(p.values) - 1
	}
	return p.values[idx]
}

// NoArrivals never fires.
type NoArrivals struct{}

func (NoArrivals) Sample(float64, *rand.Rand) float64 { return math.Inf(1) }

// TimeDependent lets the duration depend on the simulation clock.
type TimeDependent func(t float64) float64

func (f TimeDependent) Sample(t float64, _ *rand.Rand) float64 { return f(t) }

var (
	_ sim.Sampler = (*Deterministic)(nil)
	_ sim.Sampler = (*Exponential)(nil)
	_ sim.Sampler = (*Uniform)(nil)
	_ sim.Sampler = (*Triangular)(nil)
	_ sim.Sampler = (*Gamma)(nil)
	_ sim.Sampler = (*Lognormal)(nil)
	_ sim.Sampler = (*Weibull)(nil)
	_ sim.Sampler = (*TruncatedNormal)(nil)
	_ sim.Sampler = (*Sequence)(nil)
	_ sim.Sampler = (*Empirical)(nil)
	_ sim.Sampler = (*Pmf)(nil)
	_ sim.Sampler = NoArrivals{}
	_ sim.Sampler = TimeDependent(nil)
)
