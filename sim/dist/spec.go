package dist

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/inference-sim/qsim/sim"
)

// Spec is the serialised form of a distribution, as written in network files.
type Spec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
	Values []float64          `yaml:"values,omitempty"`
	Probs  []float64          `yaml:"probs,omitempty"`
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("%w: distribution requires parameter %q", ErrBadParameter, k)
		}
	}
	return nil
}

// constructors maps a type name to its builder.
var constructors = map[string]func(Spec) (sim.Sampler, error){
	"deterministic": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "value"); err != nil {
			return nil, err
		}
		return NewDeterministic(s.Params["value"])
	},
	"exponential": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "rate"); err != nil {
			return nil, err
		}
		return NewExponential(s.Params["rate"])
	},
	"uniform": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "lower", "upper"); err != nil {
			return nil, err
		}
		return NewUniform(s.Params["lower"], s.Params["upper"])
	},
	"triangular": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "lower", "mode", "upper"); err != nil {
			return nil, err
		}
		return NewTriangular(s.Params["lower"], s.Params["mode"], s.Params["upper"])
	},
	"gamma": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "shape", "scale"); err != nil {
			return nil, err
		}
		return NewGamma(s.Params["shape"], s.Params["scale"])
	},
	"lognormal": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "mu", "sigma"); err != nil {
			return nil, err
		}
		return NewLognormal(s.Params["mu"], s.Params["sigma"])
	},
	"weibull": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "scale", "shape"); err != nil {
			return nil, err
		}
		return NewWeibull(s.Params["scale"], s.Params["shape"])
	},
	"normal": func(s Spec) (sim.Sampler, error) {
		if err := requireParam(s.Params, "mean", "sd"); err != nil {
			return nil, err
		}
		return NewTruncatedNormal(s.Params["mean"], s.Params["sd"])
	},
	"sequence": func(s Spec) (sim.Sampler, error) {
		return NewSequence(s.Values)
	},
	"empirical": func(s Spec) (sim.Sampler, error) {
		return NewEmpirical(s.Values)
	},
	"pmf": func(s Spec) (sim.Sampler, error) {
		return NewPmf(s.Values, s.Probs)
	},
	"none": func(Spec) (sim.Sampler, error) {
		return NoArrivals{}, nil
	},
}

// ValidTypes returns the accepted type names, sorted.
func ValidTypes() []string {
	return slices.Sorted(maps.Keys(constructors))
}

// New builds a Sampler from its Spec.
func New(spec Spec) (sim.Sampler, error) {
	build, ok := constructors[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown distribution type %q (valid: %s)",
			ErrBadParameter, spec.Type, strings.Join(ValidTypes(), ", "))
	}
	return build(spec)
}
