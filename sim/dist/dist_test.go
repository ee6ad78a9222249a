package dist

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(42, 7))
}

func sampleMean(t *testing.T, spec Spec, n int) float64 {
	t.Helper()
	s, err := New(spec)
	require.NoError(t, err)
	rng := newRNG()
	sum := 0.0
	for range n {
		v := s.Sample(0, rng)
		require.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	return sum / float64(n)
}

func TestContinuousSamplers_MeanMatchesParams(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want float64
	}{
		{"exponential", Spec{Type: "exponential", Params: map[string]float64{"rate": 2}}, 0.5},
		{"uniform", Spec{Type: "uniform", Params: map[string]float64{"lower": 1, "upper": 3}}, 2},
		{"triangular", Spec{Type: "triangular", Params: map[string]float64{"lower": 0, "mode": 3, "upper": 6}}, 3},
		{"gamma", Spec{Type: "gamma", Params: map[string]float64{"shape": 2, "scale": 1.5}}, 3},
		{"lognormal", Spec{Type: "lognormal", Params: map[string]float64{"mu": 0, "sigma": 0.5}}, math.Exp(0.125)},
		{"weibull", Spec{Type: "weibull", Params: map[string]float64{"scale": 2, "shape": 1}}, 2},
		{"normal", Spec{Type: "normal", Params: map[string]float64{"mean": 10, "sd": 1}}, 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mean := sampleMean(t, tc.spec, 20000)
			assert.InEpsilon(t, tc.want, mean, 0.05, "mean of %s", tc.name)
		})
	}
}

func TestSequence_CyclesInOrder(t *testing.T) {
	s, err := NewSequence([]float64{10, 20})
	require.NoError(t, err)
	var got []float64
	for range 5 {
		got = append(got, s.Sample(0, nil))
	}
	assert.Equal(t, []float64{10, 20, 10, 20, 10}, got)
}

func TestSequence_AllowsInfinity(t *testing.T) {
	// GIVEN a single arrival followed by none
	s, err := NewSequence([]float64{1, math.Inf(1)})
	require.NoError(t, err)

	// THEN the second draw never fires
	assert.Equal(t, 1.0, s.Sample(0, nil))
	assert.True(t, math.IsInf(s.Sample(0, nil), 1))
}

func TestPmf_OnlyReturnsListedValues(t *testing.T) {
	p, err := NewPmf([]float64{1, 2, 5}, []float64{0.5, 0.25, 0.25})
	require.NoError(t, err)
	rng := newRNG()
	counts := map[float64]int{}
	for range 10000 {
		counts[p.Sample(0, rng)]++
	}
	assert.Len(t, counts, 3)
	assert.InDelta(t, 0.5, float64(counts[1])/10000, 0.03)
}

func TestEmpirical_DrawsObservations(t *testing.T) {
	e, err := NewEmpirical([]float64{3, 4})
	require.NoError(t, err)
	rng := newRNG()
	for range 100 {
		assert.Contains(t, []float64{3, 4}, e.Sample(0, rng))
	}
}

func TestTimeDependent_UsesClock(t *testing.T) {
	f := TimeDependent(func(t float64) float64 { return t / 2 })
	assert.Equal(t, 3.0, f.Sample(6, nil))
}

func TestNoArrivals_IsInfinite(t *testing.T) {
	s, err := New(Spec{Type: "none"})
	require.NoError(t, err)
	assert.True(t, math.IsInf(s.Sample(0, nil), 1))
}

func TestNew_RejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown type", Spec{Type: "zipf"}},
		{"missing param", Spec{Type: "exponential"}},
		{"zero rate", Spec{Type: "exponential", Params: map[string]float64{"rate": 0}}},
		{"negative deterministic", Spec{Type: "deterministic", Params: map[string]float64{"value": -1}}},
		{"inverted uniform", Spec{Type: "uniform", Params: map[string]float64{"lower": 3, "upper": 1}}},
		{"mode outside triangle", Spec{Type: "triangular", Params: map[string]float64{"lower": 0, "mode": 9, "upper": 6}}},
		{"empty sequence", Spec{Type: "sequence"}},
		{"negative sequence value", Spec{Type: "sequence", Values: []float64{1, -2}}},
		{"pmf not summing to one", Spec{Type: "pmf", Values: []float64{1, 2}, Probs: []float64{0.5, 0.4}}},
		{"pmf length mismatch", Spec{Type: "pmf", Values: []float64{1, 2}, Probs: []float64{1}}},
		{"empty empirical", Spec{Type: "empirical"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.spec)
			assert.ErrorIs(t, err, ErrBadParameter)
		})
	}
}
