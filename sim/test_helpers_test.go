package sim

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// seq returns a sampler cycling through values regardless of rng.
func seq(values ...float64) Sampler {
	i := 0
	return SamplerFunc(func(float64, *rand.Rand) float64 {
		v := values[i%len(values)]
		i++
		return v
	})
}

// once yields a single arrival at t and none after.
func once(t float64) Sampler {
	return seq(t, math.Inf(1))
}

func constant(v float64) Sampler {
	return SamplerFunc(func(float64, *rand.Rand) float64 { return v })
}

func exponential(rate float64) Sampler {
	return SamplerFunc(func(_ float64, rng *rand.Rand) float64 { return rng.ExpFloat64() / rate })
}

// singleNode builds a one-node, one-class network with the given staffing.
func singleNode(servers, queueCap int, arrivals, services Sampler) *Network {
	return &Network{
		Centres: []CentreConfig{{NumberOfServers: servers, QueueCapacity: queueCap}},
		Classes: []ClassConfig{{Arrivals: []Sampler{arrivals}, Services: []Sampler{services}}},
		Routing: NetworkRouting{Leave{}},
	}
}

func mustSimulation(t *testing.T, net *Network, opts ...Option) *Simulation {
	t.Helper()
	s, err := NewSimulation(net, opts...)
	require.NoError(t, err)
	return s
}

// checkNodeInvariants asserts the structural invariants every node keeps
// between events.
func checkNodeInvariants(t *testing.T, s *Simulation) {
	t.Helper()
	for _, n := range s.Nodes() {
		total := 0
		for p := 0; p < n.Queues().NumTiers(); p++ {
			total += len(n.Queues().Tier(p))
		}
		require.Equal(t, n.Occupancy(), total, "%s: occupancy must equal the sum of its tiers", n.Name())

		holders := make(map[int]int)
		for _, srv := range n.Servers() {
			if !srv.Busy {
				require.Zero(t, srv.Occupant(), "%s: idle server %d has an occupant", n.Name(), srv.ID)
				continue
			}
			ind := s.individual(srv.Occupant())
			require.NotNil(t, ind, "%s: server %d holds an unknown individual", n.Name(), srv.ID)
			node, id, ok := ind.ServerRef()
			require.True(t, ok)
			require.Equal(t, n.ID(), node)
			require.Equal(t, srv.ID, id)
			holders[ind.ID]++
		}
		for _, ind := range n.Individuals() {
			if _, id, ok := ind.ServerRef(); ok {
				require.Equal(t, 1, holders[ind.ID], "%s: individual %d must hold exactly one server", n.Name(), ind.ID)
				require.NotNil(t, n.server(id))
			}
		}
	}
}

// stepAll runs to maxTime one event at a time, checking invariants between events.
func stepAll(t *testing.T, s *Simulation, maxTime float64, check func()) {
	t.Helper()
	for s.Clock() < maxTime {
		date := s.Arrivals().NextEventDate()
		for _, n := range s.Nodes() {
			date = math.Min(date, n.NextEventDate())
		}
		if date > maxTime {
			break
		}
		require.NoError(t, s.Run(StopCondition{MaxTime: date}))
		check()
		if done, _ := s.Deadlocked(); done {
			return
		}
	}
}
