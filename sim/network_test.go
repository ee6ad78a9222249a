package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validNetwork() *Network {
	return singleNode(1, Unlimited, constant(1), constant(1))
}

func TestNetwork_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Network)
		want   error
	}{
		{"no centres", func(n *Network) { n.Centres = nil }, ErrInvalidConfig},
		{"no classes", func(n *Network) { n.Classes = nil }, ErrInvalidConfig},
		{"no routing", func(n *Network) { n.Routing = nil }, ErrInvalidConfig},
		{"negative system capacity", func(n *Network) { n.SystemCapacity = -1 }, ErrInvalidConfig},
		{"negative priority", func(n *Network) { n.Classes[0].Priority = -1 }, ErrInvalidConfig},
		{"missing service", func(n *Network) { n.Classes[0].Services = []Sampler{nil} }, ErrInvalidConfig},
		{"arrivals length", func(n *Network) { n.Classes[0].Arrivals = []Sampler{nil, nil} }, ErrInvalidConfig},
		{"negative servers", func(n *Network) { n.Centres[0].NumberOfServers = -3 }, ErrInvalidConfig},
		{"negative queue", func(n *Network) { n.Centres[0].QueueCapacity = -2 }, ErrInvalidConfig},
		{"unknown preemption", func(n *Network) { n.Centres[0].Preemption = "pause" }, ErrUnknownPreemption},
		{"preemption without servers", func(n *Network) {
			n.Centres[0].NumberOfServers = Unlimited
			n.Centres[0].Preemption = PreemptResume
		}, ErrInvalidConfig},
		{"class change row sum", func(n *Network) { n.Centres[0].ClassChangeMatrix = [][]float64{{0.5}} }, ErrInvalidConfig},
		{"class change shape", func(n *Network) { n.Centres[0].ClassChangeMatrix = [][]float64{{0.5, 0.5}} }, ErrInvalidConfig},
		{"class change times shape", func(n *Network) { n.Centres[0].ClassChangeTimes = [][]Sampler{nil, nil} }, ErrInvalidConfig},
		{"reneging length", func(n *Network) { n.Centres[0].Reneging = []Sampler{nil, nil} }, ErrInvalidConfig},
		{"reneging destination", func(n *Network) { n.Centres[0].RenegingDestinations = []int{5} }, ErrInvalidDestination},
		{"both schedules", func(n *Network) {
			n.Centres[0].Schedule = &Schedule{Levels: []int{1}, ShiftEndDates: []float64{1}}
			n.Centres[0].Slotted = &SlottedSchedule{SlotDates: []float64{1}, SlotSizes: []int{1}}
		}, ErrBadSchedule},
		{"bad schedule", func(n *Network) {
			n.Centres[0].Schedule = &Schedule{Levels: []int{1, 2}, ShiftEndDates: []float64{1}}
		}, ErrBadSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a valid network with one defect
			net := validNetwork()
			tt.mutate(net)

			// WHEN it is validated and used
			err := net.Validate()
			_, simErr := NewSimulation(net)

			// THEN both fail with the expected sentinel
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(simErr, tt.want), "got %v", simErr)
		})
	}
}

func TestNetwork_ValidNetworkPasses(t *testing.T) {
	assert.NoError(t, validNetwork().Validate())
}

func TestNewSimulation_NilNetwork(t *testing.T) {
	_, err := NewSimulation(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNetwork_Helpers(t *testing.T) {
	net := validNetwork()
	net.Classes = append(net.Classes, ClassConfig{Priority: 3, Services: []Sampler{constant(1)}})
	assert.Equal(t, 1, net.NumNodes())
	assert.Equal(t, 2, net.NumClasses())
	assert.Equal(t, 4, net.NumPriorities())
	assert.True(t, net.ValidDestination(Exit))
	assert.True(t, net.ValidDestination(1))
	assert.False(t, net.ValidDestination(0))
	assert.False(t, net.ValidDestination(2))
}

func TestParsePreemptPolicy(t *testing.T) {
	for in, want := range map[string]PreemptPolicy{
		"": PreemptNone, "none": PreemptNone, "false": PreemptNone,
		"restart": PreemptRestart, "resume": PreemptResume,
		"resample": PreemptResample, "reroute": PreemptReroute,
	} {
		got, err := ParsePreemptPolicy(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePreemptPolicy("pause")
	assert.ErrorIs(t, err, ErrUnknownPreemption)
}

func TestNewDiscipline(t *testing.T) {
	for _, name := range append(ValidDisciplineNames(), "") {
		d, err := NewDiscipline(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, d, name)
		assert.True(t, IsValidDiscipline(name))
	}
	_, err := NewDiscipline("ps")
	assert.ErrorIs(t, err, ErrUnknownDiscipline)
	assert.Equal(t, []string{"fifo", "lifo", "siro"}, ValidDisciplineNames())
}

func TestOptTime(t *testing.T) {
	var unset OptTime
	assert.False(t, unset.IsSet())
	assert.Equal(t, 7.0, unset.Value(7))
	assert.Equal(t, "-", unset.String())
	assert.False(t, At(3).Sub(unset).IsSet())

	v, ok := At(3).Get()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, At(1.5), At(3).Sub(At(1.5)))
}
