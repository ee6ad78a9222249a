package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrivalNode_BaulkingRecordsAndCounts(t *testing.T) {
	// GIVEN a node everyone refuses once someone is there
	net := singleNode(1, Unlimited, seq(1, 1, 1, math.Inf(1)), constant(10))
	net.Centres[0].Baulking = []BaulkingFunc{func(occ int) float64 {
		if occ >= 1 {
			return 1
		}
		return 0
	}}
	s := mustSimulation(t, net)

	// WHEN three individuals arrive
	require.NoError(t, s.SimulateUntilMaxTime(5))

	// THEN the last two baulk
	a := s.Arrivals()
	assert.Equal(t, 3, a.NumberGenerated)
	assert.Equal(t, 1, a.NumberAccepted)
	assert.Equal(t, 2, a.NumberBaulked)
	assert.Equal(t, []int{2}, a.BaulkedByNode)
	r := recordsOf(t, s, 3)[0]
	assert.Equal(t, RecordBaulk, r.Kind)
	assert.Equal(t, 3.0, r.ArrivalDate)
	assert.Equal(t, 3.0, r.ExitDate)
	assert.False(t, r.ServiceStartDate.IsSet())
}

func TestArrivalNode_FullNodeRejectsBeforeBaulking(t *testing.T) {
	// GIVEN a node with room for one whose baulking function refuses everyone
	// once it is occupied
	net := singleNode(1, 0, seq(1, 0.5, math.Inf(1)), constant(10))
	net.Centres[0].Baulking = []BaulkingFunc{func(occ int) float64 {
		if occ >= 1 {
			return 1
		}
		return 0
	}}
	s := mustSimulation(t, net)

	// WHEN a second individual arrives while the first is in service
	require.NoError(t, s.SimulateUntilMaxTime(5))

	// THEN it is rejected for lack of room, not counted as baulking
	a := s.Arrivals()
	assert.Equal(t, 2, a.NumberGenerated)
	assert.Equal(t, 1, a.NumberRejected)
	assert.Equal(t, 0, a.NumberBaulked)
	assert.Equal(t, []int{1}, a.RejectedByNode)
	assert.Equal(t, []int{0}, a.BaulkedByNode)
	assert.Equal(t, RecordRejection, recordsOf(t, s, 2)[0].Kind)
}

func TestArrivalNode_SystemCapacityRejects(t *testing.T) {
	// GIVEN two nodes sharing a system capacity of one
	net := &Network{
		Centres: []CentreConfig{
			{NumberOfServers: 1, QueueCapacity: Unlimited},
			{NumberOfServers: 1, QueueCapacity: Unlimited},
		},
		Classes: []ClassConfig{{
			Arrivals: []Sampler{once(1), once(2)},
			Services: []Sampler{constant(10), constant(10)},
		}},
		Routing:        NetworkRouting{Leave{}, Leave{}},
		SystemCapacity: 1,
	}
	s := mustSimulation(t, net)

	require.NoError(t, s.SimulateUntilMaxTime(5))

	assert.Equal(t, []int{0, 1}, s.Arrivals().RejectedByNode)
	assert.Equal(t, RecordRejection, recordsOf(t, s, 2)[0].Kind)
}

func TestArrivalNode_TiesGoToFirstPair(t *testing.T) {
	// GIVEN two classes arriving at the same instant
	net := &Network{
		Centres: []CentreConfig{{NumberOfServers: 2, QueueCapacity: Unlimited}},
		Classes: []ClassConfig{
			{Arrivals: []Sampler{once(1)}, Services: []Sampler{constant(1)}},
			{Arrivals: []Sampler{once(1)}, Services: []Sampler{constant(1)}},
		},
		Routing: NetworkRouting{Leave{}},
	}
	s := mustSimulation(t, net)
	require.NoError(t, s.SimulateUntilMaxTime(1))

	assert.Equal(t, 0, s.individual(1).Class)
	assert.Equal(t, 1, s.individual(2).Class)
	assert.Equal(t, []int{1, 1}, s.Arrivals().AcceptedByClass)
}

func TestArrivalNode_ZeroBatchGeneratesNobody(t *testing.T) {
	net := singleNode(1, Unlimited, seq(1, 1, math.Inf(1)), constant(1))
	net.Classes[0].Batching = []Sampler{seq(0, 2)}
	s := mustSimulation(t, net)
	require.NoError(t, s.SimulateUntilMaxTime(10))
	assert.Equal(t, 2, s.Counts().Generated)
	assert.Equal(t, 2.0, s.individual(1).Records[0].ArrivalDate)
}
