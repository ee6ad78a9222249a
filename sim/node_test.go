package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordsOf returns the journal of individual id.
func recordsOf(t *testing.T, s *Simulation, id int) []Record {
	t.Helper()
	ind := s.individual(id)
	require.NotNil(t, ind, "individual %d", id)
	return ind.Records
}

func TestServiceCentre_LIFOServesLatestArrival(t *testing.T) {
	// GIVEN a busy LIFO server with two waiting individuals
	net := singleNode(1, Unlimited, seq(1, 1, 1, math.Inf(1)), constant(10))
	net.Centres[0].Discipline = LIFO{}
	s := mustSimulation(t, net)

	// WHEN the first service ends at t=11
	require.NoError(t, s.SimulateUntilMaxTime(11))

	// THEN the latest arrival is served first
	third := s.individual(3)
	assert.Equal(t, At(11), third.ServiceStartDate)
	assert.False(t, s.individual(2).InService())
}

func TestServiceCentre_ServerPriorityPicksLowestRank(t *testing.T) {
	net := singleNode(3, Unlimited, once(1), constant(1))
	net.Centres[0].ServerPriority = func(srv *Server, _ *Individual) float64 { return -float64(srv.ID) }
	s := mustSimulation(t, net)
	require.NoError(t, s.SimulateUntilMaxTime(5))
	assert.Equal(t, 3, recordsOf(t, s, 1)[0].ServerID)
}

func TestServiceCentre_BlockingAndCascadedRelease(t *testing.T) {
	// GIVEN a tandem whose second node has no waiting room
	net := &Network{
		Centres: []CentreConfig{
			{NumberOfServers: 1, QueueCapacity: Unlimited},
			{NumberOfServers: 1, QueueCapacity: 0},
		},
		Classes: []ClassConfig{{
			Arrivals: []Sampler{seq(1, 1.5, math.Inf(1)), nil},
			Services: []Sampler{constant(1), constant(10)},
		}},
		Routing: NetworkRouting{&Direct{To: 2}, Leave{}},
	}
	detector := NewStateDigraph()
	s := mustSimulation(t, net, WithDeadlockDetector(detector))

	// WHEN the second individual finishes at node 1 while node 2 is full
	require.NoError(t, s.SimulateUntilMaxTime(5))

	// THEN it is blocked, holding its server, and the detector has one edge
	n1, n2 := s.Nodes()[0], s.Nodes()[1]
	assert.Equal(t, 1, n1.NumberBlocked())
	assert.Equal(t, [][2]int{{1, 2}}, n2.BlockedQueue())
	assert.True(t, s.individual(2).Blocked)
	assert.Equal(t, 2, s.individual(2).Destination)
	assert.True(t, detector.HasEdge(1, 1, 2, 1))
	assert.Equal(t, math.Inf(1), n1.NextEventDate(), "blocked individuals schedule nothing")

	// WHEN node 2 frees up at t=12
	require.NoError(t, s.SimulateUntilMaxTime(30))

	// THEN the blocked individual moves on and its record carries the blocked time
	r := recordsOf(t, s, 2)[0]
	assert.Equal(t, RecordService, r.Kind)
	assert.Equal(t, At(3.5), r.ServiceEndDate)
	assert.Equal(t, 12.0, r.ExitDate)
	assert.Equal(t, At(8.5), r.TimeBlocked)
	assert.Equal(t, 2, r.Destination)
	assert.Equal(t, 22.0, recordsOf(t, s, 2)[1].ExitDate)
	assert.Zero(t, detector.NumEdges())
	assert.Empty(t, n2.BlockedQueue())
}

func TestServiceCentre_RenegeToConfiguredDestination(t *testing.T) {
	// GIVEN an impatient individual queued behind a long service
	net := &Network{
		Centres: []CentreConfig{
			{
				NumberOfServers: 1, QueueCapacity: Unlimited,
				Reneging:             []Sampler{constant(2)},
				RenegingDestinations: []int{2},
			},
			{NumberOfServers: Unlimited, QueueCapacity: Unlimited},
		},
		Classes: []ClassConfig{{
			Arrivals: []Sampler{seq(1, 0.5, math.Inf(1)), nil},
			Services: []Sampler{constant(10), constant(1)},
		}},
		Routing: NetworkRouting{Leave{}, Leave{}},
	}
	s := mustSimulation(t, net)

	// WHEN its patience runs out
	require.NoError(t, s.SimulateUntilMaxTime(20))

	// THEN it reneges at 3.5 into node 2 and is served there
	records := recordsOf(t, s, 2)
	require.Len(t, records, 2)
	assert.Equal(t, RecordRenege, records[0].Kind)
	assert.Equal(t, 3.5, records[0].ExitDate)
	assert.Equal(t, 2, records[0].Destination)
	assert.False(t, records[0].ServiceStartDate.IsSet())
	assert.Equal(t, 4.5, records[1].ExitDate)
	assert.Zero(t, s.Counts().Reneged, "reneging into a node is not leaving")
	assert.Equal(t, 2, s.Counts().Completed)
}

func TestServiceCentre_RenegeToExit(t *testing.T) {
	net := singleNode(1, Unlimited, seq(1, 0.5, math.Inf(1)), constant(10))
	net.Centres[0].Reneging = []Sampler{constant(2)}
	s := mustSimulation(t, net)
	require.NoError(t, s.SimulateUntilMaxTime(20))

	records := recordsOf(t, s, 2)
	require.Len(t, records, 1)
	assert.Equal(t, Exit, records[0].Destination)
	c := s.Counts()
	assert.Equal(t, 1, c.Reneged)
	assert.Equal(t, 1, c.Completed)
	assert.Equal(t, 1, s.Exit().NumberNotCompleted)
}

func TestServiceCentre_ClassChangeWhileWaitingPreempts(t *testing.T) {
	// GIVEN a low-priority class that turns high-priority after waiting 3
	net := &Network{
		Centres: []CentreConfig{{
			NumberOfServers: 1, QueueCapacity: Unlimited, Preemption: PreemptResume,
			ClassChangeTimes: [][]Sampler{{nil, constant(3)}, nil},
		}},
		Classes: []ClassConfig{
			{Priority: 1, Arrivals: []Sampler{seq(1, 1, math.Inf(1))}, Services: []Sampler{constant(10)}},
			{Priority: 0, Services: []Sampler{constant(1)}},
		},
		Routing: NetworkRouting{Leave{}},
	}
	tracker := &NodeClassMatrix{}
	s := mustSimulation(t, net, WithTracker(tracker))

	// WHEN the waiting individual changes class at t=5
	require.NoError(t, s.SimulateUntilMaxTime(5))

	// THEN it pre-empts the one in service
	second := s.individual(2)
	assert.Equal(t, 1, second.Class)
	assert.Equal(t, 0, second.PreviousClass)
	assert.Equal(t, At(5), second.ServiceStartDate)
	assert.True(t, s.individual(1).Interrupted)
	assert.Equal(t, State("[[1 1]]"), tracker.State())

	// WHEN the run continues
	require.NoError(t, s.SimulateUntilMaxTime(30))

	// THEN the first resumes its remaining 6 units once the server is free
	first := recordsOf(t, s, 1)
	require.Len(t, first, 2)
	assert.Equal(t, RecordInterruptedService, first[0].Kind)
	assert.Equal(t, 5.0, first[0].ExitDate)
	assert.Equal(t, 12.0, first[1].ExitDate)

	r := recordsOf(t, s, 2)[0]
	assert.Equal(t, 0, r.OriginalClass)
	assert.Equal(t, 1, r.Class)
	assert.Equal(t, 6.0, r.ExitDate)
}

func TestServiceCentre_ClassChangeMatrixAtEndOfService(t *testing.T) {
	net := &Network{
		Centres: []CentreConfig{{
			NumberOfServers: 1, QueueCapacity: Unlimited,
			ClassChangeMatrix: [][]float64{{0, 1}, {0, 1}},
		}},
		Classes: []ClassConfig{
			{Arrivals: []Sampler{once(1)}, Services: []Sampler{constant(1)}},
			{Services: []Sampler{constant(1)}},
		},
		Routing: NetworkRouting{Leave{}},
	}
	s := mustSimulation(t, net)
	require.NoError(t, s.SimulateUntilMaxTime(5))

	r := recordsOf(t, s, 1)[0]
	assert.Equal(t, 0, r.OriginalClass)
	assert.Equal(t, 1, r.Class)
}

func TestServiceCentre_SlottedService(t *testing.T) {
	// GIVEN slots of 1 at t=2 and 2 at t=4, and three early arrivals
	net := singleNode(0, Unlimited, seq(0.5, 0.5, 0.5, math.Inf(1)), constant(0.5))
	net.Centres[0].Slotted = &SlottedSchedule{SlotDates: []float64{2, 4}, SlotSizes: []int{1, 2}}
	s := mustSimulation(t, net)

	// WHEN the run covers both slots
	require.NoError(t, s.SimulateUntilMaxTime(10))

	// THEN admissions happen only at slot instants, in arrival order
	assert.Equal(t, At(2), recordsOf(t, s, 1)[0].ServiceStartDate)
	assert.Equal(t, At(4), recordsOf(t, s, 2)[0].ServiceStartDate)
	assert.Equal(t, At(4), recordsOf(t, s, 3)[0].ServiceStartDate)
	assert.Equal(t, 2, s.Nodes()[0].NumberOfServers())
}

func TestServiceCentre_CapacitatedSlotsCountThoseInService(t *testing.T) {
	// GIVEN capacitated slots of 1 every 2 time units and services of 3
	net := singleNode(0, Unlimited, seq(0.5, 0.5, math.Inf(1)), constant(3))
	net.Centres[0].Slotted = &SlottedSchedule{SlotDates: []float64{2, 4}, SlotSizes: []int{1, 1}, Capacitated: true}
	s := mustSimulation(t, net)

	require.NoError(t, s.SimulateUntilMaxTime(20))

	// THEN the slot at 4 is full and the second individual waits for the slot at 6
	assert.Equal(t, At(2), recordsOf(t, s, 1)[0].ServiceStartDate)
	assert.Equal(t, At(6), recordsOf(t, s, 2)[0].ServiceStartDate)
}

func TestServiceCentre_PreemptRerouteSendsVictimOnward(t *testing.T) {
	// GIVEN a reroute pre-emption node whose victims go to node 2
	net := &Network{
		Centres: []CentreConfig{
			{NumberOfServers: 1, QueueCapacity: Unlimited, Preemption: PreemptReroute},
			{NumberOfServers: Unlimited, QueueCapacity: Unlimited},
		},
		Classes: []ClassConfig{
			{Priority: 0, Arrivals: []Sampler{once(3), nil}, Services: []Sampler{constant(1), constant(1)}},
			{Priority: 1, Arrivals: []Sampler{once(1), nil}, Services: []Sampler{constant(10), constant(1)}},
		},
		Routing: NetworkRouting{&Direct{To: 2}, Leave{}},
	}
	s := mustSimulation(t, net)

	require.NoError(t, s.SimulateUntilMaxTime(20))

	// THEN the victim leaves at 3 with an interrupted record and is served at node 2
	victim := recordsOf(t, s, 1)
	require.Len(t, victim, 2)
	assert.Equal(t, RecordInterruptedService, victim[0].Kind)
	assert.Equal(t, 3.0, victim[0].ExitDate)
	assert.Equal(t, 2, victim[0].Destination)
	assert.Equal(t, 4.0, victim[1].ExitDate)
	assert.Empty(t, s.Nodes()[0].Interrupted())
}

func TestServiceCentre_UtilisationWithRetiredServers(t *testing.T) {
	// GIVEN a schedule of two servers then one, with a single long job
	schedule := &Schedule{Levels: []int{2, 1}, ShiftEndDates: []float64{10, 20}}
	net := &Network{
		Centres: []CentreConfig{{QueueCapacity: Unlimited, Schedule: schedule}},
		Classes: []ClassConfig{{Arrivals: []Sampler{once(0.5)}, Services: []Sampler{constant(5)}}},
		Routing: NetworkRouting{Leave{}},
	}
	s := mustSimulation(t, net)
	require.NoError(t, s.SimulateUntilMaxTime(15))

	// THEN both first-shift servers retired at 10 and utilisation spans all three
	n := s.Nodes()[0]
	assert.Len(t, n.RetiredServers(), 2)
	assert.Len(t, n.Servers(), 1)
	assert.InDelta(t, 5.0/25.0, n.ServerUtilisation(), 1e-12)
}
