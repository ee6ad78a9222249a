package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// ArrivalNode generates external arrivals for every (node, class) pair with
// an arrival distribution and hands them to the network.
type ArrivalNode struct {
	sim *Simulation

	nextDates     [][]float64 // [node-1][class]
	nextEventDate float64
	nextNode      int
	nextClass     int

	NumberGenerated int
	NumberAccepted  int
	AcceptedByClass []int
	NumberRejected  int
	RejectedByNode  []int
	NumberBaulked   int
	BaulkedByNode   []int
}

func newArrivalNode(s *Simulation) (*ArrivalNode, error) {
	numNodes, numClasses := s.network.NumNodes(), s.network.NumClasses()
	a := &ArrivalNode{
		sim:             s,
		nextDates:       make([][]float64, numNodes),
		AcceptedByClass: make([]int, numClasses),
		RejectedByNode:  make([]int, numNodes),
		BaulkedByNode:   make([]int, numNodes),
	}
	for i := range a.nextDates {
		a.nextDates[i] = make([]float64, numClasses)
		for k := range a.nextDates[i] {
			d, err := a.interArrival(i+1, k)
			if err != nil {
				return nil, err
			}
			a.nextDates[i][k] = d
		}
	}
	a.findNextEvent()
	return a, nil
}

// NextEventDate returns the date of the next external arrival.
func (a *ArrivalNode) NextEventDate() float64 {
	return a.nextEventDate
}

func (a *ArrivalNode) interArrival(node, class int) (float64, error) {
	arrivals := a.sim.network.Classes[class].Arrivals
	if arrivals == nil || arrivals[node-1] == nil {
		return math.Inf(1), nil
	}
	return drawDuration(arrivals[node-1], a.sim.clock, a.sim.rng.ForSubsystem(SubsystemArrivals), "inter-arrival time")
}

// findNextEvent takes the earliest date; ties go to the first (node, class)
// in order.
func (a *ArrivalNode) findNextEvent() {
	a.nextEventDate = math.Inf(1)
	for i, row := range a.nextDates {
		for k, d := range row {
			if d < a.nextEventDate {
				a.nextEventDate, a.nextNode, a.nextClass = d, i+1, k
			}
		}
	}
}

// HaveEvent creates the arriving batch, sends each member to its node and
// samples the next arrival of the same (node, class).
func (a *ArrivalNode) HaveEvent() error {
	node, class := a.nextNode, a.nextClass
	now := a.sim.clock
	var batching Sampler
	if b := a.sim.network.Classes[class].Batching; b != nil {
		batching = b[node-1]
	}
	size, err := drawBatchSize(batching, now, a.sim.rng.ForSubsystem(SubsystemArrivals))
	if err != nil {
		return fmt.Errorf("arrivals at node %d class %d: %w", node, class, err)
	}
	logrus.Debugf("[t=%.4f] arrivals: batch of %d class %d at node %d", now, size, class, node)
	for range size {
		ind := a.sim.newIndividual(class)
		a.NumberGenerated++
		if planner, ok := a.sim.network.Routing.(RoutePlanner); ok {
			if err := planner.PlanRoute(ind, node); err != nil {
				return err
			}
		}
		if err := a.sendIndividual(a.sim.centre(node), ind); err != nil {
			return err
		}
	}
	d, err := a.interArrival(node, class)
	if err != nil {
		return fmt.Errorf("arrivals at node %d class %d: %w", node, class, err)
	}
	a.nextDates[node-1][class] = now + d
	a.findNextEvent()
	return nil
}

// sendIndividual applies system capacity, node capacity and baulking, in
// that order, before handing ind to dest. A full node rejects without
// consulting the baulking function.
func (a *ArrivalNode) sendIndividual(dest *ServiceCentre, ind *Individual) error {
	if a.sim.network.SystemCapacity > 0 && a.sim.population() >= a.sim.network.SystemCapacity {
		return a.turnAway(dest, ind, RecordRejection)
	}
	if !dest.hasRoom() {
		return a.turnAway(dest, ind, RecordRejection)
	}
	if b := dest.cfg.Baulking; b != nil && b[ind.Class] != nil {
		p := b[ind.Class](dest.Occupancy())
		if a.sim.rng.ForSubsystem(SubsystemDecisions).Float64() < p {
			return a.turnAway(dest, ind, RecordBaulk)
		}
	}
	a.NumberAccepted++
	a.AcceptedByClass[ind.Class]++
	return dest.accept(ind, true)
}

// turnAway records a rejected or baulking individual and sends it to the exit.
func (a *ArrivalNode) turnAway(dest *ServiceCentre, ind *Individual, kind RecordKind) error {
	now := a.sim.clock
	ind.appendRecord(Record{
		Kind:                 kind,
		ID:                   ind.ID,
		OriginalClass:        ind.Class,
		Class:                ind.Class,
		Node:                 dest.id,
		ArrivalDate:          now,
		ExitDate:             now,
		QueueSizeAtArrival:   dest.Occupancy(),
		QueueSizeAtDeparture: dest.Occupancy(),
	})
	if kind == RecordBaulk {
		a.NumberBaulked++
		a.BaulkedByNode[dest.id-1]++
	} else {
		a.NumberRejected++
		a.RejectedByNode[dest.id-1]++
	}
	logrus.Debugf("[t=%.4f] arrivals: individual %d %s at %s", now, ind.ID, kind, dest.Name())
	return a.sim.exit.accept(ind, false)
}
