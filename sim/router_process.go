package sim

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// RouteFunc computes an itinerary for an individual entering the network at
// arrivalNode. The itinerary lists the nodes visited after arrivalNode; the
// individual leaves once it is exhausted.
type RouteFunc func(ind *Individual, arrivalNode int, rng *rand.Rand) []int

// ProcessBased routes every individual along an itinerary fixed on arrival.
type ProcessBased struct {
	Route RouteFunc
	rng   *rand.Rand
}

// Initialise implements Router.
func (p *ProcessBased) Initialise(s *Simulation) error {
	if p.Route == nil {
		return fmt.Errorf("%w: process-based routing needs a route function", ErrInvalidConfig)
	}
	p.rng = s.rng.ForSubsystem(SubsystemDecisions)
	return nil
}

// PlanRoute implements RoutePlanner.
func (p *ProcessBased) PlanRoute(ind *Individual, arrivalNode int) error {
	route := p.Route(ind, arrivalNode, p.rng)
	ind.Route = make([][]int, len(route))
	for i, node := range route {
		ind.Route[i] = []int{node}
	}
	ind.routeIndex = 0
	return nil
}

// NextNode implements Router.
func (p *ProcessBased) NextNode(ind *Individual, _ int) (int, error) {
	if ind.routeIndex >= len(ind.Route) {
		return Exit, nil
	}
	next := ind.Route[ind.routeIndex][0]
	ind.routeIndex++
	return next, nil
}

// NextNodeForRerouting implements Router.
func (p *ProcessBased) NextNodeForRerouting(ind *Individual, origin int) (int, error) {
	return p.NextNode(ind, origin)
}

// NextNodeForJockeying implements Router. Reneging abandons the itinerary.
func (p *ProcessBased) NextNodeForJockeying(*Individual, int) (int, error) {
	return Exit, nil
}

// FlexibleRule says how many nodes of each itinerary step are visited.
type FlexibleRule string

const (
	// FlexibleAny visits one node of each step.
	FlexibleAny FlexibleRule = "any"
	// FlexibleAll visits every node of each step, in an order chosen as it goes.
	FlexibleAll FlexibleRule = "all"
)

// FlexibleChoice selects among the candidate nodes of a step.
type FlexibleChoice string

const (
	ChooseRandom        FlexibleChoice = "random"
	ChooseShortestQueue FlexibleChoice = "jsq"
	ChooseLeastLoaded   FlexibleChoice = "lb"
)

// FlexibleRouteFunc computes an itinerary of candidate sets.
type FlexibleRouteFunc func(ind *Individual, arrivalNode int, rng *rand.Rand) [][]int

// FlexibleProcessBased routes along an itinerary of node sets fixed on arrival.
type FlexibleProcessBased struct {
	Route  FlexibleRouteFunc
	Rule   FlexibleRule
	Choice FlexibleChoice
	sim    *Simulation
	rng    *rand.Rand
}

// Initialise implements Router.
func (f *FlexibleProcessBased) Initialise(s *Simulation) error {
	if f.Route == nil {
		return fmt.Errorf("%w: flexible process-based routing needs a route function", ErrInvalidConfig)
	}
	switch f.Rule {
	case FlexibleAny, FlexibleAll:
	default:
		return fmt.Errorf("%w: unknown flexible rule %q", ErrInvalidConfig, f.Rule)
	}
	switch f.Choice {
	case ChooseRandom, ChooseShortestQueue, ChooseLeastLoaded:
	default:
		return fmt.Errorf("%w: unknown flexible choice %q", ErrInvalidConfig, f.Choice)
	}
	f.sim = s
	f.rng = s.rng.ForSubsystem(SubsystemDecisions)
	return nil
}

// PlanRoute implements RoutePlanner.
func (f *FlexibleProcessBased) PlanRoute(ind *Individual, arrivalNode int) error {
	ind.Route = f.Route(ind, arrivalNode, f.rng)
	ind.routeIndex = 0
	ind.routePending = nil
	for i, step := range ind.Route {
		if len(step) == 0 {
			return fmt.Errorf("%w: itinerary step %d of individual %d is empty", ErrInvalidDestination, i, ind.ID)
		}
	}
	return nil
}

// NextNode implements Router.
func (f *FlexibleProcessBased) NextNode(ind *Individual, _ int) (int, error) {
	if len(ind.routePending) == 0 {
		if ind.routeIndex >= len(ind.Route) {
			return Exit, nil
		}
		ind.routePending = slices.Clone(ind.Route[ind.routeIndex])
		ind.routeIndex++
	}
	for _, d := range ind.routePending {
		if d < 1 || d > f.sim.network.NumNodes() {
			return 0, fmt.Errorf("itinerary of individual %d names node %d: %w", ind.ID, d, ErrInvalidDestination)
		}
	}
	next := f.choose(ind.routePending)
	if f.Rule == FlexibleAny {
		ind.routePending = nil
	} else {
		ind.routePending = slices.DeleteFunc(ind.routePending, func(d int) bool { return d == next })
	}
	return next, nil
}

func (f *FlexibleProcessBased) choose(candidates []int) int {
	switch f.Choice {
	case ChooseShortestQueue:
		return shortest(f.sim, candidates, TieBreakRandom, func(n *ServiceCentre) int {
			return n.Occupancy() - n.NumberInService()
		})
	case ChooseLeastLoaded:
		return shortest(f.sim, candidates, TieBreakRandom, (*ServiceCentre).Occupancy)
	default:
		return candidates[f.rng.IntN(len(candidates))]
	}
}

// NextNodeForRerouting implements Router.
func (f *FlexibleProcessBased) NextNodeForRerouting(ind *Individual, origin int) (int, error) {
	return f.NextNode(ind, origin)
}

// NextNodeForJockeying implements Router.
func (f *FlexibleProcessBased) NextNodeForJockeying(*Individual, int) (int, error) {
	return Exit, nil
}
