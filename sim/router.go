package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Router decides where individuals go next. Destinations are node ids in
// 1..N or Exit. Fixed targets are checked by Initialise; a destination only
// known at run time that falls outside the network aborts the run with
// ErrInvalidDestination.
type Router interface {
	// Initialise is called once when the simulation is built.
	Initialise(s *Simulation) error
	// NextNode is consulted when an individual finishes service at origin.
	NextNode(ind *Individual, origin int) (int, error)
	// NextNodeForRerouting is consulted when a pre-emption reroutes ind.
	NextNodeForRerouting(ind *Individual, origin int) (int, error)
	// NextNodeForJockeying is consulted when ind reneges without a
	// configured reneging destination.
	NextNodeForJockeying(ind *Individual, origin int) (int, error)
}

// RoutePlanner is implemented by routers that fix an itinerary when an
// individual enters the network.
type RoutePlanner interface {
	PlanRoute(ind *Individual, arrivalNode int) error
}

// NodeRouter routes individuals leaving a single node.
type NodeRouter interface {
	Initialise(s *Simulation, node int) error
	NextNode(ind *Individual) (int, error)
}

// NetworkRouting composes one NodeRouter per node (index node id - 1).
// A NodeRouter may also implement Reroute or Jockey to override the
// defaults: reroute as for a normal departure, jockey to the exit.
type NetworkRouting []NodeRouter

type rerouter interface {
	Reroute(ind *Individual) (int, error)
}

type jockeyer interface {
	Jockey(ind *Individual) (int, error)
}

// Initialise implements Router.
func (nr NetworkRouting) Initialise(s *Simulation) error {
	if len(nr) != s.network.NumNodes() {
		return fmt.Errorf("%w: network routing has %d node routers for %d nodes",
			ErrInvalidConfig, len(nr), s.network.NumNodes())
	}
	for i, r := range nr {
		if r == nil {
			return fmt.Errorf("%w: node %d has no router", ErrInvalidConfig, i+1)
		}
		if err := r.Initialise(s, i+1); err != nil {
			return fmt.Errorf("node %d router: %w", i+1, err)
		}
	}
	return nil
}

// NextNode implements Router.
func (nr NetworkRouting) NextNode(ind *Individual, origin int) (int, error) {
	return nr[origin-1].NextNode(ind)
}

// NextNodeForRerouting implements Router.
func (nr NetworkRouting) NextNodeForRerouting(ind *Individual, origin int) (int, error) {
	if r, ok := nr[origin-1].(rerouter); ok {
		return r.Reroute(ind)
	}
	return nr[origin-1].NextNode(ind)
}

// NextNodeForJockeying implements Router.
func (nr NetworkRouting) NextNodeForJockeying(ind *Individual, origin int) (int, error) {
	if j, ok := nr[origin-1].(jockeyer); ok {
		return j.Jockey(ind)
	}
	return Exit, nil
}

// TransitionMatrix builds NetworkRouting from a routing matrix:
// matrix[i][j] is the probability of moving from node i+1 to node j+1; the
// rest of each row leaves the network.
func TransitionMatrix(matrix [][]float64) NetworkRouting {
	nr := make(NetworkRouting, len(matrix))
	for i, row := range matrix {
		dests := make([]int, len(row))
		for j := range row {
			dests[j] = j + 1
		}
		nr[i] = &Probabilistic{Destinations: dests, Probs: row}
	}
	return nr
}

// Probabilistic picks Destinations[i] with probability Probs[i]; the
// remaining probability mass goes to the exit.
type Probabilistic struct {
	Destinations []int
	Probs        []float64
	rng          *rand.Rand
}

// Initialise implements NodeRouter.
func (p *Probabilistic) Initialise(s *Simulation, node int) error {
	if len(p.Destinations) != len(p.Probs) {
		return fmt.Errorf("%w: %d destinations but %d probabilities",
			ErrInvalidConfig, len(p.Destinations), len(p.Probs))
	}
	sum := 0.0
	for i, pr := range p.Probs {
		if pr < 0 || math.IsNaN(pr) {
			return fmt.Errorf("%w: probability %d is %v", ErrInvalidConfig, i, pr)
		}
		sum += pr
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("%w: routing probabilities sum to %v", ErrInvalidConfig, sum)
	}
	if err := validateTargets(s, node, p.Destinations); err != nil {
		return err
	}
	p.rng = s.rng.ForSubsystem(SubsystemDecisions)
	return nil
}

// NextNode implements NodeRouter.
func (p *Probabilistic) NextNode(*Individual) (int, error) {
	u := p.rng.Float64()
	acc := 0.0
	for i, pr := range p.Probs {
		acc += pr
		if u < acc {
			return p.Destinations[i], nil
		}
	}
	return Exit, nil
}

// Direct sends everyone to the same node.
type Direct struct {
	To int
}

// Initialise implements NodeRouter.
func (d *Direct) Initialise(s *Simulation, node int) error {
	return validateTargets(s, node, []int{d.To})
}

// NextNode implements NodeRouter.
func (d *Direct) NextNode(*Individual) (int, error) { return d.To, nil }

// Leave sends everyone out of the network.
type Leave struct{}

// Initialise implements NodeRouter.
func (Leave) Initialise(*Simulation, int) error { return nil }

// NextNode implements NodeRouter.
func (Leave) NextNode(*Individual) (int, error) { return Exit, nil }

// TieBreak selects among equally good destinations.
type TieBreak string

const (
	TieBreakRandom TieBreak = "random"
	TieBreakOrder  TieBreak = "order"
)

// JoinShortestQueue routes to the destination with the fewest individuals
// waiting (occupancy minus those in service).
type JoinShortestQueue struct {
	Destinations []int
	TieBreak     TieBreak // "" behaves as TieBreakRandom
	sim          *Simulation
}

// Initialise implements NodeRouter.
func (j *JoinShortestQueue) Initialise(s *Simulation, node int) error {
	j.sim = s
	return validateCandidates(s, j.Destinations, j.TieBreak)
}

// NextNode implements NodeRouter.
func (j *JoinShortestQueue) NextNode(*Individual) (int, error) {
	return shortest(j.sim, j.Destinations, j.TieBreak, func(n *ServiceCentre) int {
		return n.Occupancy() - n.NumberInService()
	}), nil
}

// LoadBalancing routes to the destination holding the fewest individuals,
// those in service included.
type LoadBalancing struct {
	Destinations []int
	TieBreak     TieBreak
	sim          *Simulation
}

// Initialise implements NodeRouter.
func (l *LoadBalancing) Initialise(s *Simulation, node int) error {
	l.sim = s
	return validateCandidates(s, l.Destinations, l.TieBreak)
}

// NextNode implements NodeRouter.
func (l *LoadBalancing) NextNode(*Individual) (int, error) {
	return shortest(l.sim, l.Destinations, l.TieBreak, (*ServiceCentre).Occupancy), nil
}

// Cycle routes to its destinations in round-robin order.
type Cycle struct {
	Destinations []int
	counter      int
}

// Initialise implements NodeRouter.
func (c *Cycle) Initialise(s *Simulation, node int) error {
	if len(c.Destinations) == 0 {
		return fmt.Errorf("%w: cycle router has no destinations", ErrInvalidConfig)
	}
	if err := validateTargets(s, node, c.Destinations); err != nil {
		return err
	}
	c.counter = 0
	return nil
}

// NextNode implements NodeRouter.
func (c *Cycle) NextNode(*Individual) (int, error) {
	target := c.Destinations[c.counter%len(c.Destinations)]
	c.counter++
	return target, nil
}

// validateTargets checks that every fixed destination of node's router is a
// centre or the exit.
func validateTargets(s *Simulation, node int, dests []int) error {
	for _, d := range dests {
		if !s.network.ValidDestination(d) {
			return fmt.Errorf("%w: node %d routes to %d: %w", ErrInvalidConfig, node, d, ErrInvalidDestination)
		}
	}
	return nil
}

func validateCandidates(s *Simulation, dests []int, tb TieBreak) error {
	if len(dests) == 0 {
		return fmt.Errorf("%w: router has no destinations", ErrInvalidConfig)
	}
	for _, d := range dests {
		if d < 1 || d > s.network.NumNodes() {
			return fmt.Errorf("%w: candidate %d is not a service centre: %w", ErrInvalidConfig, d, ErrInvalidDestination)
		}
	}
	switch tb {
	case "", TieBreakRandom, TieBreakOrder:
		return nil
	default:
		return fmt.Errorf("%w: unknown tie break %q", ErrInvalidConfig, tb)
	}
}

// shortest returns the candidate minimising size; ties go to the first
// candidate under TieBreakOrder, otherwise to a uniform pick.
func shortest(s *Simulation, candidates []int, tb TieBreak, size func(*ServiceCentre) int) int {
	best := math.MaxInt
	var ties []int
	for _, id := range candidates {
		switch sz := size(s.centre(id)); {
		case sz < best:
			best = sz
			ties = append(ties[:0], id)
		case sz == best:
			ties = append(ties, id)
		}
	}
	if tb == TieBreakOrder || len(ties) == 1 {
		return ties[0]
	}
	return ties[s.rng.ForSubsystem(SubsystemDecisions).IntN(len(ties))]
}

// NewNodeRouter builds a NodeRouter by name. Valid names are "leave",
// "direct", "probabilistic", "jsq", "load-balancing" and "cycle".
func NewNodeRouter(name string, destinations []int, probs []float64, tb TieBreak) (NodeRouter, error) {
	switch name {
	case "leave":
		return Leave{}, nil
	case "direct":
		if len(destinations) != 1 {
			return nil, fmt.Errorf("%w: direct router needs exactly one destination", ErrInvalidConfig)
		}
		return &Direct{To: destinations[0]}, nil
	case "probabilistic":
		return &Probabilistic{Destinations: destinations, Probs: probs}, nil
	case "jsq":
		return &JoinShortestQueue{Destinations: destinations, TieBreak: tb}, nil
	case "load-balancing":
		return &LoadBalancing{Destinations: destinations, TieBreak: tb}, nil
	case "cycle":
		return &Cycle{Destinations: destinations}, nil
	default:
		return nil, fmt.Errorf("%w: unknown router %q", ErrInvalidConfig, name)
	}
}
