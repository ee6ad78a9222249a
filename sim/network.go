package sim

import (
	"fmt"
	"math"
)

// Unlimited marks a server count or queue capacity with no bound.
const Unlimited = -1

// Exit is the routing destination meaning "leave the network".
const Exit = -1

// CentreConfig describes one service centre.
// Per-class slices are indexed by class and may be nil when unused.
type CentreConfig struct {
	Name string

	// NumberOfServers is ignored when Schedule or Slotted is set.
	NumberOfServers int
	QueueCapacity   int
	Schedule        *Schedule
	Slotted         *SlottedSchedule

	Discipline     Discipline // nil = FIFO
	Preemption     PreemptPolicy
	ServerPriority ServerPriorityFunc

	// ClassChangeMatrix[i][j] is the probability that class i leaves as class j.
	ClassChangeMatrix [][]float64
	// ClassChangeTimes[i][j] samples how long a waiting class-i individual
	// stays before turning into class j.
	ClassChangeTimes [][]Sampler

	Reneging []Sampler
	// RenegingDestinations[class] overrides the router's jockeying destination
	// for reneging individuals; 0 defers to the router.
	RenegingDestinations []int
	Baulking             []BaulkingFunc
}

// ClassConfig describes one customer class. Per-node slices are indexed by
// node position (node id - 1) and may hold nil entries.
type ClassConfig struct {
	Name     string
	Priority int
	Arrivals []Sampler
	Services []Sampler
	Batching []Sampler
}

// Network is the validated description a Simulation is built from.
type Network struct {
	Centres []CentreConfig
	Classes []ClassConfig
	Routing Router
	// SystemCapacity bounds the total population; 0 leaves the system uncapped.
	SystemCapacity int
}

// NumNodes returns the number of service centres.
func (n *Network) NumNodes() int {
	return len(n.Centres)
}

// NumClasses returns the number of customer classes.
func (n *Network) NumClasses() int {
	return len(n.Classes)
}

// NumPriorities returns one more than the largest class priority.
func (n *Network) NumPriorities() int {
	m := 0
	for _, c := range n.Classes {
		m = max(m, c.Priority)
	}
	return m + 1
}

// ValidDestination reports whether d names a centre or the exit.
func (n *Network) ValidDestination(d int) bool {
	return d == Exit || (d >= 1 && d <= len(n.Centres))
}

// Validate checks the description for internal consistency.
// All errors wrap ErrInvalidConfig (or a more specific sentinel).
func (n *Network) Validate() error {
	if len(n.Centres) == 0 {
		return fmt.Errorf("%w: network has no service centres", ErrInvalidConfig)
	}
	if len(n.Classes) == 0 {
		return fmt.Errorf("%w: network has no customer classes", ErrInvalidConfig)
	}
	if n.Routing == nil {
		return fmt.Errorf("%w: routing is required", ErrInvalidConfig)
	}
	if n.SystemCapacity < 0 {
		return fmt.Errorf("%w: system capacity must be non-negative, got %d", ErrInvalidConfig, n.SystemCapacity)
	}
	numNodes, numClasses := len(n.Centres), len(n.Classes)
	for k, c := range n.Classes {
		if c.Priority < 0 {
			return fmt.Errorf("%w: class %d has negative priority %d", ErrInvalidConfig, k, c.Priority)
		}
		if err := checkLen(len(c.Arrivals), numNodes, "class %d arrivals", k); err != nil {
			return err
		}
		if len(c.Services) != numNodes {
			return fmt.Errorf("%w: class %d needs a service distribution per node, got %d for %d nodes",
				ErrInvalidConfig, k, len(c.Services), numNodes)
		}
		for i, s := range c.Services {
			if s == nil {
				return fmt.Errorf("%w: class %d has no service distribution at node %d", ErrInvalidConfig, k, i+1)
			}
		}
		if err := checkLen(len(c.Batching), numNodes, "class %d batching", k); err != nil {
			return err
		}
	}
	for i := range n.Centres {
		if err := n.validateCentre(i, numClasses); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) validateCentre(i, numClasses int) error {
	c := &n.Centres[i]
	id := i + 1
	if c.Schedule != nil && c.Slotted != nil {
		return fmt.Errorf("%w: node %d has both a shift and a slotted schedule", ErrBadSchedule, id)
	}
	if c.Schedule != nil {
		if err := c.Schedule.Validate(); err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
	}
	if c.Slotted != nil {
		if err := c.Slotted.Validate(); err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
	}
	if c.Schedule == nil && c.Slotted == nil && c.NumberOfServers < 0 && c.NumberOfServers != Unlimited {
		return fmt.Errorf("%w: node %d has %d servers", ErrInvalidConfig, id, c.NumberOfServers)
	}
	if c.QueueCapacity < 0 && c.QueueCapacity != Unlimited {
		return fmt.Errorf("%w: node %d has queue capacity %d", ErrInvalidConfig, id, c.QueueCapacity)
	}
	if err := c.Preemption.validate(); err != nil {
		return fmt.Errorf("node %d: %w", id, err)
	}
	if c.Preemption != PreemptNone && (c.Slotted != nil || c.NumberOfServers == Unlimited && c.Schedule == nil) {
		return fmt.Errorf("%w: node %d: priority pre-emption needs a finite number of servers", ErrInvalidConfig, id)
	}
	if c.ClassChangeMatrix != nil {
		if len(c.ClassChangeMatrix) != numClasses {
			return fmt.Errorf("%w: node %d class change matrix has %d rows for %d classes",
				ErrInvalidConfig, id, len(c.ClassChangeMatrix), numClasses)
		}
		for r, row := range c.ClassChangeMatrix {
			if len(row) != numClasses {
				return fmt.Errorf("%w: node %d class change matrix row %d has %d entries",
					ErrInvalidConfig, id, r, len(row))
			}
			sum := 0.0
			for _, p := range row {
				if p < 0 {
					return fmt.Errorf("%w: node %d class change matrix row %d has a negative entry", ErrInvalidConfig, id, r)
				}
				sum += p
			}
			if math.Abs(sum-1) > 1e-9 {
				return fmt.Errorf("%w: node %d class change matrix row %d sums to %v", ErrInvalidConfig, id, r, sum)
			}
		}
	}
	if c.ClassChangeTimes != nil {
		if len(c.ClassChangeTimes) != numClasses {
			return fmt.Errorf("%w: node %d class change times have %d rows for %d classes",
				ErrInvalidConfig, id, len(c.ClassChangeTimes), numClasses)
		}
		for r, row := range c.ClassChangeTimes {
			if row != nil && len(row) != numClasses {
				return fmt.Errorf("%w: node %d class change times row %d has %d entries",
					ErrInvalidConfig, id, r, len(row))
			}
		}
	}
	if err := checkLen(len(c.Reneging), numClasses, "node %d reneging", id); err != nil {
		return err
	}
	if err := checkLen(len(c.RenegingDestinations), numClasses, "node %d reneging destinations", id); err != nil {
		return err
	}
	for k, d := range c.RenegingDestinations {
		if d != 0 && !n.ValidDestination(d) {
			return fmt.Errorf("%w: node %d class %d reneges to %d: %w", ErrInvalidConfig, id, k, d, ErrInvalidDestination)
		}
	}
	return checkLen(len(c.Baulking), numClasses, "node %d baulking", id)
}

// checkLen accepts an unset (zero-length) slice or one of exactly want entries.
func checkLen(got, want int, format string, args ...any) error {
	if got != 0 && got != want {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrInvalidConfig, fmt.Sprintf(format, args...), got, want)
	}
	return nil
}
