package sim

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
)

// eventNode is anything the driver can advance: the arrival generator and
// every service centre.
type eventNode interface {
	NextEventDate() float64
	HaveEvent() error
}

// receiver is anything an individual can be handed to.
type receiver interface {
	ID() int
	hasRoom() bool
	accept(ind *Individual, completed bool) error
}

// CountMethod selects what SimulateUntilMaxCustomers counts.
type CountMethod string

const (
	// CountFinish counts individuals that completed and left the network.
	CountFinish CountMethod = "finish"
	// CountArrive counts generated individuals, turned-away ones included.
	CountArrive CountMethod = "arrive"
	// CountAccept counts individuals admitted to their first node.
	CountAccept CountMethod = "accept"
)

// StopCondition bounds a Run. Zero fields are unbounded.
type StopCondition struct {
	// MaxTime processes every event dated at or before MaxTime and leaves
	// the clock at MaxTime.
	MaxTime      float64
	MaxCustomers int
	CountMethod  CountMethod
	// MaxWallClock aborts the run after this much real time.
	MaxWallClock time.Duration
	// UntilDeadlock requires a deadlock detector; the run ends at deadlock
	// or when no events remain.
	UntilDeadlock bool
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithSeed seeds every random stream of the run.
func WithSeed(seed int64) Option {
	return func(s *Simulation) { s.rng = NewPartitionedRNG(NewSimulationKey(seed)) }
}

// WithTracker installs a state tracker (default NoTracker).
func WithTracker(t StateTracker) Option {
	return func(s *Simulation) { s.tracker = t }
}

// WithDeadlockDetector installs a deadlock detector (default NoDetection).
func WithDeadlockDetector(d DeadlockDetector) Option {
	return func(s *Simulation) { s.detector = d }
}

// WithIndividualFactory replaces NewIndividual for arriving individuals,
// e.g. to attach extra bookkeeping. The factory must honour its arguments.
func WithIndividualFactory(f func(id, class, priority int) *Individual) Option {
	return func(s *Simulation) { s.newInd = f }
}

// Simulation owns the clock, the nodes and the random streams of one run.
type Simulation struct {
	network *Network
	clock   float64
	rng     *PartitionedRNG

	tracker  StateTracker
	detector DeadlockDetector

	arrival *ArrivalNode
	centres []*ServiceCentre
	exit    *ExitNode

	individuals map[int]*Individual
	nextID      int
	newInd      func(id, class, priority int) *Individual

	uncheckedBlockage bool
	deadlocked        bool
	deadlockDate      float64
	timesToDeadlock   map[State]float64

	reneged int
}

// NewSimulation validates net and builds a simulation ready to run at t=0.
func NewSimulation(net *Network, opts ...Option) (*Simulation, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", ErrInvalidConfig)
	}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		network:     net,
		rng:         NewPartitionedRNG(NewSimulationKey(0)),
		tracker:     NoTracker{},
		detector:    NoDetection{},
		individuals: make(map[int]*Individual),
		newInd:      NewIndividual,
		exit:        &ExitNode{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.centres = make([]*ServiceCentre, net.NumNodes())
	for i := range s.centres {
		s.centres[i] = newServiceCentre(s, i+1)
	}
	s.tracker.Initialise(s)
	s.detector.Initialise(s)
	if err := net.Routing.Initialise(s); err != nil {
		return nil, err
	}
	arrival, err := newArrivalNode(s)
	if err != nil {
		return nil, err
	}
	s.arrival = arrival
	for _, c := range s.centres {
		c.UpdateNextEventDate()
	}
	logrus.Debugf("simulation built: %d nodes, %d classes, seed %d",
		net.NumNodes(), net.NumClasses(), s.rng.Key())
	return s, nil
}

// Clock returns the current simulated time.
func (s *Simulation) Clock() float64 {
	return s.clock
}

// Network returns the description the simulation was built from.
func (s *Simulation) Network() *Network {
	return s.network
}

// Nodes returns the service centres, indexed by id - 1.
func (s *Simulation) Nodes() []*ServiceCentre {
	return s.centres
}

// Arrivals returns the external arrival generator.
func (s *Simulation) Arrivals() *ArrivalNode {
	return s.arrival
}

// Exit returns the sink.
func (s *Simulation) Exit() *ExitNode {
	return s.exit
}

// Tracker returns the installed state tracker.
func (s *Simulation) Tracker() StateTracker {
	return s.tracker
}

// Detector returns the installed deadlock detector.
func (s *Simulation) Detector() DeadlockDetector {
	return s.detector
}

// Deadlocked reports whether a deadlock was detected, and when.
func (s *Simulation) Deadlocked() (bool, float64) {
	return s.deadlocked, s.deadlockDate
}

// TimesToDeadlock maps every state visited before the deadlock to the time
// from its first visit to the deadlock. Nil until a deadlock is detected.
func (s *Simulation) TimesToDeadlock() map[State]float64 {
	return s.timesToDeadlock
}

func (s *Simulation) centre(id int) *ServiceCentre {
	if id < 1 || id > len(s.centres) {
		return nil
	}
	return s.centres[id-1]
}

func (s *Simulation) receiver(id int) (receiver, error) {
	if id == Exit {
		return s.exit, nil
	}
	if c := s.centre(id); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("destination %d: %w", id, ErrInvalidDestination)
}

func (s *Simulation) individual(id int) *Individual {
	return s.individuals[id]
}

func (s *Simulation) newIndividual(class int) *Individual {
	s.nextID++
	ind := s.newInd(s.nextID, class, s.network.Classes[class].Priority)
	s.individuals[ind.ID] = ind
	return ind
}

// pick draws a uniform index in [0, n) from the decisions stream; a single
// candidate consumes no randomness.
func (s *Simulation) pick(n int) int {
	if n <= 1 {
		return 0
	}
	return s.rng.ForSubsystem(SubsystemDecisions).IntN(n)
}

// population counts individuals held at service centres.
func (s *Simulation) population() int {
	total := 0
	for _, c := range s.centres {
		total += c.Occupancy()
	}
	return total
}

// nextEvent returns the earliest event date and one of the nodes due then,
// chosen uniformly among ties.
func (s *Simulation) nextEvent() (float64, eventNode) {
	date := s.arrival.NextEventDate()
	due := []eventNode{s.arrival}
	for _, c := range s.centres {
		switch d := c.NextEventDate(); {
		case d < date:
			date = d
			due = append(due[:0], c)
		case d == date:
			due = append(due, c)
		}
	}
	return date, due[s.pick(len(due))]
}

// Counts is a snapshot of the conservation counters:
// Generated == Completed + InSystem + Rejected + Baulked + Reneged.
type Counts struct {
	Generated int
	Accepted  int
	Completed int
	InSystem  int
	Rejected  int
	Baulked   int
	Reneged   int
}

// Counts returns the current counters.
func (s *Simulation) Counts() Counts {
	return Counts{
		Generated: s.arrival.NumberGenerated,
		Accepted:  s.arrival.NumberAccepted,
		Completed: s.exit.NumberCompleted,
		InSystem:  s.population(),
		Rejected:  s.arrival.NumberRejected,
		Baulked:   s.arrival.NumberBaulked,
		Reneged:   s.reneged,
	}
}

func (s *Simulation) count(method CountMethod) int {
	switch method {
	case CountArrive:
		return s.arrival.NumberGenerated
	case CountAccept:
		return s.arrival.NumberAccepted
	default:
		return s.exit.NumberCompleted
	}
}

// SimulateUntilMaxTime runs every event dated at or before maxTime.
// It can be called repeatedly with increasing horizons.
func (s *Simulation) SimulateUntilMaxTime(maxTime float64) error {
	if !(maxTime > 0) {
		return fmt.Errorf("%w: max time must be positive, got %v", ErrInvalidConfig, maxTime)
	}
	return s.Run(StopCondition{MaxTime: maxTime})
}

// SimulateUntilMaxCustomers runs until the counted quantity reaches n.
func (s *Simulation) SimulateUntilMaxCustomers(n int, method CountMethod) error {
	if n <= 0 {
		return fmt.Errorf("%w: max customers must be positive, got %d", ErrInvalidConfig, n)
	}
	return s.Run(StopCondition{MaxCustomers: n, CountMethod: method})
}

// SimulateUntilDeadlock runs until the detector reports deadlock.
func (s *Simulation) SimulateUntilDeadlock() error {
	return s.Run(StopCondition{UntilDeadlock: true})
}

// Run advances the simulation one event at a time until stop is met, a
// deadlock is detected or no events remain. Server times are wrapped up at
// the final clock.
func (s *Simulation) Run(stop StopCondition) error {
	if err := stop.validate(); err != nil {
		return err
	}
	if stop.UntilDeadlock {
		if _, none := s.detector.(NoDetection); none {
			return fmt.Errorf("%w: running until deadlock needs a deadlock detector", ErrInvalidConfig)
		}
	}
	started := time.Now()
	var err error
	for !s.deadlocked {
		if stop.MaxWallClock > 0 && time.Since(started) >= stop.MaxWallClock {
			logrus.Warnf("wall-clock limit of %s reached at t=%.4f", stop.MaxWallClock, s.clock)
			break
		}
		if stop.MaxCustomers > 0 && s.count(stop.CountMethod) >= stop.MaxCustomers {
			break
		}
		date, node := s.nextEvent()
		if stop.MaxTime > 0 && date > stop.MaxTime {
			s.clock = max(s.clock, stop.MaxTime)
			break
		}
		if math.IsInf(date, 1) {
			break
		}
		s.clock = date
		if err = node.HaveEvent(); err != nil {
			break
		}
		for _, c := range s.centres {
			c.UpdateNextEventDate()
		}
		s.tracker.Timestamp(s.clock)
		if s.uncheckedBlockage {
			s.uncheckedBlockage = false
			if s.detector.DetectDeadlock() {
				s.onDeadlock()
			}
		}
	}
	s.wrapUp()
	if err != nil {
		return fmt.Errorf("simulation aborted at t=%g: %w", s.clock, err)
	}
	return nil
}

func (stop StopCondition) validate() error {
	var errs []error
	if stop.MaxTime < 0 || math.IsNaN(stop.MaxTime) {
		errs = append(errs, fmt.Errorf("max time %v", stop.MaxTime))
	}
	if stop.MaxCustomers < 0 {
		errs = append(errs, fmt.Errorf("max customers %d", stop.MaxCustomers))
	}
	switch stop.CountMethod {
	case "", CountFinish, CountArrive, CountAccept:
	default:
		errs = append(errs, fmt.Errorf("count method %q", stop.CountMethod))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: bad stop condition: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (s *Simulation) onDeadlock() {
	s.deadlocked = true
	s.deadlockDate = s.clock
	s.timesToDeadlock = make(map[State]float64)
	for _, rec := range s.tracker.History() {
		if _, seen := s.timesToDeadlock[rec.State]; !seen {
			s.timesToDeadlock[rec.State] = s.clock - rec.Time
		}
	}
	logrus.Infof("deadlock detected at t=%.4f", s.clock)
}

func (s *Simulation) wrapUp() {
	for _, c := range s.centres {
		c.wrapUp(s.clock)
	}
}

// Records returns every record of every individual, ordered by exit date
// then individual id.
func (s *Simulation) Records() []Record {
	ids := make([]int, 0, len(s.individuals))
	for id := range s.individuals {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	var out []Record
	for _, id := range ids {
		out = append(out, s.individuals[id].Records...)
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return cmp.Or(cmp.Compare(a.ExitDate, b.ExitDate), cmp.Compare(a.ID, b.ID))
	})
	return out
}
