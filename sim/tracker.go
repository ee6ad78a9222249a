package sim

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// State is a hashable summary of the network occupancy.
type State string

// StateRecord is one entry of a tracker's history.
type StateRecord struct {
	Time  float64
	State State
}

// StateTracker observes transitions and keeps a compact state summary and
// its history. Timestamp appends to the history only when the state changed.
type StateTracker interface {
	Initialise(s *Simulation)
	ChangeStateAccept(node int, ind *Individual)
	ChangeStateBlock(origin, dest int, ind *Individual)
	ChangeStateRelease(node, dest int, ind *Individual, blocked bool)
	ChangeStateClassChange(node int, ind *Individual, from, to int)
	State() State
	Timestamp(t float64)
	History() []StateRecord
}

// stateHistory implements the history half of StateTracker.
type stateHistory struct {
	history []StateRecord
}

func (h *stateHistory) record(t float64, s State) {
	if n := len(h.history); n > 0 && h.history[n-1].State == s {
		return
	}
	h.history = append(h.history, StateRecord{Time: t, State: s})
}

// History returns the (time, state) log.
func (h *stateHistory) History() []StateRecord {
	return h.history
}

// NoTracker tracks nothing.
type NoTracker struct{}

func (NoTracker) Initialise(*Simulation)                            {}
func (NoTracker) ChangeStateAccept(int, *Individual)                {}
func (NoTracker) ChangeStateBlock(int, int, *Individual)            {}
func (NoTracker) ChangeStateRelease(int, int, *Individual, bool)    {}
func (NoTracker) ChangeStateClassChange(int, *Individual, int, int) {}
func (NoTracker) State() State                                      { return "" }
func (NoTracker) Timestamp(float64)                                 {}
func (NoTracker) History() []StateRecord                            { return nil }

// SystemPopulation tracks the number of individuals in the network.
type SystemPopulation struct {
	stateHistory
	population int
}

func (t *SystemPopulation) Initialise(*Simulation) {
	t.population = 0
	t.history = nil
	t.record(0, t.State())
}
func (t *SystemPopulation) ChangeStateAccept(int, *Individual)                { t.population++ }
func (t *SystemPopulation) ChangeStateBlock(int, int, *Individual)            {}
func (t *SystemPopulation) ChangeStateRelease(int, int, *Individual, bool)    { t.population-- }
func (t *SystemPopulation) ChangeStateClassChange(int, *Individual, int, int) {}
func (t *SystemPopulation) State() State                                      { return State(fmt.Sprint(t.population)) }
func (t *SystemPopulation) Timestamp(now float64)                             { t.record(now, t.State()) }

// Population returns the current count.
func (t *SystemPopulation) Population() int {
	return t.population
}

// NodePopulation tracks the number of individuals at each node.
type NodePopulation struct {
	stateHistory
	counts []int
}

func (t *NodePopulation) Initialise(s *Simulation) {
	t.counts = make([]int, s.network.NumNodes())
	t.history = nil
	t.record(0, t.State())
}
func (t *NodePopulation) ChangeStateAccept(node int, _ *Individual)             { t.counts[node-1]++ }
func (t *NodePopulation) ChangeStateBlock(int, int, *Individual)                {}
func (t *NodePopulation) ChangeStateRelease(node, _ int, _ *Individual, _ bool) { t.counts[node-1]-- }
func (t *NodePopulation) ChangeStateClassChange(int, *Individual, int, int)     {}
func (t *NodePopulation) State() State                                          { return State(fmt.Sprint(t.counts)) }
func (t *NodePopulation) Timestamp(now float64)                                 { t.record(now, t.State()) }

// NodeClassMatrix tracks the number of individuals of each class at each node.
type NodeClassMatrix struct {
	stateHistory
	counts [][]int
}

func (t *NodeClassMatrix) Initialise(s *Simulation) {
	t.counts = make([][]int, s.network.NumNodes())
	for i := range t.counts {
		t.counts[i] = make([]int, s.network.NumClasses())
	}
	t.history = nil
	t.record(0, t.State())
}

func (t *NodeClassMatrix) ChangeStateAccept(node int, ind *Individual) {
	t.counts[node-1][ind.Class]++
}

func (t *NodeClassMatrix) ChangeStateBlock(int, int, *Individual) {}

// ChangeStateRelease uses the class the individual left with.
func (t *NodeClassMatrix) ChangeStateRelease(node, _ int, ind *Individual, _ bool) {
	t.counts[node-1][ind.Class]--
}

func (t *NodeClassMatrix) ChangeStateClassChange(node int, _ *Individual, from, to int) {
	t.counts[node-1][from]--
	t.counts[node-1][to]++
}

func (t *NodeClassMatrix) State() State          { return State(fmt.Sprint(t.counts)) }
func (t *NodeClassMatrix) Timestamp(now float64) { t.record(now, t.State()) }

// NaiveBlocking tracks (unblocked, blocked) counts per node.
type NaiveBlocking struct {
	stateHistory
	counts [][2]int
}

func (t *NaiveBlocking) Initialise(s *Simulation) {
	t.counts = make([][2]int, s.network.NumNodes())
	t.history = nil
	t.record(0, t.State())
}

func (t *NaiveBlocking) ChangeStateAccept(node int, _ *Individual) {
	t.counts[node-1][0]++
}

func (t *NaiveBlocking) ChangeStateBlock(origin, _ int, _ *Individual) {
	t.counts[origin-1][0]--
	t.counts[origin-1][1]++
}

func (t *NaiveBlocking) ChangeStateRelease(node, _ int, _ *Individual, blocked bool) {
	if blocked {
		t.counts[node-1][1]--
	} else {
		t.counts[node-1][0]--
	}
}

func (t *NaiveBlocking) ChangeStateClassChange(int, *Individual, int, int) {}
func (t *NaiveBlocking) State() State                                      { return State(fmt.Sprint(t.counts)) }
func (t *NaiveBlocking) Timestamp(now float64)                             { t.record(now, t.State()) }

// MatrixBlocking tracks the order in which individuals became blocked.
// Cell (i, j) lists the labels of individuals at node i blocked by node j;
// labels are 1..k in order of blocking and are renumbered densely on every
// release. The state also carries the population of each node.
type MatrixBlocking struct {
	stateHistory
	blocks [][2]int // (origin, dest) in order of blocking
	counts []int
}

func (t *MatrixBlocking) Initialise(s *Simulation) {
	t.blocks = nil
	t.counts = make([]int, s.network.NumNodes())
	t.history = nil
	t.record(0, t.State())
}

func (t *MatrixBlocking) ChangeStateAccept(node int, _ *Individual) {
	t.counts[node-1]++
}

func (t *MatrixBlocking) ChangeStateBlock(origin, dest int, _ *Individual) {
	t.blocks = append(t.blocks, [2]int{origin, dest})
}

// ChangeStateRelease drops the earliest block from node into dest when a
// blocked individual moves on; blocked individuals leave in blocking order.
func (t *MatrixBlocking) ChangeStateRelease(node, dest int, _ *Individual, blocked bool) {
	t.counts[node-1]--
	if !blocked {
		return
	}
	if i := slices.Index(t.blocks, [2]int{node, dest}); i >= 0 {
		t.blocks = slices.Delete(t.blocks, i, i+1)
	}
}

func (t *MatrixBlocking) ChangeStateClassChange(int, *Individual, int, int) {}

// Matrix returns the current label matrix.
func (t *MatrixBlocking) Matrix() [][][]int {
	n := len(t.counts)
	m := make([][][]int, n)
	for i := range m {
		m[i] = make([][]int, n)
		for j := range m[i] {
			m[i][j] = []int{}
		}
	}
	for label, b := range t.blocks {
		m[b[0]-1][b[1]-1] = append(m[b[0]-1][b[1]-1], label+1)
	}
	return m
}

func (t *MatrixBlocking) State() State {
	return State(fmt.Sprint(t.Matrix(), " ", t.counts))
}

func (t *MatrixBlocking) Timestamp(now float64) { t.record(now, t.State()) }

// StateProbabilities integrates a piecewise-constant history over
// [start, end] and returns the fraction of time spent in each state.
func StateProbabilities(history []StateRecord, start, end float64) map[State]float64 {
	probs := make(map[State]float64)
	if len(history) == 0 || !(end > start) {
		return probs
	}
	for i, rec := range history {
		from := math.Max(rec.Time, start)
		to := end
		if i+1 < len(history) {
			to = math.Min(history[i+1].Time, end)
		}
		if to > from {
			probs[rec.State] += to - from
		}
	}
	total := end - start
	for s := range probs {
		probs[s] /= total
	}
	return probs
}

// SortedStates returns the keys of a probability map in lexical order.
func SortedStates(probs map[State]float64) []State {
	return slices.Sorted(maps.Keys(probs))
}

// trackerFactories maps CLI names to tracker constructors.
var trackerFactories = map[string]func() StateTracker{
	"none":            func() StateTracker { return NoTracker{} },
	"system":          func() StateTracker { return &SystemPopulation{} },
	"node":            func() StateTracker { return &NodePopulation{} },
	"node-class":      func() StateTracker { return &NodeClassMatrix{} },
	"naive-blocking":  func() StateTracker { return &NaiveBlocking{} },
	"matrix-blocking": func() StateTracker { return &MatrixBlocking{} },
}

// ValidTrackerNames returns the names accepted by NewStateTracker, sorted.
func ValidTrackerNames() []string {
	return slices.Sorted(maps.Keys(trackerFactories))
}

// NewStateTracker builds a tracker by name; "" means "none".
func NewStateTracker(name string) (StateTracker, error) {
	if name == "" {
		name = "none"
	}
	f, ok := trackerFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown state tracker %q", ErrInvalidConfig, name)
	}
	return f(), nil
}
