package config

import (
	"fmt"
	"math"

	"github.com/inference-sim/qsim/sim"
	"github.com/inference-sim/qsim/sim/dist"
)

// ExitName is how network files refer to the sink.
const ExitName = "exit"

// index resolves node and class names.
type index struct {
	nodes   map[string]int // name -> node id (1-based)
	classes map[string]int // name -> class index
}

func (nf *NetworkFile) index() (*index, error) {
	ix := &index{nodes: make(map[string]int), classes: make(map[string]int)}
	for i, n := range nf.Nodes {
		if n.Name == "" || n.Name == ExitName {
			return nil, fmt.Errorf("%w: node %d has reserved or empty name %q", sim.ErrInvalidConfig, i+1, n.Name)
		}
		if _, dup := ix.nodes[n.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate node name %q", sim.ErrInvalidConfig, n.Name)
		}
		ix.nodes[n.Name] = i + 1
	}
	for k, c := range nf.Classes {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: class %d has no name", sim.ErrInvalidConfig, k)
		}
		if _, dup := ix.classes[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate class name %q", sim.ErrInvalidConfig, c.Name)
		}
		ix.classes[c.Name] = k
	}
	return ix, nil
}

func (ix *index) node(name string) (int, error) {
	id, ok := ix.nodes[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown node %q", sim.ErrInvalidConfig, name)
	}
	return id, nil
}

func (ix *index) destination(name string) (int, error) {
	if name == ExitName {
		return sim.Exit, nil
	}
	return ix.node(name)
}

func (ix *index) class(name string) (int, error) {
	k, ok := ix.classes[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown class %q", sim.ErrInvalidConfig, name)
	}
	return k, nil
}

// Build turns the file into a validated sim.Network.
func (nf *NetworkFile) Build() (*sim.Network, error) {
	ix, err := nf.index()
	if err != nil {
		return nil, err
	}
	net := &sim.Network{SystemCapacity: nf.SystemCapacity}
	for k := range nf.Classes {
		cc, err := nf.buildClass(ix, k)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", nf.Classes[k].Name, err)
		}
		net.Classes = append(net.Classes, cc)
	}
	for i := range nf.Nodes {
		cc, err := nf.buildCentre(ix, i)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nf.Nodes[i].Name, err)
		}
		net.Centres = append(net.Centres, cc)
	}
	if net.Routing, err = nf.buildRouting(ix); err != nil {
		return nil, err
	}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	return net, nil
}

// perNode builds a slice of samplers indexed by node id - 1, or nil when
// specs is empty.
func perNode(ix *index, numNodes int, specs map[string]dist.Spec) ([]sim.Sampler, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]sim.Sampler, numNodes)
	for name, spec := range specs {
		id, err := ix.node(name)
		if err != nil {
			return nil, err
		}
		s, err := dist.New(spec)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		out[id-1] = s
	}
	return out, nil
}

func (nf *NetworkFile) buildClass(ix *index, k int) (sim.ClassConfig, error) {
	spec := nf.Classes[k]
	cc := sim.ClassConfig{Name: spec.Name, Priority: spec.Priority}
	var err error
	if cc.Arrivals, err = perNode(ix, len(nf.Nodes), spec.Arrivals); err != nil {
		return cc, fmt.Errorf("arrivals: %w", err)
	}
	if cc.Services, err = perNode(ix, len(nf.Nodes), spec.Services); err != nil {
		return cc, fmt.Errorf("services: %w", err)
	}
	if cc.Batching, err = perNode(ix, len(nf.Nodes), spec.Batching); err != nil {
		return cc, fmt.Errorf("batching: %w", err)
	}
	return cc, nil
}

func (nf *NetworkFile) buildCentre(ix *index, i int) (sim.CentreConfig, error) {
	spec := nf.Nodes[i]
	numClasses := len(nf.Classes)
	cc := sim.CentreConfig{
		Name:            spec.Name,
		NumberOfServers: spec.Servers,
		QueueCapacity:   sim.Unlimited,
	}
	if spec.Unlimited {
		cc.NumberOfServers = sim.Unlimited
	}
	if spec.QueueCapacity != nil {
		cc.QueueCapacity = *spec.QueueCapacity
	}
	var err error
	if spec.Discipline != "" {
		if cc.Discipline, err = sim.NewDiscipline(spec.Discipline); err != nil {
			return cc, err
		}
	}
	if cc.Preemption, err = sim.ParsePreemptPolicy(spec.Preemption); err != nil {
		return cc, err
	}
	if s := spec.Schedule; s != nil {
		p, err := sim.ParsePreemptPolicy(s.Preemption)
		if err != nil {
			return cc, fmt.Errorf("schedule: %w", err)
		}
		cc.Schedule = &sim.Schedule{Levels: s.Levels, ShiftEndDates: s.ShiftEndDates, Offset: s.Offset, Preemption: p}
	}
	if s := spec.Slotted; s != nil {
		p, err := sim.ParsePreemptPolicy(s.Preemption)
		if err != nil {
			return cc, fmt.Errorf("slotted schedule: %w", err)
		}
		cc.Slotted = &sim.SlottedSchedule{
			SlotDates: s.SlotDates, SlotSizes: s.SlotSizes, Offset: s.Offset,
			Capacitated: s.Capacitated, Preemption: p,
		}
	}

	if len(spec.ClassChange) > 0 {
		cc.ClassChangeMatrix = make([][]float64, numClasses)
		for k := range cc.ClassChangeMatrix {
			cc.ClassChangeMatrix[k] = make([]float64, numClasses)
			cc.ClassChangeMatrix[k][k] = 1
		}
		for from, row := range spec.ClassChange {
			f, err := ix.class(from)
			if err != nil {
				return cc, fmt.Errorf("class change matrix: %w", err)
			}
			cc.ClassChangeMatrix[f] = make([]float64, numClasses)
			for to, p := range row {
				t, err := ix.class(to)
				if err != nil {
					return cc, fmt.Errorf("class change matrix: %w", err)
				}
				cc.ClassChangeMatrix[f][t] = p
			}
		}
	}
	if len(spec.ClassChangeTimes) > 0 {
		cc.ClassChangeTimes = make([][]sim.Sampler, numClasses)
		for from, row := range spec.ClassChangeTimes {
			f, err := ix.class(from)
			if err != nil {
				return cc, fmt.Errorf("class change times: %w", err)
			}
			cc.ClassChangeTimes[f] = make([]sim.Sampler, numClasses)
			for to, ds := range row {
				t, err := ix.class(to)
				if err != nil {
					return cc, fmt.Errorf("class change times: %w", err)
				}
				if cc.ClassChangeTimes[f][t], err = dist.New(ds); err != nil {
					return cc, fmt.Errorf("class change time %s -> %s: %w", from, to, err)
				}
			}
		}
	}
	if len(spec.Reneging) > 0 {
		cc.Reneging = make([]sim.Sampler, numClasses)
		for name, ds := range spec.Reneging {
			k, err := ix.class(name)
			if err != nil {
				return cc, fmt.Errorf("reneging: %w", err)
			}
			if cc.Reneging[k], err = dist.New(ds); err != nil {
				return cc, fmt.Errorf("reneging %s: %w", name, err)
			}
		}
	}
	if len(spec.RenegingTo) > 0 {
		cc.RenegingDestinations = make([]int, numClasses)
		for name, dest := range spec.RenegingTo {
			k, err := ix.class(name)
			if err != nil {
				return cc, fmt.Errorf("reneging destinations: %w", err)
			}
			if cc.RenegingDestinations[k], err = ix.destination(dest); err != nil {
				return cc, fmt.Errorf("reneging destinations: %w", err)
			}
		}
	}
	if len(spec.Baulking) > 0 {
		cc.Baulking = make([]sim.BaulkingFunc, numClasses)
		for name, bs := range spec.Baulking {
			k, err := ix.class(name)
			if err != nil {
				return cc, fmt.Errorf("baulking: %w", err)
			}
			if cc.Baulking[k], err = bs.build(); err != nil {
				return cc, fmt.Errorf("baulking %s: %w", name, err)
			}
		}
	}
	return cc, nil
}

func (b BaulkingSpec) build() (sim.BaulkingFunc, error) {
	switch b.Type {
	case "threshold":
		if b.Threshold < 0 {
			return nil, fmt.Errorf("%w: negative baulking threshold %d", sim.ErrInvalidConfig, b.Threshold)
		}
		threshold := b.Threshold
		return func(occupancy int) float64 {
			if occupancy >= threshold {
				return 1
			}
			return 0
		}, nil
	case "linear":
		if b.Slope < 0 || math.IsNaN(b.Slope) {
			return nil, fmt.Errorf("%w: negative baulking slope %v", sim.ErrInvalidConfig, b.Slope)
		}
		slope := b.Slope
		return func(occupancy int) float64 {
			return math.Min(1, slope*float64(occupancy))
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown baulking type %q", sim.ErrInvalidConfig, b.Type)
	}
}

func (nf *NetworkFile) buildRouting(ix *index) (sim.Router, error) {
	if nf.RoutingMatrix != nil {
		for i, n := range nf.Nodes {
			if n.Routing != nil {
				return nil, fmt.Errorf("%w: node %q has a routing block and the file has a routing matrix",
					sim.ErrInvalidConfig, nf.Nodes[i].Name)
			}
		}
		if len(nf.RoutingMatrix) != len(nf.Nodes) {
			return nil, fmt.Errorf("%w: routing matrix has %d rows for %d nodes",
				sim.ErrInvalidConfig, len(nf.RoutingMatrix), len(nf.Nodes))
		}
		for i, row := range nf.RoutingMatrix {
			if len(row) != len(nf.Nodes) {
				return nil, fmt.Errorf("%w: routing matrix row %d has %d entries", sim.ErrInvalidConfig, i, len(row))
			}
		}
		return sim.TransitionMatrix(nf.RoutingMatrix), nil
	}
	routing := make(sim.NetworkRouting, len(nf.Nodes))
	for i, n := range nf.Nodes {
		rs := n.Routing
		if rs == nil {
			routing[i] = sim.Leave{}
			continue
		}
		dests := make([]int, len(rs.Destinations))
		for j, name := range rs.Destinations {
			d, err := ix.destination(name)
			if err != nil {
				return nil, fmt.Errorf("node %q routing: %w", n.Name, err)
			}
			dests[j] = d
		}
		r, err := sim.NewNodeRouter(rs.Type, dests, rs.Probs, sim.TieBreak(rs.TieBreak))
		if err != nil {
			return nil, fmt.Errorf("node %q routing: %w", n.Name, err)
		}
		routing[i] = r
	}
	return routing, nil
}
