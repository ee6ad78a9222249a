package sim

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// DeadlockDetector observes blocking and server attachment and reports when
// the network can no longer make progress.
type DeadlockDetector interface {
	Initialise(s *Simulation)
	ActionAtAttachServer(n *ServiceCentre, srv *Server, ind *Individual)
	ActionAtBlockage(ind *Individual, origin, dest *ServiceCentre)
	ActionAtDetachServer(srv *Server)
	// DetectDeadlock reports whether the current state is deadlocked.
	// It does not change any state.
	DetectDeadlock() bool
}

// NoDetection never reports deadlock.
type NoDetection struct{}

func (NoDetection) Initialise(*Simulation)                                       {}
func (NoDetection) ActionAtAttachServer(*ServiceCentre, *Server, *Individual)    {}
func (NoDetection) ActionAtBlockage(*Individual, *ServiceCentre, *ServiceCentre) {}
func (NoDetection) ActionAtDetachServer(*Server)                                 {}
func (NoDetection) DetectDeadlock() bool                                         { return false }

// StateDigraph keeps a directed graph over busy servers: an edge u -> v means
// the individual held by u is blocked waiting for the node v serves at.
// The network is deadlocked exactly when the graph contains a knot, a
// strongly connected set with at least one edge and no edge leaving it.
type StateDigraph struct {
	sim   *Simulation
	edges map[serverRef]map[serverRef]struct{}
}

// NewStateDigraph returns an empty detector.
func NewStateDigraph() *StateDigraph {
	return &StateDigraph{edges: make(map[serverRef]map[serverRef]struct{})}
}

// Initialise implements DeadlockDetector.
func (d *StateDigraph) Initialise(s *Simulation) {
	d.sim = s
	d.edges = make(map[serverRef]map[serverRef]struct{})
}

func (d *StateDigraph) addEdge(from, to serverRef) {
	out, ok := d.edges[from]
	if !ok {
		out = make(map[serverRef]struct{})
		d.edges[from] = out
	}
	out[to] = struct{}{}
}

// HasEdge reports whether server (fromNode, fromID) waits on server (toNode, toID).
func (d *StateDigraph) HasEdge(fromNode, fromID, toNode, toID int) bool {
	_, ok := d.edges[serverRef{fromNode, fromID}][serverRef{toNode, toID}]
	return ok
}

// NumEdges returns the number of edges in the graph.
func (d *StateDigraph) NumEdges() int {
	count := 0
	for _, out := range d.edges {
		count += len(out)
	}
	return count
}

// ActionAtAttachServer links every server whose individual is blocked
// waiting for n to the newly busy server.
func (d *StateDigraph) ActionAtAttachServer(n *ServiceCentre, srv *Server, _ *Individual) {
	to := serverRef{node: n.id, id: srv.ID}
	for _, b := range n.blocked {
		blocked := d.sim.individual(b.individual)
		if blocked == nil || blocked.server == nil {
			continue
		}
		d.addEdge(*blocked.server, to)
	}
}

// ActionAtBlockage links the blocked individual's server to every server at
// the destination.
func (d *StateDigraph) ActionAtBlockage(ind *Individual, _ *ServiceCentre, dest *ServiceCentre) {
	if ind.server == nil {
		return
	}
	for _, srv := range dest.servers {
		d.addEdge(*ind.server, serverRef{node: dest.id, id: srv.ID})
	}
}

// ActionAtDetachServer removes every edge touching srv.
func (d *StateDigraph) ActionAtDetachServer(srv *Server) {
	v := serverRef{node: srv.Node, id: srv.ID}
	delete(d.edges, v)
	for from, out := range d.edges {
		delete(out, v)
		if len(out) == 0 {
			delete(d.edges, from)
		}
	}
}

func vertexID(v serverRef) int64 {
	return int64(v.node)<<32 | int64(v.id)
}

// DetectDeadlock implements DeadlockDetector.
func (d *StateDigraph) DetectDeadlock() bool {
	if len(d.edges) == 0 {
		return false
	}
	g := simple.NewDirectedGraph()
	byID := make(map[int64]serverRef)
	addVertex := func(v serverRef) {
		id := vertexID(v)
		if _, ok := byID[id]; !ok {
			byID[id] = v
			g.AddNode(simple.Node(id))
		}
	}
	for from, out := range d.edges {
		addVertex(from)
		for to := range out {
			addVertex(to)
			if to != from {
				g.SetEdge(simple.Edge{F: simple.Node(vertexID(from)), T: simple.Node(vertexID(to))})
			}
		}
	}
	for _, scc := range topo.TarjanSCC(g) {
		if d.isKnot(scc, byID) {
			return true
		}
	}
	return false
}

// isKnot reports whether the component has an internal edge and no edge
// leaving it.
func (d *StateDigraph) isKnot(scc []graph.Node, byID map[int64]serverRef) bool {
	members := make(map[serverRef]struct{}, len(scc))
	for _, n := range scc {
		members[byID[n.ID()]] = struct{}{}
	}
	internal := false
	for v := range members {
		for to := range d.edges[v] {
			if _, ok := members[to]; !ok {
				return false
			}
			internal = true
		}
	}
	return internal
}
