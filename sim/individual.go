// Defines the Individual that flows through the network.
// Tracks class, priority, per-node timestamps and the record journal.

package sim

import "fmt"

// Individual models a single entity's lifecycle in the simulation.
// Node-local fields (timestamps, server, flags) are reset every time the
// individual leaves a node; Records survives until the end of the run.
type Individual struct {
	ID int

	Class            int
	PreviousClass    int
	Priority         int // lower value = served first
	PreviousPriority int

	Node int // current node id

	ArrivalDate      OptTime
	ServiceStartDate OptTime
	ServiceEndDate   OptTime
	ExitDate         OptTime

	ServiceTime         float64
	OriginalServiceTime OptTime // first duration sampled at the current node
	remainingTime       float64 // service left when interrupted under "resume"

	QueueSizeAtArrival   int
	QueueSizeAtDeparture int

	server *serverRef

	Blocked     bool
	Destination int // blocked-on or last routing target

	Interrupted     bool
	interruptPolicy PreemptPolicy

	RenegingDate    OptTime
	ClassChangeDate OptTime
	NextClass       int

	arrivalClass int // class on arrival at the current node

	// Route is the pre-computed itinerary for process-based routing.
	// Each step lists the candidate nodes for that leg.
	Route        [][]int
	routeIndex   int
	routePending []int

	Records []Record
}

// NewIndividual creates an individual of the given class and priority.
func NewIndividual(id, class, priority int) *Individual {
	return &Individual{
		ID:                   id,
		Class:                class,
		PreviousClass:        class,
		Priority:             priority,
		PreviousPriority:     priority,
		arrivalClass:         class,
		QueueSizeAtArrival:   NoQueueSize,
		QueueSizeAtDeparture: NoQueueSize,
	}
}

// ServerRef returns the (node, server id) of the server currently held.
func (ind *Individual) ServerRef() (node, id int, ok bool) {
	if ind.server == nil {
		return 0, 0, false
	}
	return ind.server.node, ind.server.id, true
}

// InService reports whether the individual has started (and not lost) service
// at its current node. Blocked individuals are still in service.
func (ind *Individual) InService() bool {
	return ind.ServiceStartDate.IsSet()
}

// Waiting reports whether the individual is queued and eligible for service.
func (ind *Individual) Waiting() bool {
	return !ind.InService() && !ind.Interrupted
}

func (ind *Individual) appendRecord(r Record) {
	ind.Records = append(ind.Records, r)
}

// resetForNextNode clears node-local state once the individual has left.
func (ind *Individual) resetForNextNode() {
	ind.ArrivalDate = OptTime{}
	ind.ServiceStartDate = OptTime{}
	ind.ServiceEndDate = OptTime{}
	ind.ExitDate = OptTime{}
	ind.ServiceTime = 0
	ind.OriginalServiceTime = OptTime{}
	ind.remainingTime = 0
	ind.QueueSizeAtArrival = NoQueueSize
	ind.QueueSizeAtDeparture = NoQueueSize
	ind.server = nil
	ind.Blocked = false
	ind.Interrupted = false
	ind.interruptPolicy = PreemptNone
	ind.RenegingDate = OptTime{}
	ind.ClassChangeDate = OptTime{}
}

// This method returns a human-readable string representation of an Individual.
func (ind Individual) String() string {
	return fmt.Sprintf("Individual %d (class %d, priority %d, node %d)", ind.ID, ind.Class, ind.Priority, ind.Node)
}
