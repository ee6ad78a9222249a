package sim

import (
	"fmt"
	"math"
	"slices"

	"github.com/sirupsen/logrus"
)

// eventType enumerates the transitions a ServiceCentre can schedule.
type eventType int

const (
	eventNone eventType = iota
	eventSlottedService
	eventShiftChange
	eventEndService
	eventClassChange
	eventRenege
)

// eventTypePriority defines ordering for simultaneous node events.
// Lower values are processed first.
var eventTypePriority = map[eventType]int{
	eventSlottedService: 1,
	eventShiftChange:    2,
	eventEndService:     3,
	eventClassChange:    4,
	eventRenege:         5,
}

func (e eventType) String() string {
	switch e {
	case eventSlottedService:
		return "slotted service"
	case eventShiftChange:
		return "shift change"
	case eventEndService:
		return "end service"
	case eventClassChange:
		return "class change"
	case eventRenege:
		return "renege"
	default:
		return "none"
	}
}

// blockedRef names an individual blocked into this node: it is still held
// by node origin.
type blockedRef struct {
	origin, individual int
}

// ServiceCentre is a station with servers, priority queues and operating
// policies. It performs exactly one transition per HaveEvent call.
type ServiceCentre struct {
	sim *Simulation
	cfg *CentreConfig
	id  int

	// c is the number of servers on duty; unlimited means no Server objects.
	c         int
	unlimited bool
	queueCap  int // Unlimited or >= 0

	servers  []*Server
	retired  []*Server
	serverID int

	queues      *PriorityQueues
	interrupted []*Individual
	blocked     []blockedRef

	discipline Discipline
	preempt    PreemptPolicy

	shifts          *cycleCursor
	nextShiftChange float64
	nextShiftLevel  int

	slots        *cycleCursor
	nextSlot     float64
	nextSlotSize int

	nextEventDate float64
	nextEventType eventType
}

func newServiceCentre(s *Simulation, id int) *ServiceCentre {
	cfg := &s.network.Centres[id-1]
	n := &ServiceCentre{
		sim:             s,
		cfg:             cfg,
		id:              id,
		c:               cfg.NumberOfServers,
		queueCap:        cfg.QueueCapacity,
		queues:          newPriorityQueues(s.network.NumPriorities()),
		discipline:      cfg.Discipline,
		preempt:         cfg.Preemption,
		nextShiftChange: math.Inf(1),
		nextSlot:        math.Inf(1),
		nextEventDate:   math.Inf(1),
	}
	if n.discipline == nil {
		n.discipline = FIFO{}
	}
	switch {
	case cfg.Schedule != nil:
		n.c, n.shifts = cfg.Schedule.cursor()
		n.nextShiftChange, n.nextShiftLevel = n.shifts.Next()
	case cfg.Slotted != nil:
		n.unlimited = true
		n.c = cfg.Slotted.MaxSlotSize()
		n.slots = cfg.Slotted.cursor()
		n.nextSlot, n.nextSlotSize = n.slots.Next()
	case cfg.NumberOfServers == Unlimited:
		n.unlimited = true
	}
	if !n.unlimited {
		n.addServers(n.c)
	}
	return n
}

// ID returns the node id (1-based).
func (n *ServiceCentre) ID() int {
	return n.id
}

// Name returns the configured name, or "Node <id>".
func (n *ServiceCentre) Name() string {
	if n.cfg.Name != "" {
		return n.cfg.Name
	}
	return fmt.Sprintf("Node %d", n.id)
}

// NextEventDate returns the date of this node's next transition.
func (n *ServiceCentre) NextEventDate() float64 {
	return n.nextEventDate
}

// Occupancy returns the number of individuals held at the node.
func (n *ServiceCentre) Occupancy() int {
	return n.queues.Len()
}

// NumberInService counts individuals in service, blocked ones included.
func (n *ServiceCentre) NumberInService() int {
	count := 0
	for _, ind := range n.queues.All() {
		if ind.InService() {
			count++
		}
	}
	return count
}

// NumberWaiting counts individuals not (or no longer) in service.
func (n *ServiceCentre) NumberWaiting() int {
	return n.Occupancy() - n.NumberInService()
}

// NumberBlocked counts individuals that finished service and cannot move on.
func (n *ServiceCentre) NumberBlocked() int {
	count := 0
	for _, ind := range n.queues.All() {
		if ind.Blocked {
			count++
		}
	}
	return count
}

// Individuals returns everyone held at the node, highest priority first.
func (n *ServiceCentre) Individuals() []*Individual {
	return n.queues.All()
}

// Queues exposes the per-priority tiers.
func (n *ServiceCentre) Queues() *PriorityQueues {
	return n.queues
}

// Servers returns the servers currently attached to the node (including
// off-duty servers still finishing an individual).
func (n *ServiceCentre) Servers() []*Server {
	return n.servers
}

// RetiredServers returns servers that went off duty and left.
func (n *ServiceCentre) RetiredServers() []*Server {
	return n.retired
}

// NumberOfServers returns the on-duty staffing level; Unlimited for
// infinite-server nodes.
func (n *ServiceCentre) NumberOfServers() int {
	if n.unlimited && n.slots == nil {
		return Unlimited
	}
	return n.c
}

// Capacity returns queue capacity plus staffing, or Unlimited.
func (n *ServiceCentre) Capacity() int {
	if n.queueCap == Unlimited || (n.unlimited && n.slots == nil) {
		return Unlimited
	}
	return n.queueCap + n.c
}

// Interrupted returns the individuals awaiting resumption, in service order.
func (n *ServiceCentre) Interrupted() []*Individual {
	return n.interrupted
}

// BlockedQueue returns (origin node, individual id) pairs blocked into this
// node, longest-waiting first.
func (n *ServiceCentre) BlockedQueue() [][2]int {
	out := make([][2]int, len(n.blocked))
	for i, b := range n.blocked {
		out[i] = [2]int{b.origin, b.individual}
	}
	return out
}

func (n *ServiceCentre) hasRoom() bool {
	capacity := n.Capacity()
	return capacity == Unlimited || n.Occupancy() < capacity
}

func (n *ServiceCentre) addBlocked(origin, individual int) {
	n.blocked = append(n.blocked, blockedRef{origin: origin, individual: individual})
}

func (n *ServiceCentre) now() float64 {
	return n.sim.clock
}

// UpdateNextEventDate recomputes the date and type of the next transition.
// Ties resolve by eventTypePriority.
func (n *ServiceCentre) UpdateNextEventDate() {
	next, typ := math.Inf(1), eventNone
	consider := func(date float64, t eventType) {
		if date < next || (date == next && typ != eventNone && eventTypePriority[t] < eventTypePriority[typ]) {
			next, typ = date, t
		}
	}
	consider(n.nextSlot, eventSlottedService)
	consider(n.nextShiftChange, eventShiftChange)
	consider(n.nextEndServiceDate(), eventEndService)
	consider(n.nextClassChangeDate(), eventClassChange)
	consider(n.nextRenegeDate(), eventRenege)
	n.nextEventDate, n.nextEventType = next, typ
}

func (n *ServiceCentre) nextEndServiceDate() float64 {
	next := math.Inf(1)
	for _, ind := range n.queues.All() {
		if ind.InService() && !ind.Blocked {
			next = math.Min(next, ind.ServiceEndDate.Value(math.Inf(1)))
		}
	}
	return next
}

func (n *ServiceCentre) nextClassChangeDate() float64 {
	next := math.Inf(1)
	for _, ind := range n.queues.All() {
		if ind.Waiting() {
			next = math.Min(next, ind.ClassChangeDate.Value(math.Inf(1)))
		}
	}
	return next
}

func (n *ServiceCentre) nextRenegeDate() float64 {
	next := math.Inf(1)
	for _, ind := range n.queues.All() {
		if ind.Waiting() {
			next = math.Min(next, ind.RenegingDate.Value(math.Inf(1)))
		}
	}
	return next
}

// HaveEvent performs the transition scheduled at NextEventDate.
func (n *ServiceCentre) HaveEvent() error {
	logrus.Debugf("[t=%.4f] %s: %s", n.now(), n.Name(), n.nextEventType)
	var err error
	switch n.nextEventType {
	case eventSlottedService:
		err = n.slottedService()
	case eventShiftChange:
		err = n.changeShift()
	case eventEndService:
		err = n.finishService()
	case eventClassChange:
		err = n.classChangeWhileWaiting()
	case eventRenege:
		err = n.renege()
	default:
		return fmt.Errorf("%s: HaveEvent called with nothing scheduled", n.Name())
	}
	if err != nil {
		return fmt.Errorf("%s at t=%g: %w", n.Name(), n.now(), err)
	}
	n.UpdateNextEventDate()
	return nil
}

// pickDue returns one of the individuals for which date(ind) equals the
// current event date, choosing uniformly among ties.
func (n *ServiceCentre) pickDue(eligible func(*Individual) bool, date func(*Individual) OptTime) *Individual {
	var due []*Individual
	for _, ind := range n.queues.All() {
		if !eligible(ind) {
			continue
		}
		if d, ok := date(ind).Get(); ok && d == n.nextEventDate {
			due = append(due, ind)
		}
	}
	if len(due) == 0 {
		return nil
	}
	return due[n.sim.pick(len(due))]
}

// addServers brings count new servers on duty.
func (n *ServiceCentre) addServers(count int) {
	for range count {
		n.serverID++
		srv := newServer(n.id, n.serverID, n.now())
		n.servers = append(n.servers, srv)
	}
}

// server resolves a reference held by an individual at this node.
func (n *ServiceCentre) server(id int) *Server {
	for _, srv := range n.servers {
		if srv.ID == id {
			return srv
		}
	}
	return nil
}

func (n *ServiceCentre) serverOf(ind *Individual) *Server {
	if ind.server == nil || ind.server.node != n.id {
		return nil
	}
	return n.server(ind.server.id)
}

// retire removes an off-duty idle server from the roster.
func (n *ServiceCentre) retire(srv *Server) {
	n.servers = slices.DeleteFunc(n.servers, func(s *Server) bool { return s == srv })
	srv.TotalTime = n.now() - srv.StartDate
	srv.finalBusy = srv.BusyTime
	srv.retired = true
	n.retired = append(n.retired, srv)
}

// wrapUp finalises server time accounting as if the run ended at t.
func (n *ServiceCentre) wrapUp(t float64) {
	for _, srv := range n.servers {
		srv.TotalTime = t - srv.StartDate
		srv.finalBusy = srv.BusyTime
		if srv.Busy {
			if ind := n.sim.individual(srv.occupant); ind != nil {
				srv.finalBusy += t - ind.ServiceStartDate.Value(t)
			}
		}
	}
}

// ServerUtilisation returns total busy time over total on-duty time across
// current and retired servers, as of the last wrap-up.
func (n *ServiceCentre) ServerUtilisation() float64 {
	busy, total := 0.0, 0.0
	for _, srv := range append(slices.Clone(n.servers), n.retired...) {
		busy += srv.finalBusy
		total += srv.TotalTime
	}
	if total <= 0 {
		return 0
	}
	return busy / total
}
