package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// finishService completes the earliest-ending service (random among ties),
// applies the class change matrix, routes the individual and either
// releases or blocks it.
func (n *ServiceCentre) finishService() error {
	ind := n.pickDue(
		func(ind *Individual) bool { return ind.InService() && !ind.Blocked },
		func(ind *Individual) OptTime { return ind.ServiceEndDate },
	)
	if ind == nil {
		return fmt.Errorf("no individual finishes service at t=%g", n.now())
	}
	n.applyClassChangeMatrix(ind)
	destID, err := n.sim.network.Routing.NextNode(ind, n.id)
	if err != nil {
		return err
	}
	dest, err := n.sim.receiver(destID)
	if err != nil {
		return fmt.Errorf("routing individual %d from node %d: %w", ind.ID, n.id, err)
	}
	ind.Destination = dest.ID()
	if dest.hasRoom() {
		return n.release(ind, dest)
	}
	n.block(ind, dest.(*ServiceCentre))
	return nil
}

// applyClassChangeMatrix draws the class an individual leaves with.
func (n *ServiceCentre) applyClassChangeMatrix(ind *Individual) {
	if n.cfg.ClassChangeMatrix == nil {
		return
	}
	row := n.cfg.ClassChangeMatrix[ind.Class]
	u := n.sim.rng.ForSubsystem(SubsystemDecisions).Float64()
	next, acc := len(row)-1, 0.0
	for j, p := range row {
		acc += p
		if u < acc {
			next = j
			break
		}
	}
	n.changeClass(ind, next)
}

// changeClass switches ind to class to, re-filing it if its priority moved.
func (n *ServiceCentre) changeClass(ind *Individual, to int) {
	from := ind.Class
	oldPriority := ind.Priority
	ind.PreviousClass = from
	ind.PreviousPriority = oldPriority
	ind.Class = to
	ind.Priority = n.sim.network.Classes[to].Priority
	n.queues.Move(ind, oldPriority)
	if from != to {
		n.sim.tracker.ChangeStateClassChange(n.id, ind, from, to)
	}
}

// release sends ind to dest: its server goes to the next individual, ind
// is handed over and the longest-blocked individual takes the room left behind.
func (n *ServiceCentre) release(ind *Individual, dest receiver) error {
	freed := n.depart(ind, dest.ID(), RecordService)
	if err := n.serveFreedServer(freed); err != nil {
		return err
	}
	if err := dest.accept(ind, true); err != nil {
		return err
	}
	return n.releaseBlocked()
}

// depart removes ind from the node, writes the record of the visit and
// returns the server it held (nil for server-less nodes).
func (n *ServiceCentre) depart(ind *Individual, destination int, kind RecordKind) *Server {
	now := n.now()
	wasBlocked := ind.Blocked
	ind.QueueSizeAtDeparture = n.Occupancy()
	ind.ExitDate = At(now)
	n.queues.Remove(ind, ind.Priority)
	n.writeRecord(ind, kind, destination)

	freed := n.serverOf(ind)
	if freed != nil {
		n.detachServer(freed, ind)
	}
	ind.resetForNextNode()
	n.sim.tracker.ChangeStateRelease(n.id, destination, ind, wasBlocked)
	logrus.Debugf("[t=%.4f] %s: individual %d leaves for %d (%s)", now, n.Name(), ind.ID, destination, kind)
	return freed
}

// block holds ind (and its server) until dest has room.
func (n *ServiceCentre) block(ind *Individual, dest *ServiceCentre) {
	ind.Blocked = true
	n.sim.tracker.ChangeStateBlock(n.id, dest.id, ind)
	dest.addBlocked(n.id, ind.ID)
	if !n.unlimited {
		n.sim.detector.ActionAtBlockage(ind, n, dest)
	}
	n.sim.uncheckedBlockage = true
	logrus.Debugf("[t=%.4f] %s: individual %d blocked by node %d", n.now(), n.Name(), ind.ID, dest.id)
}

// releaseBlocked admits the longest-waiting blocked individual if there is
// room. The origin's own release cascades further.
func (n *ServiceCentre) releaseBlocked() error {
	if len(n.blocked) == 0 || !n.hasRoom() {
		return nil
	}
	ref := n.blocked[0]
	n.blocked = n.blocked[1:]
	origin := n.sim.centre(ref.origin)
	ind := n.sim.individual(ref.individual)
	if origin == nil || ind == nil {
		return fmt.Errorf("blocked queue of node %d references missing individual %d at node %d",
			n.id, ref.individual, ref.origin)
	}
	return origin.release(ind, n)
}

// releaseAllBlocked admits blocked individuals while there is room.
func (n *ServiceCentre) releaseAllBlocked() error {
	for len(n.blocked) > 0 && n.hasRoom() {
		if err := n.releaseBlocked(); err != nil {
			return err
		}
	}
	return nil
}

// renege removes a waiting individual whose patience ran out and sends it to
// its reneging destination (the exit unless configured otherwise).
func (n *ServiceCentre) renege() error {
	ind := n.pickDue(
		func(ind *Individual) bool { return ind.Waiting() },
		func(ind *Individual) OptTime { return ind.RenegingDate },
	)
	if ind == nil {
		return fmt.Errorf("no individual reneges at t=%g", n.now())
	}
	destID := 0
	if n.cfg.RenegingDestinations != nil {
		destID = n.cfg.RenegingDestinations[ind.Class]
	}
	if destID == 0 {
		var err error
		if destID, err = n.sim.network.Routing.NextNodeForJockeying(ind, n.id); err != nil {
			return err
		}
	}
	dest, err := n.sim.receiver(destID)
	if err != nil {
		return fmt.Errorf("reneging individual %d from node %d: %w", ind.ID, n.id, err)
	}
	if !dest.hasRoom() {
		dest = n.sim.exit
	}

	n.depart(ind, dest.ID(), RecordRenege)
	completed := true
	if dest.ID() == Exit {
		n.sim.reneged++
		completed = false
	}
	if err := dest.accept(ind, completed); err != nil {
		return err
	}
	return n.releaseBlocked()
}

// writeRecord appends a journal entry describing the visit that is ending.
func (n *ServiceCentre) writeRecord(ind *Individual, kind RecordKind, destination int) {
	exit := ind.ExitDate.Value(n.now())
	r := Record{
		Kind:                 kind,
		ID:                   ind.ID,
		OriginalClass:        ind.arrivalClass,
		Class:                ind.Class,
		Node:                 n.id,
		ArrivalDate:          ind.ArrivalDate.Value(exit),
		ExitDate:             exit,
		Destination:          destination,
		QueueSizeAtArrival:   ind.QueueSizeAtArrival,
		QueueSizeAtDeparture: ind.QueueSizeAtDeparture,
	}
	if ind.server != nil {
		r.ServerID = ind.server.id
	}
	if start, ok := ind.ServiceStartDate.Get(); ok {
		r.ServiceStartDate = At(start)
		r.WaitingTime = ind.ServiceStartDate.Sub(ind.ArrivalDate)
		switch kind {
		case RecordService:
			r.ServiceTime = At(ind.ServiceTime)
			r.ServiceEndDate = ind.ServiceEndDate
			r.TimeBlocked = At(exit).Sub(ind.ServiceEndDate)
		case RecordInterruptedService:
			r.ServiceTime = At(exit - start)
		}
	}
	ind.appendRecord(r)
}
