package sim

import (
	"math"
	"slices"

	"github.com/sirupsen/logrus"
)

// maybePreempt lets a newly waiting individual displace a lower-priority one
// in service when the node's pre-emption policy allows it.
func (n *ServiceCentre) maybePreempt(ind *Individual) error {
	if n.preempt == PreemptNone || n.unlimited {
		return nil
	}
	victim := n.preemptionVictim(ind.Priority)
	if victim == nil {
		return nil
	}
	if n.preempt == PreemptReroute {
		return n.rerouteFromService(victim, ind)
	}
	srv := n.interrupt(victim, n.preempt)
	return n.startService(ind, srv)
}

// preemptionVictim returns the in-service, unblocked individual on an on-duty
// server with the lowest priority below priority; the latest to start
// service among equals.
func (n *ServiceCentre) preemptionVictim(priority int) *Individual {
	var victim *Individual
	for _, ind := range n.queues.All() {
		if !ind.InService() || ind.Blocked || ind.Priority <= priority {
			continue
		}
		if srv := n.serverOf(ind); srv == nil || srv.OffDuty {
			continue
		}
		if victim == nil || ind.Priority > victim.Priority ||
			(ind.Priority == victim.Priority && ind.ServiceStartDate.Value(0) >= victim.ServiceStartDate.Value(0)) {
			victim = ind
		}
	}
	return victim
}

// interrupt cuts victim's service short and files it for resumption under
// policy. It returns the server released, if any.
func (n *ServiceCentre) interrupt(victim *Individual, policy PreemptPolicy) *Server {
	now := n.now()
	victim.QueueSizeAtDeparture = n.Occupancy()
	victim.ExitDate = At(now)
	n.writeRecord(victim, RecordInterruptedService, 0)
	victim.ExitDate = OptTime{}
	victim.QueueSizeAtDeparture = NoQueueSize

	victim.remainingTime = victim.ServiceEndDate.Value(now) - now
	srv := n.serverOf(victim)
	if srv != nil {
		n.detachServer(srv, victim)
	}
	victim.ServiceStartDate = OptTime{}
	victim.ServiceEndDate = OptTime{}
	victim.Interrupted = true
	victim.interruptPolicy = policy

	at, _ := slices.BinarySearchFunc(n.interrupted, victim, func(a, b *Individual) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		switch da, db := a.ArrivalDate.Value(0), b.ArrivalDate.Value(0); {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return -1
	})
	n.interrupted = slices.Insert(n.interrupted, at, victim)
	logrus.Debugf("[t=%.4f] %s: individual %d interrupted (%s)", now, n.Name(), victim.ID, policy)
	return srv
}

func (n *ServiceCentre) removeInterrupted(ind *Individual) {
	n.interrupted = slices.DeleteFunc(n.interrupted, func(other *Individual) bool { return other == ind })
}

// rerouteFromService sends victim onward and gives its server to ind. When
// the reroute destination is full nothing happens.
func (n *ServiceCentre) rerouteFromService(victim, ind *Individual) error {
	dest, ok, err := n.rerouteDestination(victim)
	if err != nil || !ok {
		return err
	}
	srv := n.depart(victim, dest.ID(), RecordInterruptedService)
	if err := n.startService(ind, srv); err != nil {
		return err
	}
	if err := dest.accept(victim, true); err != nil {
		return err
	}
	return n.releaseBlocked()
}

// rerouteDestination resolves where a rerouted individual goes and whether it
// has room there.
func (n *ServiceCentre) rerouteDestination(ind *Individual) (receiver, bool, error) {
	destID, err := n.sim.network.Routing.NextNodeForRerouting(ind, n.id)
	if err != nil {
		return nil, false, err
	}
	dest, err := n.sim.receiver(destID)
	if err != nil {
		return nil, false, err
	}
	return dest, dest.hasRoom(), nil
}

// changeShift moves to the next staffing level: every current server goes
// off duty (idle ones leave at once, busy ones are displaced under the
// schedule's policy or finish their individual) and a fresh set comes on.
func (n *ServiceCentre) changeShift() error {
	level := n.nextShiftLevel
	n.nextShiftChange, n.nextShiftLevel = n.shifts.Next()
	policy := n.cfg.Schedule.Preemption
	logrus.Debugf("[t=%.4f] %s: shift change to %d servers", n.now(), n.Name(), level)

	var rerouted []*Individual
	var destinations []receiver
	for _, srv := range slices.Clone(n.servers) {
		if srv.OffDuty {
			continue
		}
		srv.OffDuty = true
		if !srv.Busy {
			n.retire(srv)
			continue
		}
		ind := n.sim.individual(srv.occupant)
		if policy == PreemptNone || ind == nil || ind.Blocked {
			continue
		}
		if policy == PreemptReroute {
			dest, ok, err := n.rerouteDestination(ind)
			if err != nil {
				return err
			}
			if ok {
				n.depart(ind, dest.ID(), RecordInterruptedService)
				rerouted = append(rerouted, ind)
				destinations = append(destinations, dest)
				continue
			}
			n.interrupt(ind, PreemptRestart)
			continue
		}
		n.interrupt(ind, policy)
	}

	n.c = level
	n.addServers(level)
	if err := n.serveAllFreeServers(); err != nil {
		return err
	}
	for i, ind := range rerouted {
		if err := destinations[i].accept(ind, true); err != nil {
			return err
		}
	}
	return n.releaseAllBlocked()
}

// slottedService admits waiting individuals into service at a slot instant.
func (n *ServiceCentre) slottedService() error {
	size := n.nextSlotSize
	n.nextSlot, n.nextSlotSize = n.slots.Next()
	cfg := n.cfg.Slotted

	available := size
	if cfg.Capacitated {
		if cfg.Preemption != PreemptNone {
			for _, ind := range n.queues.All() {
				if ind.InService() && !ind.Blocked {
					n.interrupt(ind, cfg.Preemption)
				}
			}
		}
		available = size - n.NumberInService()
	}
	logrus.Debugf("[t=%.4f] %s: slot of %d, admitting up to %d", n.now(), n.Name(), size, available)
	for range available {
		var next *Individual
		if len(n.interrupted) > 0 {
			next = n.interrupted[0]
		} else if next = n.chooseNextWaiting(); next == nil {
			break
		}
		if err := n.startService(next, nil); err != nil {
			return err
		}
	}
	return nil
}

// scheduleClassChange samples when (and into which class) a waiting
// individual changes class, taking the earliest finite date.
func (n *ServiceCentre) scheduleClassChange(ind *Individual) error {
	ind.ClassChangeDate = OptTime{}
	if n.cfg.ClassChangeTimes == nil || n.cfg.ClassChangeTimes[ind.Class] == nil {
		return nil
	}
	now := n.now()
	rng := n.sim.rng.ForSubsystem(SubsystemPatience)
	best := math.Inf(1)
	for to, s := range n.cfg.ClassChangeTimes[ind.Class] {
		if s == nil || to == ind.Class {
			continue
		}
		d, err := drawDuration(s, now, rng, "class change time")
		if err != nil {
			return err
		}
		if now+d < best {
			best = now + d
			ind.NextClass = to
		}
	}
	if !math.IsInf(best, 1) {
		ind.ClassChangeDate = At(best)
	}
	return nil
}

// classChangeWhileWaiting applies a due class change; a promoted individual
// may then claim a server or pre-empt.
func (n *ServiceCentre) classChangeWhileWaiting() error {
	ind := n.pickDue(
		func(ind *Individual) bool { return ind.Waiting() },
		func(ind *Individual) OptTime { return ind.ClassChangeDate },
	)
	if ind == nil {
		return nil
	}
	n.changeClass(ind, ind.NextClass)
	if err := n.scheduleClassChange(ind); err != nil {
		return err
	}
	return n.beginServiceOnAccept(ind)
}
