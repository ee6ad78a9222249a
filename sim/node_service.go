package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// accept takes an individual into the node and starts its service if a
// server is free (or pre-empts one if policy allows).
func (n *ServiceCentre) accept(ind *Individual, _ bool) error {
	now := n.now()
	ind.Node = n.id
	ind.QueueSizeAtArrival = n.Occupancy()
	ind.arrivalClass = ind.Class
	ind.ArrivalDate = At(now)
	n.queues.Enqueue(ind)
	n.sim.tracker.ChangeStateAccept(n.id, ind)
	logrus.Debugf("[t=%.4f] %s: accepted individual %d (occupancy %d)", now, n.Name(), ind.ID, n.Occupancy())

	if n.cfg.Reneging != nil && n.cfg.Reneging[ind.Class] != nil {
		d, err := drawDuration(n.cfg.Reneging[ind.Class], now, n.sim.rng.ForSubsystem(SubsystemPatience), "reneging time")
		if err != nil {
			return err
		}
		if !math.IsInf(d, 1) {
			ind.RenegingDate = At(now + d)
		}
	}
	if err := n.scheduleClassChange(ind); err != nil {
		return err
	}
	return n.beginServiceOnAccept(ind)
}

func (n *ServiceCentre) beginServiceOnAccept(ind *Individual) error {
	if n.slots != nil {
		return nil
	}
	if n.unlimited {
		return n.startService(ind, nil)
	}
	if srv := n.freeServer(ind); srv != nil {
		return n.startService(ind, srv)
	}
	return n.maybePreempt(ind)
}

// freeServer returns the best idle on-duty server for ind, or nil.
func (n *ServiceCentre) freeServer(ind *Individual) *Server {
	var best *Server
	bestRank := math.Inf(1)
	for _, srv := range n.servers {
		if srv.Busy || srv.OffDuty {
			continue
		}
		if n.cfg.ServerPriority == nil {
			return srv
		}
		if rank := n.cfg.ServerPriority(srv, ind); best == nil || rank < bestRank {
			best, bestRank = srv, rank
		}
	}
	return best
}

// startService puts ind into service on srv (nil for nodes without servers).
func (n *ServiceCentre) startService(ind *Individual, srv *Server) error {
	now := n.now()
	if srv != nil {
		n.attachServer(srv, ind)
	}
	d, err := n.serviceTimeFor(ind)
	if err != nil {
		return err
	}
	ind.ServiceStartDate = At(now)
	ind.ServiceTime = d
	ind.ServiceEndDate = At(now + d)
	ind.RenegingDate = OptTime{}
	ind.ClassChangeDate = OptTime{}
	logrus.Debugf("[t=%.4f] %s: individual %d starts service, ends at %.4f", now, n.Name(), ind.ID, now+d)
	return nil
}

// serviceTimeFor returns the duration of the service about to start,
// honouring the interruption policy of a resuming individual.
func (n *ServiceCentre) serviceTimeFor(ind *Individual) (float64, error) {
	if ind.Interrupted {
		policy := ind.interruptPolicy
		n.removeInterrupted(ind)
		ind.Interrupted = false
		ind.interruptPolicy = PreemptNone
		switch policy {
		case PreemptResume:
			return ind.remainingTime, nil
		case PreemptRestart:
			if orig, ok := ind.OriginalServiceTime.Get(); ok {
				return orig, nil
			}
		}
	}
	d, err := drawDuration(n.sim.network.Classes[ind.Class].Services[n.id-1], n.now(),
		n.sim.rng.ForSubsystem(SubsystemService), "service time")
	if err != nil {
		return 0, err
	}
	if !ind.OriginalServiceTime.IsSet() {
		ind.OriginalServiceTime = At(d)
	}
	return d, nil
}

func (n *ServiceCentre) attachServer(srv *Server, ind *Individual) {
	srv.occupant = ind.ID
	srv.Busy = true
	ind.server = &serverRef{node: n.id, id: srv.ID}
	n.sim.detector.ActionAtAttachServer(n, srv, ind)
}

// detachServer frees srv, accruing the occupancy period that just ended.
// Off-duty servers retire on release.
func (n *ServiceCentre) detachServer(srv *Server, ind *Individual) {
	n.sim.detector.ActionAtDetachServer(srv)
	srv.BusyTime += n.now() - ind.ServiceStartDate.Value(n.now())
	srv.occupant = 0
	srv.Busy = false
	ind.server = nil
	if srv.OffDuty {
		n.retire(srv)
	}
}

// serveFreedServer hands a newly idle server to the next individual:
// interrupted individuals first, then the discipline's pick.
func (n *ServiceCentre) serveFreedServer(srv *Server) error {
	if srv == nil || srv.retired || srv.Busy || srv.OffDuty {
		return nil
	}
	if len(n.interrupted) > 0 {
		return n.startService(n.interrupted[0], srv)
	}
	if next := n.chooseNextWaiting(); next != nil {
		return n.startService(next, srv)
	}
	return nil
}

// serveAllFreeServers fills every idle on-duty server.
func (n *ServiceCentre) serveAllFreeServers() error {
	for _, srv := range append([]*Server(nil), n.servers...) {
		if err := n.serveFreedServer(srv); err != nil {
			return err
		}
	}
	return nil
}

// chooseNextWaiting applies the discipline to the highest non-empty tier.
func (n *ServiceCentre) chooseNextWaiting() *Individual {
	waiting := n.queues.Waiting()
	if len(waiting) == 0 {
		return nil
	}
	return n.discipline.Choose(waiting, n.now(), n.sim.rng.ForSubsystem(SubsystemDecisions))
}
