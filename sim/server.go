package sim

import "fmt"

// Server is one unit of service capacity at a finite-capacity ServiceCentre.
type Server struct {
	ID   int
	Node int

	occupant int // individual id, 0 when idle
	Busy     bool
	OffDuty  bool

	// StartDate is when the server came on shift.
	StartDate float64
	// BusyTime accumulates completed occupancy periods.
	BusyTime float64
	// TotalTime is set when the server retires or the run is wrapped up.
	TotalTime float64
	// finalBusy is BusyTime plus any occupancy still open at wrap-up.
	finalBusy float64
	retired   bool
}

func newServer(node, id int, now float64) *Server {
	return &Server{ID: id, Node: node, StartDate: now}
}

// Occupant returns the id of the individual holding the server, or 0.
func (s *Server) Occupant() int {
	return s.occupant
}

// FinalBusyTime is the busy time as of the last wrap-up (or retirement).
func (s *Server) FinalBusyTime() float64 {
	return s.finalBusy
}

// Utilisation returns busy/total as of the last wrap-up; 0 for a server that
// never accrued time.
func (s *Server) Utilisation() float64 {
	if s.TotalTime <= 0 {
		return 0
	}
	return s.finalBusy / s.TotalTime
}

func (s *Server) String() string {
	return fmt.Sprintf("Server %d at Node %d", s.ID, s.Node)
}

// serverRef identifies a server without holding a pointer to it.
type serverRef struct {
	node, id int
}
