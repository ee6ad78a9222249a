package sim

import "math"

// ExitNode is the unbounded sink every individual ends up in.
type ExitNode struct {
	individuals []*Individual

	// NumberCompleted counts individuals routed out after service;
	// NumberNotCompleted counts rejected, baulked and reneged ones.
	NumberCompleted    int
	NumberNotCompleted int
}

// ID returns Exit.
func (e *ExitNode) ID() int {
	return Exit
}

// NextEventDate is always +Inf.
func (e *ExitNode) NextEventDate() float64 {
	return math.Inf(1)
}

// Individuals returns everyone who has left, in order of departure.
func (e *ExitNode) Individuals() []*Individual {
	return e.individuals
}

func (e *ExitNode) hasRoom() bool {
	return true
}

func (e *ExitNode) accept(ind *Individual, completed bool) error {
	ind.Node = Exit
	e.individuals = append(e.individuals, ind)
	if completed {
		e.NumberCompleted++
	} else {
		e.NumberNotCompleted++
	}
	return nil
}
