package sim

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
)

// Discipline picks which waiting individual is served next.
// It is only ever handed the waiting individuals of a single priority tier,
// in arrival order, and must return one of them.
type Discipline interface {
	Choose(waiting []*Individual, now float64, rng *rand.Rand) *Individual
}

// DisciplineFunc adapts a plain function to the Discipline interface.
type DisciplineFunc func(waiting []*Individual, now float64, rng *rand.Rand) *Individual

// Choose implements Discipline.
func (f DisciplineFunc) Choose(waiting []*Individual, now float64, rng *rand.Rand) *Individual {
	return f(waiting, now, rng)
}

// FIFO serves in order of arrival at the node (the default).
type FIFO struct{}

func (FIFO) Choose(waiting []*Individual, _ float64, _ *rand.Rand) *Individual {
	return waiting[0]
}

// LIFO serves the most recent arrival first.
type LIFO struct{}

func (LIFO) Choose(waiting []*Individual, _ float64, _ *rand.Rand) *Individual {
	return waiting[len(waiting)-1]
}

// SIRO serves in random order.
type SIRO struct{}

func (SIRO) Choose(waiting []*Individual, _ float64, rng *rand.Rand) *Individual {
	return waiting[rng.IntN(len(waiting))]
}

// validDisciplines is the set of recognized discipline names.
var validDisciplines = map[string]bool{"": true, "fifo": true, "lifo": true, "siro": true}

// IsValidDiscipline returns true if name is a recognized discipline.
func IsValidDiscipline(name string) bool {
	return validDisciplines[name]
}

// ValidDisciplineNames returns the recognized non-empty names, sorted.
func ValidDisciplineNames() []string {
	names := slices.Sorted(maps.Keys(validDisciplines))
	return slices.DeleteFunc(names, func(n string) bool { return n == "" })
}

// NewDiscipline creates a Discipline by name.
// Empty string defaults to FIFO.
func NewDiscipline(name string) (Discipline, error) {
	switch name {
	case "", "fifo":
		return FIFO{}, nil
	case "lifo":
		return LIFO{}, nil
	case "siro":
		return SIRO{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownDiscipline)
	}
}

// ServerPriorityFunc ranks free servers for an individual; the lowest value wins.
// Ties keep server order.
type ServerPriorityFunc func(srv *Server, ind *Individual) float64
