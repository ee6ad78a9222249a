// Implements the per-priority wait queues of a service centre.
// Individuals stay in their tier from arrival until they leave the node,
// whether waiting, in service, interrupted or blocked.

package sim

import (
	"fmt"
	"strings"
)

// PriorityQueues holds one FIFO tier per priority class; tier 0 is served first.
type PriorityQueues struct {
	tiers [][]*Individual
	size  int
}

func newPriorityQueues(numPriorities int) *PriorityQueues {
	return &PriorityQueues{tiers: make([][]*Individual, numPriorities)}
}

// Enqueue adds an individual to the back of its priority tier.
func (pq *PriorityQueues) Enqueue(ind *Individual) {
	pq.tiers[ind.Priority] = append(pq.tiers[ind.Priority], ind)
	pq.size++
}

// Remove deletes an individual from the tier it is filed under.
// Panics if the individual is not present.
func (pq *PriorityQueues) Remove(ind *Individual, priority int) {
	tier := pq.tiers[priority]
	for i, other := range tier {
		if other == ind {
			pq.tiers[priority] = append(tier[:i:i], tier[i+1:]...)
			pq.size--
			return
		}
	}
	panic(fmt.Sprintf("PriorityQueues.Remove: individual %d not in tier %d", ind.ID, priority))
}

// Move re-files an individual whose priority changed, keeping arrival order
// within the destination tier.
func (pq *PriorityQueues) Move(ind *Individual, from int) {
	if from == ind.Priority {
		return
	}
	pq.Remove(ind, from)
	tier := pq.tiers[ind.Priority]
	at := len(tier)
	for i, other := range tier {
		if other.ArrivalDate.Value(0) > ind.ArrivalDate.Value(0) {
			at = i
			break
		}
	}
	tier = append(tier, nil)
	copy(tier[at+1:], tier[at:])
	tier[at] = ind
	pq.tiers[ind.Priority] = tier
	pq.size++
}

// Len returns the number of individuals across all tiers.
func (pq *PriorityQueues) Len() int {
	return pq.size
}

// Tier returns the individuals of one priority class in arrival order.
// The returned slice is internal storage and MUST NOT be modified.
func (pq *PriorityQueues) Tier(priority int) []*Individual {
	return pq.tiers[priority]
}

// NumTiers returns the number of priority classes.
func (pq *PriorityQueues) NumTiers() int {
	return len(pq.tiers)
}

// All returns every individual, highest priority tier first.
func (pq *PriorityQueues) All() []*Individual {
	out := make([]*Individual, 0, pq.size)
	for _, tier := range pq.tiers {
		out = append(out, tier...)
	}
	return out
}

// Waiting returns the waiting individuals of the highest-priority tier that
// has any, or nil.
func (pq *PriorityQueues) Waiting() []*Individual {
	for _, tier := range pq.tiers {
		var waiting []*Individual
		for _, ind := range tier {
			if ind.Waiting() {
				waiting = append(waiting, ind)
			}
		}
		if len(waiting) > 0 {
			return waiting
		}
	}
	return nil
}

func (pq *PriorityQueues) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for p, tier := range pq.tiers {
		if p > 0 {
			sb.WriteString(" |")
		}
		for _, ind := range tier {
			sb.WriteString(fmt.Sprintf(" %d", ind.ID))
		}
	}
	sb.WriteString(" ]")
	return sb.String()
}
