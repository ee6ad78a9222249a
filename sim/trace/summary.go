// Package trace summarises and exports the record journal of a finished run.
package trace

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/qsim/sim"
)

// Stats describes a sample of durations.
type Stats struct {
	Count int
	Mean  float64
	P50   float64
	P90   float64
	P95   float64
	Max   float64
}

func describe(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return Stats{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.9, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:   sorted[len(sorted)-1],
	}
}

// NodeSummary aggregates the records written at one node.
type NodeSummary struct {
	Node        int
	Served      int
	Interrupted int
	Reneged     int
	Baulked     int
	Rejected    int
	Wait        Stats
	Service     Stats
	Blocked     Stats
	// BlockedFraction is the share of services followed by any blocking.
	BlockedFraction float64
}

// ClassSummary aggregates completed services by the class individuals left with.
type ClassSummary struct {
	Class   int
	Served  int
	Wait    Stats
	Service Stats
}

// Summary is the digest of a run's records.
type Summary struct {
	Records int
	Nodes   []NodeSummary
	Classes []ClassSummary
}

// Summarize digests records of a network with numNodes nodes and numClasses
// classes, ignoring records of visits that started before warmup.
// Safe for empty input (returns zero-value fields).
func Summarize(records []sim.Record, numNodes, numClasses int, warmup float64) *Summary {
	s := &Summary{
		Nodes:   make([]NodeSummary, numNodes),
		Classes: make([]ClassSummary, numClasses),
	}
	waits := make([][]float64, numNodes)
	services := make([][]float64, numNodes)
	blocked := make([][]float64, numNodes)
	classWaits := make([][]float64, numClasses)
	classServices := make([][]float64, numClasses)

	for _, r := range records {
		if r.ArrivalDate < warmup || r.Node < 1 || r.Node > numNodes {
			continue
		}
		s.Records++
		ns := &s.Nodes[r.Node-1]
		switch r.Kind {
		case sim.RecordService:
			ns.Served++
			w, _ := r.WaitingTime.Get()
			st, _ := r.ServiceTime.Get()
			b, _ := r.TimeBlocked.Get()
			waits[r.Node-1] = append(waits[r.Node-1], w)
			services[r.Node-1] = append(services[r.Node-1], st)
			blocked[r.Node-1] = append(blocked[r.Node-1], b)
			if r.Class >= 0 && r.Class < numClasses {
				classWaits[r.Class] = append(classWaits[r.Class], w)
				classServices[r.Class] = append(classServices[r.Class], st)
			}
		case sim.RecordInterruptedService:
			ns.Interrupted++
		case sim.RecordRenege:
			ns.Reneged++
		case sim.RecordBaulk:
			ns.Baulked++
		case sim.RecordRejection:
			ns.Rejected++
		}
	}
	for i := range s.Nodes {
		ns := &s.Nodes[i]
		ns.Node = i + 1
		ns.Wait = describe(waits[i])
		ns.Service = describe(services[i])
		ns.Blocked = describe(blocked[i])
		if ns.Served > 0 {
			n := 0
			for _, b := range blocked[i] {
				if b > 0 {
					n++
				}
			}
			ns.BlockedFraction = float64(n) / float64(ns.Served)
		}
	}
	for k := range s.Classes {
		s.Classes[k] = ClassSummary{
			Class:   k,
			Served:  len(classWaits[k]),
			Wait:    describe(classWaits[k]),
			Service: describe(classServices[k]),
		}
	}
	return s
}
