package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/inference-sim/qsim/sim"
	"github.com/inference-sim/qsim/sim/trace"
)

// maxStatesPrinted bounds the state-probability table.
const maxStatesPrinted = 10

// printSummary writes the run counters and per-node statistics to out.
func printSummary(out io.Writer, s *sim.Simulation, summary *trace.Summary) {
	c := s.Counts()
	fmt.Fprintln(out, "=== Simulation Summary ===")
	fmt.Fprintf(out, "Simulated time : %.4f\n", s.Clock())
	if dead, at := s.Deadlocked(); dead {
		fmt.Fprintf(out, "Deadlocked at  : %.4f\n", at)
	}
	fmt.Fprintf(out, "Generated      : %d\n", c.Generated)
	fmt.Fprintf(out, "Accepted       : %d\n", c.Accepted)
	fmt.Fprintf(out, "Completed      : %d\n", c.Completed)
	fmt.Fprintf(out, "In system      : %d\n", c.InSystem)
	fmt.Fprintf(out, "Rejected       : %d\n", c.Rejected)
	fmt.Fprintf(out, "Baulked        : %d\n", c.Baulked)
	fmt.Fprintf(out, "Reneged        : %d\n", c.Reneged)
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "node\tserved\tinterrupted\treneged\tmean wait\tp95 wait\tmean service\tblocked\tutilisation\t")
	for _, n := range s.Nodes() {
		ns := summary.Nodes[n.ID()-1]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.4f\t%.4f\t%.4f\t%.3f\t%.3f\t\n",
			n.Name(), ns.Served, ns.Interrupted, ns.Reneged,
			ns.Wait.Mean, ns.Wait.P95, ns.Service.Mean, ns.BlockedFraction, n.ServerUtilisation())
	}
	tw.Flush()
}

// printStates writes the most visited states of the tracker's history.
func printStates(out io.Writer, s *sim.Simulation, warmup float64) {
	probs := sim.StateProbabilities(s.Tracker().History(), warmup, s.Clock())
	states := sim.SortedStates(probs)
	sort.SliceStable(states, func(i, j int) bool { return probs[states[i]] > probs[states[j]] })
	if len(states) > maxStatesPrinted {
		states = states[:maxStatesPrinted]
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== State Probabilities ===")
	for _, st := range states {
		fmt.Fprintf(out, "%-40s %.4f\n", st, probs[st])
	}
	if ttd := s.TimesToDeadlock(); ttd != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "=== Times To Deadlock ===")
		for _, st := range sim.SortedStates(ttd) {
			fmt.Fprintf(out, "%-40s %.4f\n", st, ttd[st])
		}
	}
}
