// Package metrics exports the outcome of a run as Prometheus gauges, for
// scraping through a node-exporter textfile collector or for diffing runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inference-sim/qsim/sim"
	"github.com/inference-sim/qsim/sim/trace"
)

const namespace = "qsim"

// Recorder owns a private registry so several runs can be exported from one
// process.
type Recorder struct {
	Registry *prometheus.Registry

	clock       prometheus.Gauge
	deadlocked  prometheus.Gauge
	individuals *prometheus.GaugeVec

	utilisation *prometheus.GaugeVec
	meanWait    *prometheus.GaugeVec
	p95Wait     *prometheus.GaugeVec
	served      *prometheus.GaugeVec
	blocked     *prometheus.GaugeVec
}

// NewRecorder registers the run gauges on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		Registry: reg,
		clock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_time",
			Help:      "Simulation clock when the run stopped",
		}),
		deadlocked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deadlocked",
			Help:      "1 if the run stopped in deadlock",
		}),
		individuals: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "individuals",
			Help:      "Individuals by outcome: generated, accepted, completed, in_system, rejected, baulked, reneged",
		}, []string{"outcome"}),
		utilisation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "utilisation",
			Help:      "Busy time over on-duty time across the node's servers",
		}, []string{"node"}),
		meanWait: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "mean_waiting_time",
			Help:      "Mean waiting time of completed services",
		}, []string{"node"}),
		p95Wait: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "p95_waiting_time",
			Help:      "95th percentile waiting time of completed services",
		}, []string{"node"}),
		served: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "services",
			Help:      "Completed services",
		}, []string{"node"}),
		blocked: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "blocked_fraction",
			Help:      "Share of services followed by blocking",
		}, []string{"node"}),
	}
}

// Observe sets every gauge from a finished simulation and its summary.
func (r *Recorder) Observe(s *sim.Simulation, summary *trace.Summary) {
	r.clock.Set(s.Clock())
	if dead, _ := s.Deadlocked(); dead {
		r.deadlocked.Set(1)
	} else {
		r.deadlocked.Set(0)
	}
	c := s.Counts()
	for outcome, v := range map[string]int{
		"generated": c.Generated,
		"accepted":  c.Accepted,
		"completed": c.Completed,
		"in_system": c.InSystem,
		"rejected":  c.Rejected,
		"baulked":   c.Baulked,
		"reneged":   c.Reneged,
	} {
		r.individuals.WithLabelValues(outcome).Set(float64(v))
	}
	for _, n := range s.Nodes() {
		label := n.Name()
		r.utilisation.WithLabelValues(label).Set(n.ServerUtilisation())
		if summary == nil || n.ID() > len(summary.Nodes) {
			continue
		}
		ns := summary.Nodes[n.ID()-1]
		r.meanWait.WithLabelValues(label).Set(ns.Wait.Mean)
		r.p95Wait.WithLabelValues(label).Set(ns.Wait.P95)
		r.served.WithLabelValues(label).Set(float64(ns.Served))
		r.blocked.WithLabelValues(label).Set(ns.BlockedFraction)
	}
}

// WriteTextfile writes the registry in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
