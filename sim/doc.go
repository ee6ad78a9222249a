// Package sim provides the discrete-event simulation kernel for qsim,
// a simulator of multi-class queueing networks.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - simulation.go: the next-event loop, stopping conditions and counters
//   - node.go: ServiceCentre state and the per-node event precedence
//   - node_service.go, node_release.go, node_preempt.go: the transitions
//     (service start/end, release and blocking, pre-emption, staffing)
//   - arrival.go, exit.go: the source and the sink of the network
//
// # Architecture
//
// The sim package defines the kernel and its extension interfaces;
// collaborators live in sub-packages:
//   - sim/dist/: Sampler implementations backed by gonum distributions
//   - sim/config/: YAML network files built into a Network
//   - sim/trace/: record summaries and CSV export
//   - sim/metrics/: prometheus gauges describing a finished run
//
// # Key Interfaces
//
//   - Sampler: service, inter-arrival, patience and batch-size draws
//   - Discipline: which waiting individual of a priority tier is served next
//   - Router / NodeRouter: where an individual goes after service,
//     pre-emption or reneging
//   - StateTracker: a compact state summary and its history
//   - DeadlockDetector: reports when the network can no longer progress
//
// Every random draw comes from a PartitionedRNG stream owned by the
// Simulation, so a seed and a Network fully determine a run.
package sim
