// Package config loads network descriptions from YAML and builds the
// sim.Network they describe.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/qsim/sim/dist"
)

// NetworkFile is the on-disk form of a network. Nodes and classes are
// referred to by name everywhere else in the file; "exit" names the sink.
type NetworkFile struct {
	SystemCapacity int         `yaml:"system_capacity"`
	Nodes          []NodeSpec  `yaml:"nodes"`
	Classes        []ClassSpec `yaml:"classes"`
	// RoutingMatrix is an alternative to per-node routing blocks:
	// RoutingMatrix[i][j] is the probability of moving from node i to node j.
	RoutingMatrix [][]float64 `yaml:"routing_matrix,omitempty"`
}

// NodeSpec describes one service centre.
type NodeSpec struct {
	Name string `yaml:"name"`
	// Servers is ignored when Unlimited, Schedule or Slotted is set.
	Servers   int  `yaml:"servers"`
	Unlimited bool `yaml:"unlimited"`
	// QueueCapacity nil means unbounded.
	QueueCapacity    *int                            `yaml:"queue_capacity"`
	Discipline       string                          `yaml:"discipline"`
	Preemption       string                          `yaml:"preemption"`
	Schedule         *ScheduleSpec                   `yaml:"schedule"`
	Slotted          *SlottedSpec                    `yaml:"slotted"`
	Routing          *RoutingSpec                    `yaml:"routing"`
	ClassChange      map[string]map[string]float64   `yaml:"class_change_matrix"`
	ClassChangeTimes map[string]map[string]dist.Spec `yaml:"class_change_times"`
	Reneging         map[string]dist.Spec            `yaml:"reneging"`
	RenegingTo       map[string]string               `yaml:"reneging_destinations"`
	Baulking         map[string]BaulkingSpec         `yaml:"baulking"`
}

// ScheduleSpec is a cyclic shift pattern.
type ScheduleSpec struct {
	Levels        []int     `yaml:"levels"`
	ShiftEndDates []float64 `yaml:"shift_end_dates"`
	Offset        float64   `yaml:"offset"`
	Preemption    string    `yaml:"preemption"`
}

// SlottedSpec is a cyclic slotted-service pattern.
type SlottedSpec struct {
	SlotDates   []float64 `yaml:"slot_dates"`
	SlotSizes   []int     `yaml:"slot_sizes"`
	Offset      float64   `yaml:"offset"`
	Capacitated bool      `yaml:"capacitated"`
	Preemption  string    `yaml:"preemption"`
}

// RoutingSpec configures the router of one node.
type RoutingSpec struct {
	Type         string    `yaml:"type"`
	Destinations []string  `yaml:"destinations"`
	Probs        []float64 `yaml:"probs"`
	TieBreak     string    `yaml:"tie_break"`
}

// BaulkingSpec maps occupancy to a baulking probability.
// "threshold": baulk surely once occupancy reaches Threshold.
// "linear": baulk with probability min(1, Slope * occupancy).
type BaulkingSpec struct {
	Type      string  `yaml:"type"`
	Threshold int     `yaml:"threshold"`
	Slope     float64 `yaml:"slope"`
}

// ClassSpec describes one customer class. Maps are keyed by node name.
type ClassSpec struct {
	Name     string               `yaml:"name"`
	Priority int                  `yaml:"priority"`
	Arrivals map[string]dist.Spec `yaml:"arrivals"`
	Services map[string]dist.Spec `yaml:"services"`
	Batching map[string]dist.Spec `yaml:"batching"`
}

// Load reads and parses a network file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*NetworkFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a network description from r.
func Parse(r io.Reader) (*NetworkFile, error) {
	var nf NetworkFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&nf); err != nil {
		return nil, fmt.Errorf("parsing network file: %w", err)
	}
	return &nf, nil
}
