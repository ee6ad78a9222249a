package sim

import (
	"fmt"
	"math"
)

// PreemptPolicy decides what happens to an individual whose service is cut short.
type PreemptPolicy string

const (
	PreemptNone PreemptPolicy = ""
	// PreemptRestart serves the originally sampled duration again from scratch.
	PreemptRestart PreemptPolicy = "restart"
	// PreemptResume serves only the time that was left.
	PreemptResume PreemptPolicy = "resume"
	// PreemptResample draws a fresh duration on resumption.
	PreemptResample PreemptPolicy = "resample"
	// PreemptReroute sends the individual onward instead of re-queueing it.
	PreemptReroute PreemptPolicy = "reroute"
)

// ParsePreemptPolicy maps a configuration string to a PreemptPolicy.
// "", "none" and "false" all disable pre-emption.
func ParsePreemptPolicy(s string) (PreemptPolicy, error) {
	switch s {
	case "", "none", "false":
		return PreemptNone, nil
	case "restart", "resume", "resample", "reroute":
		return PreemptPolicy(s), nil
	default:
		return PreemptNone, fmt.Errorf("%q: %w", s, ErrUnknownPreemption)
	}
}

func (p PreemptPolicy) validate() error {
	_, err := ParsePreemptPolicy(string(p))
	return err
}

// Schedule is a cyclic staffing pattern: Levels[i] servers are on duty until
// ShiftEndDates[i]; the pattern repeats every ShiftEndDates[len-1] time units,
// shifted by Offset. Before Offset the last level applies.
type Schedule struct {
	Levels        []int
	ShiftEndDates []float64
	Offset        float64
	// Preemption is applied to busy servers taken off duty. PreemptNone lets
	// them finish their current individual first.
	Preemption PreemptPolicy
}

// Validate checks the pattern.
func (s *Schedule) Validate() error {
	if len(s.Levels) == 0 || len(s.Levels) != len(s.ShiftEndDates) {
		return fmt.Errorf("%w: need one shift end date per level, got %d levels and %d dates",
			ErrBadSchedule, len(s.Levels), len(s.ShiftEndDates))
	}
	prev := 0.0
	for i, d := range s.ShiftEndDates {
		if !(d > prev) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: shift end dates must be finite and strictly increasing from 0 (index %d = %v)",
				ErrBadSchedule, i, d)
		}
		prev = d
	}
	for i, l := range s.Levels {
		if l < 0 {
			return fmt.Errorf("%w: level %d is negative (%d)", ErrBadSchedule, i, l)
		}
	}
	if s.Offset < 0 || math.IsInf(s.Offset, 0) || math.IsNaN(s.Offset) {
		return fmt.Errorf("%w: offset must be finite and non-negative, got %v", ErrBadSchedule, s.Offset)
	}
	if err := s.Preemption.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSchedule, err)
	}
	return nil
}

// cursor returns the (initial level, boundary cursor) pair for a run.
func (s *Schedule) cursor() (int, *cycleCursor) {
	points := make([]float64, len(s.Levels))
	for i := 1; i < len(points); i++ {
		points[i] = s.ShiftEndDates[i-1]
	}
	c := &cycleCursor{
		points: points,
		values: s.Levels,
		period: s.ShiftEndDates[len(s.ShiftEndDates)-1],
		offset: s.Offset,
	}
	if s.Offset == 0 {
		c.index = 1
		return s.Levels[0], c
	}
	return s.Levels[len(s.Levels)-1], c
}

// SlottedSchedule admits up to SlotSizes[i] waiting individuals into service
// at the instant SlotDates[i]; the pattern repeats every SlotDates[len-1].
type SlottedSchedule struct {
	SlotDates []float64
	SlotSizes []int
	Offset    float64
	// Capacitated bounds the number in service by the slot size.
	Capacitated bool
	// Preemption applies when a capacitated slot displaces individuals still
	// in service from an earlier slot. PreemptNone leaves them alone.
	Preemption PreemptPolicy
}

// Validate checks the pattern.
func (s *SlottedSchedule) Validate() error {
	if len(s.SlotDates) == 0 || len(s.SlotDates) != len(s.SlotSizes) {
		return fmt.Errorf("%w: need one slot size per slot date, got %d dates and %d sizes",
			ErrBadSchedule, len(s.SlotDates), len(s.SlotSizes))
	}
	prev := 0.0
	for i, d := range s.SlotDates {
		if !(d > prev) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: slot dates must be finite and strictly increasing from 0 (index %d = %v)",
				ErrBadSchedule, i, d)
		}
		prev = d
	}
	for i, n := range s.SlotSizes {
		if n < 0 {
			return fmt.Errorf("%w: slot size %d is negative (%d)", ErrBadSchedule, i, n)
		}
	}
	if s.Offset < 0 || math.IsInf(s.Offset, 0) || math.IsNaN(s.Offset) {
		return fmt.Errorf("%w: offset must be finite and non-negative, got %v", ErrBadSchedule, s.Offset)
	}
	if s.Preemption == PreemptReroute {
		return fmt.Errorf("%w: slotted pre-emption cannot reroute", ErrBadSchedule)
	}
	if err := s.Preemption.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSchedule, err)
	}
	return nil
}

// MaxSlotSize returns the largest slot in the pattern.
func (s *SlottedSchedule) MaxSlotSize() int {
	m := 0
	for _, n := range s.SlotSizes {
		m = max(m, n)
	}
	return m
}

func (s *SlottedSchedule) cursor() *cycleCursor {
	return &cycleCursor{
		points: s.SlotDates,
		values: s.SlotSizes,
		period: s.SlotDates[len(s.SlotDates)-1],
		offset: s.Offset,
	}
}

// cycleCursor walks an infinite cyclic sequence of (date, value) boundaries.
// Boundary j falls at offset + (j / k) * period + points[j % k].
type cycleCursor struct {
	points []float64
	values []int
	period float64
	offset float64
	index  int
}

// Peek returns the next boundary without consuming it.
func (c *cycleCursor) Peek() (date float64, value int) {
	k := len(c.points)
	cycle, i := c.index/k, c.index%k
	return c.offset + float64(cycle)*c.period + c.points[i], c.values[i]
}

// Next consumes and returns the next boundary.
func (c *cycleCursor) Next() (date float64, value int) {
	date, value = c.Peek()
	c.index++
	return date, value
}
