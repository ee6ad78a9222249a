package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_CursorWithoutOffset(t *testing.T) {
	// GIVEN levels [1,0,2] ending at [5,9,100]
	s := &Schedule{Levels: []int{1, 0, 2}, ShiftEndDates: []float64{5, 9, 100}}

	// WHEN the cursor is walked
	level, c := s.cursor()

	// THEN it starts at the first level and cycles every 100
	assert.Equal(t, 1, level)
	var got [][2]float64
	for range 5 {
		d, v := c.Next()
		got = append(got, [2]float64{d, float64(v)})
	}
	assert.Equal(t, [][2]float64{{5, 0}, {9, 2}, {100, 1}, {105, 0}, {109, 2}}, got)
}

func TestSchedule_CursorWithOffset(t *testing.T) {
	s := &Schedule{Levels: []int{3, 1}, ShiftEndDates: []float64{4, 10}, Offset: 2}
	level, c := s.cursor()
	assert.Equal(t, 1, level, "before the offset the last level applies")

	d, v := c.Peek()
	assert.Equal(t, 2.0, d)
	assert.Equal(t, 3, v)
	c.Next()
	d, v = c.Next()
	assert.Equal(t, 6.0, d)
	assert.Equal(t, 1, v)
	d, v = c.Next()
	assert.Equal(t, 12.0, d)
	assert.Equal(t, 3, v)
}

func TestSlottedSchedule_Cursor(t *testing.T) {
	s := &SlottedSchedule{SlotDates: []float64{2, 4}, SlotSizes: []int{1, 3}, Offset: 1}
	c := s.cursor()
	var dates []float64
	for range 4 {
		d, _ := c.Next()
		dates = append(dates, d)
	}
	assert.Equal(t, []float64{3, 5, 7, 9}, dates)
	assert.Equal(t, 3, s.MaxSlotSize())
}

func TestSchedule_Validate(t *testing.T) {
	tests := []struct {
		name string
		s    Schedule
		ok   bool
	}{
		{"valid", Schedule{Levels: []int{1, 2}, ShiftEndDates: []float64{3, 6}}, true},
		{"length mismatch", Schedule{Levels: []int{1}, ShiftEndDates: []float64{3, 6}}, false},
		{"empty", Schedule{}, false},
		{"not increasing", Schedule{Levels: []int{1, 2}, ShiftEndDates: []float64{6, 3}}, false},
		{"zero boundary", Schedule{Levels: []int{1}, ShiftEndDates: []float64{0}}, false},
		{"negative level", Schedule{Levels: []int{-1}, ShiftEndDates: []float64{1}}, false},
		{"negative offset", Schedule{Levels: []int{1}, ShiftEndDates: []float64{1}, Offset: -1}, false},
		{"bad policy", Schedule{Levels: []int{1}, ShiftEndDates: []float64{1}, Preemption: "pause"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBadSchedule)
			}
		})
	}
}

func TestSlottedSchedule_Validate(t *testing.T) {
	tests := []struct {
		name string
		s    SlottedSchedule
		ok   bool
	}{
		{"valid", SlottedSchedule{SlotDates: []float64{1, 2}, SlotSizes: []int{0, 4}}, true},
		{"length mismatch", SlottedSchedule{SlotDates: []float64{1}, SlotSizes: []int{1, 2}}, false},
		{"negative size", SlottedSchedule{SlotDates: []float64{1}, SlotSizes: []int{-1}}, false},
		{"reroute", SlottedSchedule{SlotDates: []float64{1}, SlotSizes: []int{1}, Preemption: PreemptReroute}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBadSchedule)
			}
		})
	}
}
