package sim

import "fmt"

// OptTime is a simulation timestamp that may be unset.
// The zero value is unset.
type OptTime struct {
	value float64
	set   bool
}

// At returns a set OptTime holding t.
func At(t float64) OptTime {
	return OptTime{value: t, set: true}
}

// Get returns the timestamp and whether it is set.
func (o OptTime) Get() (float64, bool) {
	return o.value, o.set
}

// IsSet reports whether the timestamp holds a value.
func (o OptTime) IsSet() bool {
	return o.set
}

// Value returns the timestamp, or def when unset.
func (o OptTime) Value(def float64) float64 {
	if !o.set {
		return def
	}
	return o.value
}

// Sub returns o - other when both are set.
func (o OptTime) Sub(other OptTime) OptTime {
	if !o.set || !other.set {
		return OptTime{}
	}
	return At(o.value - other.value)
}

func (o OptTime) String() string {
	if !o.set {
		return "-"
	}
	return fmt.Sprintf("%g", o.value)
}
