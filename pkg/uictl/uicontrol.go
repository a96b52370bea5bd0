// Package uictl holds the read-only views UI widgets poll for live values.
package uictl

import "golang.org/x/exp/constraints"

// Number is any sample type a view can report.
type Number interface {
	constraints.Integer | constraints.Float
}

// Levels reports the latest window of samples, oldest first. The recorder's
// input meter polls it on every tick.
type Levels[N Number] interface {
	Read() []N
}
