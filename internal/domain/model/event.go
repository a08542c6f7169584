// Package model contains domain models passed between layers.
package model

import "time"

// Polarity indexes the two SAE grids.
const (
	PolarityOff = 0
	PolarityOn  = 1
)

// Event is a single brightness-change event from the sensor.
// Events of one stream are expected in non-decreasing T order.
type Event struct {
	X  uint16 // column
	Y  uint16 // row
	T  int64  // timestamp, microseconds
	On bool   // polarity flag
}

// Polarity returns the grid index for the event: 1 for on, 0 for off.
func (e Event) Polarity() int {
	if e.On {
		return PolarityOn
	}
	return PolarityOff
}

// Packet groups events decoded together from a container.
type Packet struct {
	Seq      uint64
	StreamID uint32 // only stream 0 carries polarity events
	Events   []Event
}

// Feature is an event that was classified as a corner.
type Feature struct {
	X  uint16
	Y  uint16
	T  int64
	On bool
}

// FeatureFromEvent builds a Feature from a positively classified event.
func FeatureFromEvent(e Event) Feature {
	return Feature{X: e.X, Y: e.Y, T: e.T, On: e.On}
}

// Point is a pixel coordinate.
type Point struct {
	X uint16
	Y uint16
}

// PacketResult is the outcome of running a packet through the detector.
type PacketResult struct {
	Seq      uint64
	Events   []Event   // the events of the packet, in arrival order
	Features []Feature // the subset classified as features
	Verdicts []bool    // per-event classification, parallel to Events
	Rejected int       // events dropped before classification (out of bounds)
	Duration time.Duration
}
