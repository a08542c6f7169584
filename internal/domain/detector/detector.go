package detector

import (
	"github.com/okian/efast/internal/domain/model"
)

const minScale = 1

// Outcome is the terminal state of classifying one event.
type Outcome int

const (
	// OutcomeBorder: the event is too close to the sensor edge to be tested.
	OutcomeBorder Outcome = iota
	// OutcomeNoStage3: no qualifying arc on the radius-3 circle.
	OutcomeNoStage3
	// OutcomeNoStage4: radius-3 passed but the radius-4 confirmation failed.
	OutcomeNoStage4
	// OutcomeFeature: both stages found a qualifying arc.
	OutcomeFeature
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBorder:
		return "border"
	case OutcomeNoStage3:
		return "no_stage3"
	case OutcomeNoStage4:
		return "no_stage4"
	case OutcomeFeature:
		return "feature"
	default:
		return "unknown"
	}
}

// Detector classifies events as corner features using a two-scale streak test
// over the SAE. It is not safe for concurrent use: every call mutates the SAE
// and reads neighbouring cells, so one goroutine must own it.
type Detector struct {
	sae     *SAE
	circle3 circle
	circle4 circle
}

// New creates a detector for a sensor of the given size.
func New(height, width int) (*Detector, error) {
	sae, err := NewSAE(height, width)
	if err != nil {
		return nil, err
	}
	return &Detector{
		sae:     sae,
		circle3: newCircle3(),
		circle4: newCircle4(),
	}, nil
}

// SAE exposes the detector's surface. Callers must not mutate it while the
// detector is in use.
func (d *Detector) SAE() *SAE { return d.sae }

// Height returns the sensor height in pixels.
func (d *Detector) Height() int { return d.sae.height }

// Width returns the sensor width in pixels.
func (d *Detector) Width() int { return d.sae.width }

// Contains reports whether (x, y) lies on the sensor. Hosts must check this
// before handing an event to IsFeature or Classify.
func (d *Detector) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < d.sae.width && y < d.sae.height
}

// IsBorder reports whether (x, y) is within maxScale*4 pixels of any edge.
func (d *Detector) IsBorder(x, y, maxScale int) bool {
	margin := max(maxScale, minScale) * maxRadius
	return x < margin ||
		x >= d.sae.width-margin ||
		y < margin ||
		y >= d.sae.height-margin
}

// Classify records e in the SAE and then tests it. The event's own timestamp
// is never part of its own test since no circle contains the zero offset.
func (d *Detector) Classify(e model.Event, maxScale int) Outcome {
	pol := e.Polarity()
	x, y := int(e.X), int(e.Y)
	d.sae.Update(pol, x, y, e.T)

	if d.IsBorder(x, y, maxScale) {
		return OutcomeBorder
	}

	grid := d.sae.grids[pol]
	if !hasStreak(grid, d.circle3, x, y, stage3Range) {
		return OutcomeNoStage3
	}
	if !hasStreak(grid, d.circle4, x, y, stage4Range) {
		return OutcomeNoStage4
	}
	return OutcomeFeature
}

// IsFeature reports whether e is a corner feature.
func (d *Detector) IsFeature(e model.Event, maxScale int) bool {
	return d.Classify(e, maxScale) == OutcomeFeature
}
