// Package detector implements the SAE-based corner detector for event streams.
package detector

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SAE is the Surface of Active Events: one timestamp grid per polarity,
// indexed [row=y][col=x]. A cell holds the time of the latest event of that
// polarity at the pixel, or 0 if none has been seen.
type SAE struct {
	grids  [2]*mat.Dense
	height int
	width  int
}

// NewSAE allocates both polarity grids zero-initialised.
func NewSAE(height, width int) (*SAE, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: height=%d width=%d", ErrInvalidDimensions, height, width)
	}
	return &SAE{
		grids: [2]*mat.Dense{
			mat.NewDense(height, width, nil),
			mat.NewDense(height, width, nil),
		},
		height: height,
		width:  width,
	}, nil
}

// Update stores t as the latest timestamp of polarity pol at (x, y).
// Coordinates must be inside the grid.
func (s *SAE) Update(pol, x, y int, t int64) {
	s.grids[pol].Set(y, x, float64(t))
}

// Read returns the latest timestamp of polarity pol at (x, y).
func (s *SAE) Read(pol, x, y int) float64 {
	return s.grids[pol].At(y, x)
}

// Grid returns a read-only view of one polarity grid.
func (s *SAE) Grid(pol int) mat.Matrix {
	return s.grids[pol]
}

// Dims returns the grid height and width.
func (s *SAE) Dims() (height, width int) {
	return s.height, s.width
}
