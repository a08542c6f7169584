package detector

// offset is a pixel displacement from the centre of a circle.
type offset struct {
	dx, dy int
}

// circle is an angularly ordered ring of offsets. Indices wrap modulo its length.
type circle []offset

const (
	circle3Len = 16
	circle4Len = 20

	// maxRadius is the largest |dx| or |dy| in any circle.
	maxRadius = 4
)

// newCircle3 returns the 16-point discrete circle of radius 3, clockwise from angle 0.
func newCircle3() circle {
	return circle{
		{0, 3}, {1, 3}, {2, 2}, {3, 1},
		{3, 0}, {3, -1}, {2, -2}, {1, -3},
		{0, -3}, {-1, -3}, {-2, -2}, {-3, -1},
		{-3, 0}, {-3, 1}, {-2, 2}, {-1, 3},
	}
}

// newCircle4 returns the 20-point discrete circle of radius 4, clockwise from angle 0.
func newCircle4() circle {
	return circle{
		{0, 4}, {1, 4}, {2, 3}, {3, 2},
		{4, 1}, {4, 0}, {4, -1}, {3, -2},
		{2, -3}, {1, -4}, {0, -4}, {-1, -4},
		{-2, -3}, {-3, -2}, {-4, -1}, {-4, 0},
		{-4, 1}, {-3, 2}, {-2, 3}, {-1, 4},
	}
}
