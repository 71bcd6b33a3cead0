package tile

// Range is the rectangle of x/y positions observed for one tile.
// It grows by union with every observed point and never shrinks.
// An empty range has Width and Height of -1.
type Range struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EmptyRange returns a range that contains no points.
func EmptyRange() Range {
	return Range{Width: -1, Height: -1}
}

// NewRange creates a range from its origin and extent.
func NewRange(x, y, width, height int) Range {
	return Range{X: x, Y: y, Width: width, Height: height}
}

// Empty reports whether no point has been added yet.
func (r Range) Empty() bool {
	return r.Width < 0 || r.Height < 0
}

// Add returns the smallest range that contains both r and the point (x, y).
func (r Range) Add(x, y int) Range {
	if r.Empty() {
		return Range{X: x, Y: y}
	}
	x0, y0 := min(r.X, x), min(r.Y, y)
	x1, y1 := max(r.X+r.Width, x), max(r.Y+r.Height, y)
	return Range{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Union returns the smallest range containing both ranges.
func (r Range) Union(other Range) Range {
	if other.Empty() {
		return r
	}
	if r.Empty() {
		return other
	}
	return r.Add(other.X, other.Y).Add(other.X+other.Width, other.Y+other.Height)
}

// Contains reports whether (x, y) lies within the range.
func (r Range) Contains(x, y int) bool {
	if r.Empty() {
		return false
	}
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}
