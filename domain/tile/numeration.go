package tile

import "errors"

// ErrNoTopBottom is returned by schemes that cannot pair top and bottom tiles.
var ErrNoTopBottom = errors.New("tile numeration has no top/bottom pairing")

// Scheme describes how an instrument numbers its tiles.
// Schemes are immutable and safe for concurrent use.
type Scheme struct {
	name        string
	cycleSize   int
	surfaceUnit int
	accept      func(tile int) bool
}

// Name returns the scheme identifier, e.g. "hiseq-2000".
func (s Scheme) Name() string { return s.name }

// CycleSize returns the number of tiles imaged at one physical location.
func (s Scheme) CycleSize() int { return s.cycleSize }

// Paired reports whether the scheme supports top/bottom pairing.
func (s Scheme) Paired() bool { return s.surfaceUnit > 0 }

// Accepts reports whether a single tile ID is valid under the scheme.
func (s Scheme) Accepts(tile int) bool { return s.accept(tile) }

// IsCompatible reports whether every ID in the set is valid under the scheme.
// An empty set is never compatible.
func (s Scheme) IsCompatible(tiles []int) bool {
	if len(tiles) == 0 {
		return false
	}
	for _, t := range tiles {
		if !s.accept(t) {
			return false
		}
	}
	return true
}

// IsTop reports whether the tile lies on the top surface.
func (s Scheme) IsTop(tile int) (bool, error) {
	if !s.Paired() {
		return false, ErrNoTopBottom
	}
	return tile/s.surfaceUnit == 1, nil
}

// BottomTile maps a top tile to the bottom tile imaged at the same location.
// A bottom tile maps to itself.
func (s Scheme) BottomTile(tile int) (int, error) {
	top, err := s.IsTop(tile)
	if err != nil {
		return 0, err
	}
	if !top {
		return tile, nil
	}
	return tile + s.surfaceUnit, nil
}

// IsFirstInCycle reports whether the tile is the first one of its physical location.
func (s Scheme) IsFirstInCycle(tile int) bool {
	if s.cycleSize == 1 {
		return true
	}
	top, err := s.IsTop(tile)
	return err == nil && top
}

// TileInCycle returns the offset-th tile of the physical location containing tile.
// It returns false if offset lies outside the cycle.
func (s Scheme) TileInCycle(tile, offset int) (int, bool) {
	if offset < 0 || offset >= s.cycleSize {
		return 0, false
	}
	if offset == 0 && s.cycleSize == 1 {
		return tile, true
	}
	first := tile
	if top, err := s.IsTop(tile); err == nil && !top {
		first = tile - s.surfaceUnit
	}
	return first + offset*s.surfaceUnit, true
}

// Cycle returns all tiles of the physical location containing tile, first tile first.
func (s Scheme) Cycle(tile int) []int {
	out := make([]int, 0, s.cycleSize)
	for i := range s.cycleSize {
		if t, ok := s.TileInCycle(tile, i); ok {
			out = append(out, t)
		}
	}
	return out
}

func digits(tile, width int) bool {
	lo := 1
	for range width - 1 {
		lo *= 10
	}
	return tile >= lo && tile < lo*10
}

func inRange(v, lo, hi int) bool { return v >= lo && v <= hi }

// swathScheme accepts 4-digit SWTT tile IDs.
func swathScheme(name string, swaths, tiles int) Scheme {
	return Scheme{
		name:        name,
		cycleSize:   2,
		surfaceUnit: 1000,
		accept: func(t int) bool {
			if !digits(t, 4) {
				return false
			}
			return inRange(t/1000, 1, 2) && inRange(t/100%10, 1, swaths) && inRange(t%100, 1, tiles)
		},
	}
}

// Known schemes, most specific first.
var (
	HiSeq2000 = swathScheme("hiseq-2000", 2, 16)
	MiSeq     = swathScheme("miseq", 1, 19)
	HiSeqX    = swathScheme("hiseq-x", 2, 28)
	NovaSeq   = swathScheme("novaseq", 4, 78)
	NextSeq   = Scheme{
		name:        "nextseq",
		cycleSize:   2,
		surfaceUnit: 10000,
		accept: func(t int) bool {
			if !digits(t, 5) {
				return false
			}
			return inRange(t/10000, 1, 2) && inRange(t/1000%10, 1, 3) &&
				inRange(t/100%10, 1, 6) && inRange(t%100, 1, 12)
		},
	}
	GenomeAnalyzer = Scheme{
		name:      "ga",
		cycleSize: 1,
		accept:    func(t int) bool { return inRange(t, 1, 120) },
	}
	Generic = Scheme{
		name:      "generic",
		cycleSize: 1,
		accept:    func(int) bool { return true },
	}
)

var priority = []Scheme{HiSeq2000, MiSeq, HiSeqX, NovaSeq, NextSeq, GenomeAnalyzer}

// Resolve picks the first known scheme compatible with the tile set,
// falling back to Generic.
func Resolve(tiles []int) Scheme {
	for _, s := range priority {
		if s.IsCompatible(tiles) {
			return s
		}
	}
	return Generic
}

// SchemeByName returns the scheme with the given name.
func SchemeByName(name string) (Scheme, bool) {
	if name == Generic.name {
		return Generic, true
	}
	for _, s := range priority {
		if s.name == name {
			return s, true
		}
	}
	return Scheme{}, false
}
