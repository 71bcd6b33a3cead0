package tile

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

// ErrFrozen is returned when adding to a tree after discovery finished.
var ErrFrozen = errors.New("tile tree is frozen")

// Quality offsets for the two quality encodings in use.
const (
	OffsetSanger   = 33
	OffsetIllumina = 64
)

type lane struct {
	tiles map[int]Range
}

type flowCell struct {
	lanes map[int]*lane
}

// Tree is the flow cell, lane and tile topology discovered in one pass
// over the reads, together with the observed range of every tile.
//
// A Tree is built by a single goroutine; once frozen it is read-only
// and safe for concurrent readers.
type Tree struct {
	flowCells map[string]*flowCell
	firstLane *Coordinate
	frozen    bool

	minQuality    byte
	maxReadLength int
	records       int64

	scheme     Scheme
	offsetOnce sync.Once
	offset     int
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{flowCells: make(map[string]*flowCell)}
}

// Add records one read at the given position with the given quality string.
func (t *Tree) Add(pos SequenceCoordinate, quality []byte) error {
	if t.frozen {
		return ErrFrozen
	}
	fc, ok := t.flowCells[pos.FlowCell]
	if !ok {
		fc = &flowCell{lanes: make(map[int]*lane)}
		t.flowCells[pos.FlowCell] = fc
	}
	ln, ok := fc.lanes[pos.Lane]
	if !ok {
		ln = &lane{tiles: make(map[int]Range)}
		fc.lanes[pos.Lane] = ln
		if t.firstLane == nil {
			first := NewCoordinate(pos.FlowCell, pos.Lane, 0)
			t.firstLane = &first
		}
	}
	r, ok := ln.tiles[pos.Tile]
	if !ok {
		r = EmptyRange()
	}
	ln.tiles[pos.Tile] = r.Add(pos.X, pos.Y)

	for _, q := range quality {
		if t.minQuality == 0 || q < t.minQuality {
			t.minQuality = q
		}
	}
	t.maxReadLength = max(t.maxReadLength, len(quality))
	t.records++
	return nil
}

// Freeze ends discovery and resolves the tile numeration.
func (t *Tree) Freeze() {
	if t.frozen {
		return
	}
	t.frozen = true
	t.scheme = Resolve(t.firstLaneTiles())
}

// Frozen reports whether discovery has finished.
func (t *Tree) Frozen() bool { return t.frozen }

func (t *Tree) firstLaneTiles() []int {
	if t.firstLane == nil {
		return nil
	}
	return t.Tiles(t.firstLane.FlowCell, t.firstLane.Lane)
}

// Numeration returns the tile numeration scheme of the run, resolved from
// the tile IDs of the first lane discovered.
func (t *Tree) Numeration() Scheme {
	if t.frozen {
		return t.scheme
	}
	return Resolve(t.firstLaneTiles())
}

// FlowCells returns the flow cell names in order.
func (t *Tree) FlowCells() []string {
	return slices.Sorted(maps.Keys(t.flowCells))
}

// Lanes returns the lanes of a flow cell in order.
func (t *Tree) Lanes(flowCell string) []int {
	fc, ok := t.flowCells[flowCell]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(fc.lanes))
}

// Tiles returns the tiles of a lane in order.
func (t *Tree) Tiles(flowCell string, laneNumber int) []int {
	fc, ok := t.flowCells[flowCell]
	if !ok {
		return nil
	}
	ln, ok := fc.lanes[laneNumber]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(ln.tiles))
}

// Coordinates returns every tile coordinate in flow cell, lane, tile order.
func (t *Tree) Coordinates() []Coordinate {
	var out []Coordinate
	for _, fc := range t.FlowCells() {
		for _, l := range t.Lanes(fc) {
			for _, tl := range t.Tiles(fc, l) {
				out = append(out, NewCoordinate(fc, l, tl))
			}
		}
	}
	return out
}

// Range returns the observed range of a tile.
func (t *Tree) Range(c Coordinate) (Range, bool) {
	fc, ok := t.flowCells[c.FlowCell]
	if !ok {
		return EmptyRange(), false
	}
	ln, ok := fc.lanes[c.Lane]
	if !ok {
		return EmptyRange(), false
	}
	r, ok := ln.tiles[c.Tile]
	if !ok {
		return EmptyRange(), false
	}
	return r, true
}

// Contains reports whether the tile was observed.
func (t *Tree) Contains(c Coordinate) bool {
	_, ok := t.Range(c)
	return ok
}

// CycleRange returns the union of the ranges of all tiles imaged at the
// same physical location as c. Matrices built over this range can be mixed.
func (t *Tree) CycleRange(c Coordinate) Range {
	out := EmptyRange()
	for _, tl := range t.Numeration().Cycle(c.Tile) {
		if r, ok := t.Range(c.WithTile(tl)); ok {
			out = out.Union(r)
		}
	}
	return out
}

// QualityOffset returns the numeric offset of the quality encoding.
// It is resolved once, from the lowest quality character seen.
func (t *Tree) QualityOffset() int {
	t.offsetOnce.Do(func() {
		t.offset = OffsetSanger
		if t.minQuality >= OffsetIllumina {
			t.offset = OffsetIllumina
		}
	})
	return t.offset
}

// MinQuality returns the lowest quality character seen, or 0 if none.
func (t *Tree) MinQuality() byte { return t.minQuality }

// MaxReadLength returns the length of the longest read seen.
func (t *Tree) MaxReadLength() int { return t.maxReadLength }

// Records returns the number of reads added.
func (t *Tree) Records() int64 { return t.records }
