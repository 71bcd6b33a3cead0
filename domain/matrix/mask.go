package matrix

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// SelectionState summarises a mask.
type SelectionState string

// Selection states.
const (
	SelectionNone SelectionState = "NONE"
	SelectionPart SelectionState = "PART"
	SelectionAll  SelectionState = "ALL"
)

// Mask marks the bins of an N×N matrix selected for masking.
// The bitmap is allocated on first selection; no bitmap means nothing is selected.
type Mask struct {
	size int
	bits *roaring.Bitmap
}

func newMask(size int) Mask { return Mask{size: size} }

// NewMask creates an empty mask for an N×N grid.
func NewMask(size int) *Mask {
	k := newMask(size)
	return &k
}

// Size returns N.
func (k *Mask) Size() int { return k.size }

func (k *Mask) cells() uint64 { return uint64(k.size) * uint64(k.size) }

func (k *Mask) ensure() *roaring.Bitmap {
	if k.bits == nil {
		k.bits = roaring.New()
	}
	return k.bits
}

func (k *Mask) cell(x, y int) (uint32, error) {
	if x < 0 || y < 0 || x >= k.size || y >= k.size {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutsideRange, x, y, k.size, k.size)
	}
	return uint32(y*k.size + x), nil
}

// SelectAll marks every bin.
func (k *Mask) SelectAll() {
	k.ensure().AddRange(0, k.cells())
}

// DeselectAll clears every bin.
func (k *Mask) DeselectAll() {
	if k.bits != nil {
		k.bits.Clear()
	}
}

// SetCell marks or clears bin (x, y).
func (k *Mask) SetCell(x, y int, selected bool) error {
	i, err := k.cell(x, y)
	if err != nil {
		return err
	}
	if selected {
		k.ensure().Add(i)
	} else if k.bits != nil {
		k.bits.Remove(i)
	}
	return nil
}

// Selected reports whether bin (x, y) is marked.
func (k *Mask) Selected(x, y int) bool {
	if k.bits == nil {
		return false
	}
	i, err := k.cell(x, y)
	if err != nil {
		return false
	}
	return k.bits.Contains(i)
}

// Count returns the number of selected bins.
func (k *Mask) Count() int {
	if k.bits == nil {
		return 0
	}
	return int(k.bits.GetCardinality())
}

// Any reports whether at least one bin is selected.
func (k *Mask) Any() bool {
	return k.bits != nil && !k.bits.IsEmpty()
}

// State returns ALL if every bin is selected, NONE if none is, PART otherwise.
func (k *Mask) State() SelectionState {
	switch n := uint64(k.Count()); {
	case n == 0:
		return SelectionNone
	case n == k.cells():
		return SelectionAll
	default:
		return SelectionPart
	}
}

// Indices returns the selected bin indices (y*N+x) in ascending order.
func (k *Mask) Indices() []uint32 {
	if k.bits == nil {
		return nil
	}
	return k.bits.ToArray()
}

// SetIndices replaces the selection with the given bin indices.
func (k *Mask) SetIndices(indices []uint32) error {
	for _, i := range indices {
		if uint64(i) >= k.cells() {
			return fmt.Errorf("%w: index %d in %dx%d", ErrOutsideRange, i, k.size, k.size)
		}
	}
	if len(indices) == 0 {
		k.bits = nil
		return nil
	}
	k.bits = roaring.BitmapOf(indices...)
	return nil
}

// Rows renders the mask as N strings of '0' and '1', one per row.
func (k *Mask) Rows() []string {
	rows := make([]string, k.size)
	var b strings.Builder
	for y := range k.size {
		b.Reset()
		for x := range k.size {
			if k.Selected(x, y) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		rows[y] = b.String()
	}
	return rows
}

// SetRows replaces the selection from rows produced by Rows.
func (k *Mask) SetRows(rows []string) error {
	if len(rows) != k.size {
		return fmt.Errorf("%w: %d rows for size %d", ErrOutsideRange, len(rows), k.size)
	}
	var indices []uint32
	for y, row := range rows {
		if len(row) != k.size {
			return fmt.Errorf("%w: row %d has %d cells for size %d", ErrOutsideRange, y, len(row), k.size)
		}
		for x := range len(row) {
			switch row[x] {
			case '1':
				indices = append(indices, uint32(y*k.size+x))
			case '0':
			default:
				return fmt.Errorf("row %d: invalid cell %q", y, row[x])
			}
		}
	}
	return k.SetIndices(indices)
}

// Summary combines the states of several masks into one tile-level state.
func Summary(states ...SelectionState) SelectionState {
	seenAll, seenNone := false, false
	for _, s := range states {
		switch s {
		case SelectionPart:
			return SelectionPart
		case SelectionAll:
			seenAll = true
		default:
			seenNone = true
		}
		if seenAll && seenNone {
			return SelectionPart
		}
	}
	if seenAll {
		return SelectionAll
	}
	return SelectionNone
}
