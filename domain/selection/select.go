// Package selection marks low quality clusters for masking, moves
// selections in and out of selection documents and applies them to reads.
package selection

import (
	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/tile"
)

// DefaultRedAreaRatio is the low quality ratio at which a bin is selected automatically.
const DefaultRedAreaRatio = 0.5

// Method chooses where the masking selection comes from.
type Method string

// Selection methods.
const (
	MethodAuto Method = "auto"
	MethodUser Method = "user"
	MethodFile Method = "file"
)

// MatrixSet is a keyed set of matrices, such as an analysis module.
type MatrixSet interface {
	Keys() []analysis.MatrixKey
	Matrix(key analysis.MatrixKey) (*matrix.QualityMatrix, bool)
}

// SelectRedArea selects every bin whose low quality ratio is at least ratio
// and returns how many bins were newly selected.
func SelectRedArea(m *matrix.QualityMatrix, ratio float64) int {
	n := m.Size()
	sel := m.Selection()
	added := 0
	for by := range n {
		for bx := range n {
			if m.MeanRatioAt(bx, by) < ratio || sel.Selected(bx, by) {
				continue
			}
			// Bins come from the matrix's own size; SetCell cannot fail.
			_ = sel.SetCell(bx, by, true)
			added++
		}
	}
	return added
}

// SelectRedAreas applies SelectRedArea to every matrix of a module.
func SelectRedAreas(mod MatrixSet, ratio float64) int {
	total := 0
	for _, key := range mod.Keys() {
		m, _ := mod.Matrix(key)
		total += SelectRedArea(m, ratio)
	}
	return total
}

// DeselectAll clears every selection of a module.
func DeselectAll(mod MatrixSet) {
	for _, key := range mod.Keys() {
		m, _ := mod.Matrix(key)
		m.Selection().DeselectAll()
	}
}

// HasSelection reports whether any matrix of the module has a selected bin.
func HasSelection(mod MatrixSet) bool {
	for _, key := range mod.Keys() {
		if m, _ := mod.Matrix(key); m.Selection().Any() {
			return true
		}
	}
	return false
}

// TileState summarises the selections of all matrices of one tile.
func TileState(mod MatrixSet, c tile.Coordinate) matrix.SelectionState {
	var states []matrix.SelectionState
	for _, key := range mod.Keys() {
		if key.Coordinate != c {
			continue
		}
		m, _ := mod.Matrix(key)
		states = append(states, m.Selection().State())
	}
	return matrix.Summary(states...)
}
