package analysis

import (
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/tile"
)

// BaseQuality bins the quality score of every base, one matrix per tile
// and base position. Its selections drive masking.
type BaseQuality struct {
	matrixSet
	offset    int
	positions map[tile.Coordinate]int
}

// NewBaseQuality creates the base quality module.
func NewBaseQuality(settings Settings) *BaseQuality {
	return &BaseQuality{
		matrixSet: newMatrixSet(TagBaseQuality, settings, matrix.WithThreshold(settings.QualityThreshold)),
		positions: make(map[tile.Coordinate]int),
	}
}

// IgnoreFiltered implements Module.
func (m *BaseQuality) IgnoreFiltered() bool { return true }

// Init implements Module.
func (m *BaseQuality) Init(tree *tile.Tree) error {
	if err := m.matrixSet.Init(tree); err != nil {
		return err
	}
	m.offset = tree.QualityOffset()
	clear(m.positions)
	return nil
}

// Consume implements Module.
func (m *BaseQuality) Consume(rec read.Record, pos tile.SequenceCoordinate) error {
	for i, q := range rec.Quality {
		if err := m.add(NewMatrixKey(pos.Coordinate, i+1), pos, int(q)-m.offset); err != nil {
			return err
		}
	}
	m.positions[pos.Coordinate] = max(m.positions[pos.Coordinate], len(rec.Quality))
	return nil
}

// Positions returns how many base positions have a matrix for the tile.
func (m *BaseQuality) Positions(c tile.Coordinate) int {
	return m.positions[c]
}

// Restore implements Cacheable.
func (m *BaseQuality) Restore(tree *tile.Tree, s Snapshot) error {
	if err := m.matrixSet.Restore(tree, s); err != nil {
		return err
	}
	m.offset = tree.QualityOffset()
	clear(m.positions)
	for _, e := range s.Entries {
		c := e.Key.Coordinate
		m.positions[c] = max(m.positions[c], e.Key.Position)
	}
	return nil
}
