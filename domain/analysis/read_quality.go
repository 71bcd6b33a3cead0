package analysis

import (
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/tile"
)

// ReadQuality bins the mean base quality of each read, one matrix per tile.
type ReadQuality struct {
	matrixSet
	offset int
}

// NewReadQuality creates the read quality module.
func NewReadQuality(settings Settings) *ReadQuality {
	return &ReadQuality{
		matrixSet: newMatrixSet(TagReadQuality, settings, matrix.WithThreshold(settings.QualityThreshold)),
	}
}

// IgnoreFiltered implements Module.
func (m *ReadQuality) IgnoreFiltered() bool { return true }

// Init implements Module.
func (m *ReadQuality) Init(tree *tile.Tree) error {
	if err := m.matrixSet.Init(tree); err != nil {
		return err
	}
	m.offset = tree.QualityOffset()
	return nil
}

// Consume implements Module.
func (m *ReadQuality) Consume(rec read.Record, pos tile.SequenceCoordinate) error {
	if len(rec.Quality) == 0 {
		return nil
	}
	sum := 0
	for _, q := range rec.Quality {
		sum += int(q) - m.offset
	}
	return m.add(NewMatrixKey(pos.Coordinate, 0), pos, sum/len(rec.Quality))
}
