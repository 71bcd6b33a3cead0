package analysis

import (
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/tile"
)

// NContent bins uncalled bases. The mean ratio of its matrices is the
// share of N calls per bin.
type NContent struct {
	matrixSet
}

// NewNContent creates the N content module.
func NewNContent(settings Settings) *NContent {
	return &NContent{
		matrixSet: newMatrixSet(TagNContent, settings, matrix.WithThreshold(1)),
	}
}

// IgnoreFiltered implements Module. Filtered reads still count.
func (m *NContent) IgnoreFiltered() bool { return false }

// Consume implements Module.
func (m *NContent) Consume(rec read.Record, pos tile.SequenceCoordinate) error {
	key := NewMatrixKey(pos.Coordinate, 0)
	for _, b := range rec.Sequence {
		v := 1
		if b == 'N' || b == 'n' || b == '.' {
			v = 0
		}
		if err := m.add(key, pos, v); err != nil {
			return err
		}
	}
	return nil
}
