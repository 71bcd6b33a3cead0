package analysis

import (
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/tile"
)

// MappingQuality bins the mapping quality of mapped reads, one matrix per
// tile, with one extra ratio grid per mapping threshold.
type MappingQuality struct {
	matrixSet
}

// NewMappingQuality creates the mapping quality module.
func NewMappingQuality(settings Settings) *MappingQuality {
	return &MappingQuality{
		matrixSet: newMatrixSet(TagMappingQuality, settings,
			matrix.WithThreshold(settings.QualityThreshold),
			matrix.WithExtraThresholds(settings.MappingThresholds...)),
	}
}

// IgnoreFiltered implements Module.
func (m *MappingQuality) IgnoreFiltered() bool { return true }

// Consume implements Module. Unmapped reads are skipped.
func (m *MappingQuality) Consume(rec read.Record, pos tile.SequenceCoordinate) error {
	if !rec.Mapped {
		return nil
	}
	return m.add(NewMatrixKey(pos.Coordinate, 0), pos, rec.MappingQuality)
}
