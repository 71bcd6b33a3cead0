package matrix

import (
	"fmt"
	"slices"

	"github.com/helixml/tileqc/domain/tile"
)

// Snapshot is the serializable form of a finished matrix.
type Snapshot struct {
	Size         int         `json:"size"`
	Range        tile.Range  `json:"range"`
	Threshold    int         `json:"threshold"`
	HasThreshold bool        `json:"has_threshold"`
	Thresholds   []int       `json:"thresholds,omitempty"`
	Density      []int       `json:"density"`
	MeanRatio    []float64   `json:"mean_ratio"`
	Average      []float64   `json:"average"`
	ExtraRatios  [][]float64 `json:"extra_ratios,omitempty"`
	Selected     []uint32    `json:"selected,omitempty"`
}

// Snapshot freezes the matrix and captures its derived grids and selection.
func (m *QualityMatrix) Snapshot() Snapshot {
	m.derive()
	return Snapshot{
		Size:         m.size,
		Range:        m.rng,
		Threshold:    m.threshold,
		HasThreshold: m.hasThreshold,
		Thresholds:   m.thresholds,
		Density:      m.density,
		MeanRatio:    m.meanRatio,
		Average:      m.average,
		ExtraRatios:  m.extraRatios,
		Selected:     m.mask.Indices(),
	}
}

// FromSnapshot rebuilds a frozen matrix.
func FromSnapshot(s Snapshot) (*QualityMatrix, error) {
	if s.Size < 1 {
		return nil, ErrInvalidSize
	}
	cells := s.Size * s.Size
	if len(s.Density) != cells || len(s.MeanRatio) != cells || len(s.Average) != cells {
		return nil, fmt.Errorf("snapshot grids do not match size %d", s.Size)
	}
	if len(s.ExtraRatios) != len(s.Thresholds) {
		return nil, fmt.Errorf("snapshot has %d ratio grids for %d thresholds", len(s.ExtraRatios), len(s.Thresholds))
	}
	for _, r := range s.ExtraRatios {
		if len(r) != cells {
			return nil, fmt.Errorf("snapshot grids do not match size %d", s.Size)
		}
	}
	m := &QualityMatrix{
		size:         s.Size,
		rng:          s.Range,
		threshold:    s.Threshold,
		hasThreshold: s.HasThreshold,
		thresholds:   s.Thresholds,
		frozen:       true,
		density:      s.Density,
		total:        s.Density,
		meanRatio:    s.MeanRatio,
		average:      s.Average,
		extraRatios:  s.ExtraRatios,
		mask:         newMask(s.Size),
	}
	if err := m.mask.SetIndices(s.Selected); err != nil {
		return nil, err
	}
	return m, nil
}

// Equal reports whether two matrices have the same shape, derived grids
// and selection. Both matrices are frozen by the comparison.
func (m *QualityMatrix) Equal(other *QualityMatrix) bool {
	if m == nil || other == nil {
		return m == other
	}
	a, b := m.Snapshot(), other.Snapshot()
	if a.Size != b.Size || a.Range != b.Range || a.Threshold != b.Threshold || a.HasThreshold != b.HasThreshold {
		return false
	}
	if !slices.Equal(a.Thresholds, b.Thresholds) || !slices.Equal(a.Density, b.Density) ||
		!slices.Equal(a.MeanRatio, b.MeanRatio) || !slices.Equal(a.Average, b.Average) ||
		!slices.Equal(a.Selected, b.Selected) {
		return false
	}
	if len(a.ExtraRatios) != len(b.ExtraRatios) {
		return false
	}
	for k := range a.ExtraRatios {
		if !slices.Equal(a.ExtraRatios[k], b.ExtraRatios[k]) {
			return false
		}
	}
	return true
}
