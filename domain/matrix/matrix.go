// Package matrix bins per-read metrics into an N×N grid over a tile's
// observed range, derives ratios and averages from the counters, mixes
// paired matrices and tracks which bins are selected for masking.
package matrix

import (
	"errors"
	"fmt"
	"sync"

	"github.com/helixml/tileqc/domain/tile"
)

// Errors returned by matrix operations.
var (
	ErrFrozen       = errors.New("quality matrix is frozen")
	ErrMixMismatch  = errors.New("matrices differ in size or range")
	ErrInvalidSize  = errors.New("matrix size must be at least 1")
	ErrOutsideRange = errors.New("cell outside matrix")
)

// Bin maps c into one of n bins spanning [lo, lo+size].
// A zero-size range maps every value to the middle bin.
func Bin(c, lo, size, n int) int {
	if size <= 0 {
		return n / 2
	}
	b := n * (c - lo) / (size + 1)
	return max(0, min(n-1, b))
}

// QualityMatrix is an N×N spatial histogram of one metric over one tile.
//
// Counters are filled with AddQualityValue. The first access to a derived
// grid computes all of them once and freezes the matrix.
type QualityMatrix struct {
	size         int
	rng          tile.Range
	threshold    int
	hasThreshold bool
	thresholds   []int

	total      []int
	below      []int
	sum        []int64
	extraBelow [][]int

	deriveOnce  sync.Once
	frozen      bool
	density     []int
	meanRatio   []float64
	average     []float64
	extraRatios [][]float64

	mask Mask
}

// Option configures a QualityMatrix.
type Option func(*QualityMatrix)

// WithThreshold counts values strictly below threshold as low quality.
func WithThreshold(threshold int) Option {
	return func(m *QualityMatrix) {
		m.threshold = threshold
		m.hasThreshold = true
	}
}

// WithExtraThresholds adds one below-threshold counter per threshold.
func WithExtraThresholds(thresholds ...int) Option {
	return func(m *QualityMatrix) {
		m.thresholds = append([]int(nil), thresholds...)
	}
}

// New creates an empty matrix of size×size bins over rng.
func New(size int, rng tile.Range, opts ...Option) (*QualityMatrix, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	m := &QualityMatrix{size: size, rng: rng}
	for _, opt := range opts {
		opt(m)
	}
	cells := size * size
	m.total = make([]int, cells)
	m.below = make([]int, cells)
	m.sum = make([]int64, cells)
	m.extraBelow = make([][]int, len(m.thresholds))
	for i := range m.extraBelow {
		m.extraBelow[i] = make([]int, cells)
	}
	m.mask = newMask(size)
	return m, nil
}

// Size returns N.
func (m *QualityMatrix) Size() int { return m.size }

// Range returns the tile range the bins span.
func (m *QualityMatrix) Range() tile.Range { return m.rng }

// Threshold returns the low-quality threshold and whether one is set.
func (m *QualityMatrix) Threshold() (int, bool) { return m.threshold, m.hasThreshold }

// Thresholds returns the extra thresholds.
func (m *QualityMatrix) Thresholds() []int { return m.thresholds }

// Frozen reports whether the derived grids were computed.
func (m *QualityMatrix) Frozen() bool { return m.frozen }

// BinOf returns the bin holding the point (x, y).
func (m *QualityMatrix) BinOf(x, y int) (int, int) {
	return Bin(x, m.rng.X, m.rng.Width, m.size), Bin(y, m.rng.Y, m.rng.Height, m.size)
}

func (m *QualityMatrix) index(bx, by int) int { return by*m.size + bx }

// AddQualityValue records value at the bin of (x, y) and returns the new
// total count of that bin.
func (m *QualityMatrix) AddQualityValue(x, y, value int) (int, error) {
	if m.frozen {
		return 0, ErrFrozen
	}
	i := m.index(m.BinOf(x, y))
	m.total[i]++
	if m.hasThreshold && value < m.threshold {
		m.below[i]++
	}
	for k, t := range m.thresholds {
		if value < t {
			m.extraBelow[k][i]++
		}
	}
	m.sum[i] += int64(value)
	return m.total[i], nil
}

func (m *QualityMatrix) derive() {
	m.deriveOnce.Do(func() {
		if m.frozen {
			return
		}
		cells := m.size * m.size
		m.density = m.total
		m.meanRatio = make([]float64, cells)
		m.average = make([]float64, cells)
		m.extraRatios = make([][]float64, len(m.thresholds))
		for k := range m.extraRatios {
			m.extraRatios[k] = make([]float64, cells)
		}
		for i, n := range m.total {
			if n == 0 {
				continue
			}
			m.meanRatio[i] = float64(m.below[i]) / float64(n)
			m.average[i] = float64(m.sum[i]) / float64(n)
			for k := range m.extraRatios {
				m.extraRatios[k][i] = float64(m.extraBelow[k][i]) / float64(n)
			}
		}
		m.below = nil
		m.extraBelow = nil
		m.frozen = true
	})
}

// Freeze computes the derived grids. Further values are rejected.
func (m *QualityMatrix) Freeze() { m.derive() }

// MeanRatio returns, per bin, the share of values below the threshold.
func (m *QualityMatrix) MeanRatio() []float64 {
	m.derive()
	return m.meanRatio
}

// Average returns the mean value per bin.
func (m *QualityMatrix) Average() []float64 {
	m.derive()
	return m.average
}

// Density returns the number of values per bin.
func (m *QualityMatrix) Density() []int {
	m.derive()
	return m.density
}

// ThresholdRatio returns the below-threshold share for the k-th extra threshold.
func (m *QualityMatrix) ThresholdRatio(k int) ([]float64, error) {
	m.derive()
	if k < 0 || k >= len(m.extraRatios) {
		return nil, fmt.Errorf("threshold index %d out of %d", k, len(m.extraRatios))
	}
	return m.extraRatios[k], nil
}

// MeanRatioAt returns the low quality ratio of bin (bx, by).
func (m *QualityMatrix) MeanRatioAt(bx, by int) float64 {
	return m.MeanRatio()[m.index(bx, by)]
}

// AverageAt returns the mean value of bin (bx, by).
func (m *QualityMatrix) AverageAt(bx, by int) float64 {
	return m.Average()[m.index(bx, by)]
}

// DensityAt returns the value count of bin (bx, by).
func (m *QualityMatrix) DensityAt(bx, by int) int {
	if m.frozen {
		return m.density[m.index(bx, by)]
	}
	return m.total[m.index(bx, by)]
}

// Counter returns the number of values recorded over all bins.
func (m *QualityMatrix) Counter() int64 {
	grid := m.total
	if m.frozen {
		grid = m.density
	}
	var n int64
	for _, v := range grid {
		n += int64(v)
	}
	return n
}

// MaxDensity returns the highest bin count.
func (m *QualityMatrix) MaxDensity() int {
	grid := m.total
	if m.frozen {
		grid = m.density
	}
	best := 0
	for _, v := range grid {
		best = max(best, v)
	}
	return best
}

// Selection returns the selection mask of the matrix.
func (m *QualityMatrix) Selection() *Mask { return &m.mask }

func (m *QualityMatrix) sameShape(other *QualityMatrix) bool {
	return m.size == other.size && m.rng == other.rng && len(m.thresholds) == len(other.thresholds)
}
