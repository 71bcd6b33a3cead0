package matrix

import (
	"fmt"
	"math"
)

// MixOperation combines two values of paired matrices.
type MixOperation interface {
	Name() string
	Apply(a, b float64) float64
}

// Average is the weighted mean a*w + b*(1-w).
type Average struct {
	Weight float64
}

// DefaultWeight is the weight of an unweighted average.
const DefaultWeight = 0.5

// NewAverage returns an Average with the default weight.
func NewAverage() Average { return Average{Weight: DefaultWeight} }

// Name implements MixOperation.
func (Average) Name() string { return "average" }

// Apply implements MixOperation.
func (o Average) Apply(a, b float64) float64 {
	return a*o.Weight + b*(1-o.Weight)
}

// Diff is a-b.
type Diff struct{}

// Name implements MixOperation.
func (Diff) Name() string { return "diff" }

// Apply implements MixOperation.
func (Diff) Apply(a, b float64) float64 { return a - b }

// AbsDiff is |a-b|.
type AbsDiff struct{}

// Name implements MixOperation.
func (AbsDiff) Name() string { return "absdiff" }

// Apply implements MixOperation.
func (AbsDiff) Apply(a, b float64) float64 { return math.Abs(a - b) }

// Mix combines two matrices bin by bin. The mixed density is the rounded
// mean of both densities; all other derived grids go through op.
//
// A missing operand yields a nil matrix and no error. Matrices of
// different size, range or threshold count yield ErrMixMismatch and
// leave both operands untouched.
func Mix(op MixOperation, a, b *QualityMatrix) (*QualityMatrix, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	if !a.sameShape(b) {
		return nil, fmt.Errorf("%w: %dx%d %v and %dx%d %v", ErrMixMismatch,
			a.size, a.size, a.rng, b.size, b.size, b.rng)
	}
	out := &QualityMatrix{
		size:         a.size,
		rng:          a.rng,
		threshold:    a.threshold,
		hasThreshold: a.hasThreshold,
		thresholds:   a.thresholds,
		frozen:       true,
		mask:         newMask(a.size),
	}
	ad, bd := a.Density(), b.Density()
	out.density = make([]int, len(ad))
	for i := range ad {
		out.density[i] = int(math.Round(float64(ad[i]+bd[i]) / 2))
	}
	out.meanRatio = combine(op, a.MeanRatio(), b.MeanRatio())
	out.average = combine(op, a.Average(), b.Average())
	out.extraRatios = make([][]float64, len(a.extraRatios))
	for k := range out.extraRatios {
		out.extraRatios[k] = combine(op, a.extraRatios[k], b.extraRatios[k])
	}
	out.total = out.density
	return out, nil
}

func combine(op MixOperation, a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = op.Apply(a[i], b[i])
	}
	return out
}

// OperationByName returns the mix operation with the given name.
func OperationByName(name string) (MixOperation, bool) {
	switch name {
	case "average", "":
		return NewAverage(), true
	case "diff":
		return Diff{}, true
	case "absdiff":
		return AbsDiff{}, true
	default:
		return nil, false
	}
}
