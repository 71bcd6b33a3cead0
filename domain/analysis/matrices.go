package analysis

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/tile"
)

// matrixSet is the shared state of the matrix modules: one lazily created
// matrix per key, spanning the cycle range of its tile.
type matrixSet struct {
	tag      Tag
	settings Settings
	options  []matrix.Option
	tree     *tile.Tree
	matrices map[MatrixKey]*matrix.QualityMatrix
	ranges   map[tile.Coordinate]tile.Range
	maxCount int
}

func newMatrixSet(tag Tag, settings Settings, options ...matrix.Option) matrixSet {
	return matrixSet{
		tag:      tag,
		settings: settings,
		options:  options,
		matrices: make(map[MatrixKey]*matrix.QualityMatrix),
		ranges:   make(map[tile.Coordinate]tile.Range),
	}
}

func (s *matrixSet) Tag() Tag { return s.tag }

func (s *matrixSet) Init(tree *tile.Tree) error {
	if tree == nil {
		return errors.New("nil tile tree")
	}
	s.tree = tree
	clear(s.matrices)
	clear(s.ranges)
	s.maxCount = 0
	return nil
}

func (s *matrixSet) rangeOf(c tile.Coordinate) tile.Range {
	r, ok := s.ranges[c]
	if !ok {
		r = s.tree.CycleRange(c)
		s.ranges[c] = r
	}
	return r
}

func (s *matrixSet) get(key MatrixKey) (*matrix.QualityMatrix, error) {
	m, ok := s.matrices[key]
	if ok {
		return m, nil
	}
	m, err := matrix.New(s.settings.MatrixSize, s.rangeOf(key.Coordinate), s.options...)
	if err != nil {
		return nil, fmt.Errorf("%s matrix %s: %w", s.tag, key, err)
	}
	s.matrices[key] = m
	return m, nil
}

func (s *matrixSet) add(key MatrixKey, pos tile.SequenceCoordinate, value int) error {
	m, err := s.get(key)
	if err != nil {
		return err
	}
	n, err := m.AddQualityValue(pos.X, pos.Y, value)
	if err != nil {
		return fmt.Errorf("%s matrix %s: %w", s.tag, key, err)
	}
	s.maxCount = max(s.maxCount, n)
	return nil
}

func (s *matrixSet) Finish() error {
	for _, m := range s.matrices {
		m.Freeze()
	}
	return nil
}

// Matrix returns the matrix for key.
func (s *matrixSet) Matrix(key MatrixKey) (*matrix.QualityMatrix, bool) {
	m, ok := s.matrices[key]
	return m, ok
}

// Keys returns all matrix keys in order.
func (s *matrixSet) Keys() []MatrixKey {
	return slices.SortedFunc(maps.Keys(s.matrices), MatrixKey.Compare)
}

// MaxDensity returns the highest bin count over all matrices.
func (s *matrixSet) MaxDensity() int { return s.maxCount }

// MixPairs mixes every top tile matrix with the matrix of its bottom tile,
// keyed by the top tile. Pairs that cannot be mixed are reported in the
// joined error and left out; the other pairs are still returned.
func (s *matrixSet) MixPairs(op matrix.MixOperation) (map[MatrixKey]*matrix.QualityMatrix, error) {
	out := make(map[MatrixKey]*matrix.QualityMatrix)
	if s.tree == nil {
		return out, nil
	}
	scheme := s.tree.Numeration()
	if !scheme.Paired() {
		return out, nil
	}
	var errs []error
	for _, key := range s.Keys() {
		if !scheme.IsFirstInCycle(key.Coordinate.Tile) {
			continue
		}
		bottom, err := scheme.BottomTile(key.Coordinate.Tile)
		if err != nil {
			return nil, err
		}
		pair := NewMatrixKey(key.Coordinate.WithTile(bottom), key.Position)
		mixed, err := matrix.Mix(op, s.matrices[key], s.matrices[pair])
		if err != nil {
			errs = append(errs, fmt.Errorf("mix %s with %s: %w", key, pair, err))
			continue
		}
		if mixed != nil {
			out[key] = mixed
		}
	}
	return out, errors.Join(errs...)
}

// Snapshot captures every matrix in key order.
func (s *matrixSet) Snapshot() (Snapshot, error) {
	snap := Snapshot{Tag: s.tag, MaxDensity: s.maxCount}
	for _, key := range s.Keys() {
		snap.Entries = append(snap.Entries, MatrixEntry{Key: key, Matrix: s.matrices[key].Snapshot()})
	}
	return snap, nil
}

// Restore replaces the module state with a snapshot.
func (s *matrixSet) Restore(tree *tile.Tree, snap Snapshot) error {
	if snap.Tag != s.tag {
		return fmt.Errorf("snapshot tag %q does not match module %q", snap.Tag, s.tag)
	}
	if err := s.Init(tree); err != nil {
		return err
	}
	for _, e := range snap.Entries {
		if e.Matrix.Size != s.settings.MatrixSize {
			return fmt.Errorf("%s matrix %s: size %d, want %d", s.tag, e.Key, e.Matrix.Size, s.settings.MatrixSize)
		}
		m, err := matrix.FromSnapshot(e.Matrix)
		if err != nil {
			return fmt.Errorf("%s matrix %s: %w", s.tag, e.Key, err)
		}
		s.matrices[e.Key] = m
	}
	s.maxCount = snap.MaxDensity
	return nil
}
