// Package analysis holds the per-read analysis modules fed by the pipeline
// and the capabilities they advertise.
package analysis

import (
	"cmp"
	"fmt"

	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/tile"
)

// Tag is the stable identifier of a module kind. It names cache blobs.
type Tag string

// Module tags.
const (
	TagBaseQuality    Tag = "base-quality"
	TagReadQuality    Tag = "read-quality"
	TagMappingQuality Tag = "mapping-quality"
	TagNContent       Tag = "n-content"
)

// Module consumes every read of the aggregate pass.
type Module interface {
	Tag() Tag
	// IgnoreFiltered reports whether reads failing the instrument filter are skipped.
	IgnoreFiltered() bool
	// Init prepares the module for the discovered topology.
	Init(tree *tile.Tree) error
	Consume(rec read.Record, pos tile.SequenceCoordinate) error
	// Finish freezes the results once the pass is complete.
	Finish() error
}

// Cacheable is implemented by modules whose results can be stored and restored.
type Cacheable interface {
	Module
	Snapshot() (Snapshot, error)
	Restore(tree *tile.Tree, s Snapshot) error
}

// Matrices is implemented by modules that expose quality matrices.
type Matrices interface {
	Module
	Matrix(key MatrixKey) (*matrix.QualityMatrix, bool)
	Keys() []MatrixKey
	MaxDensity() int
	MixPairs(op matrix.MixOperation) (map[MatrixKey]*matrix.QualityMatrix, error)
}

// MatrixKey identifies one matrix: a tile, and for per-base modules the
// 1-based base position. Per-tile modules use position 0.
type MatrixKey struct {
	Coordinate tile.Coordinate `json:"coordinate" yaml:"coordinate"`
	Position   int             `json:"position" yaml:"position"`
}

// NewMatrixKey creates a MatrixKey.
func NewMatrixKey(c tile.Coordinate, position int) MatrixKey {
	return MatrixKey{Coordinate: c, Position: position}
}

func (k MatrixKey) String() string {
	if k.Position == 0 {
		return k.Coordinate.String()
	}
	return fmt.Sprintf("%s@%d", k.Coordinate, k.Position)
}

// Compare orders keys by coordinate then position.
func (k MatrixKey) Compare(other MatrixKey) int {
	if r := k.Coordinate.Compare(other.Coordinate); r != 0 {
		return r
	}
	return cmp.Compare(k.Position, other.Position)
}

// Settings configures the modules of one run.
type Settings struct {
	MatrixSize        int
	QualityThreshold  int
	MappingThresholds []int
}

// MatrixEntry is one matrix of a module snapshot.
type MatrixEntry struct {
	Key    MatrixKey       `json:"key"`
	Matrix matrix.Snapshot `json:"matrix"`
}

// Snapshot is the serializable result of a module, matrices in key order.
type Snapshot struct {
	Tag        Tag           `json:"tag"`
	MaxDensity int           `json:"max_density"`
	Entries    []MatrixEntry `json:"entries"`
}
