package selection

import (
	"fmt"

	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/tile"
)

// ClearMethod chooses what masking does with reads that hit a selected bin.
type ClearMethod string

// Clear methods.
const (
	ClearNone ClearMethod = "none"
	// ClearDelete routes every read with a masked base, unmodified, to the failed stream.
	ClearDelete ClearMethod = "delete"
	// ClearChange writes every read to the primary stream with masked bases set to N.
	ClearChange ClearMethod = "change"
)

// ParseClearMethod parses a clear method name.
func ParseClearMethod(s string) (ClearMethod, error) {
	switch m := ClearMethod(s); m {
	case ClearNone, ClearDelete, ClearChange:
		return m, nil
	case "":
		return ClearNone, nil
	default:
		return "", fmt.Errorf("unknown clear method %q", s)
	}
}

// ParseMethod parses a selection method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodAuto, MethodUser, MethodFile:
		return m, nil
	case "":
		return MethodAuto, nil
	default:
		return "", fmt.Errorf("unknown selection method %q", s)
	}
}

// BaseMatrices is the per-base matrix lookup masking works from.
type BaseMatrices interface {
	Positions(c tile.Coordinate) int
	Matrix(key analysis.MatrixKey) (*matrix.QualityMatrix, bool)
}

// ChangeSummary counts what masking did.
type ChangeSummary struct {
	Reads        int64
	ReadsChanged int64
	BasesChanged int64
}

// Masker applies base selections to reads.
type Masker struct {
	method  ClearMethod
	lookup  BaseMatrices
	summary ChangeSummary
}

// NewMasker creates a masker.
func NewMasker(method ClearMethod, lookup BaseMatrices) *Masker {
	return &Masker{method: method, lookup: lookup}
}

// Summary returns the counts so far.
func (m *Masker) Summary() ChangeSummary { return m.summary }

// selected reports whether base i (0-based) of a read at pos falls in a
// selected bin. Bases without a matrix count as selected.
func (m *Masker) selected(pos tile.SequenceCoordinate, i int) bool {
	if i >= m.lookup.Positions(pos.Coordinate) {
		return true
	}
	q, ok := m.lookup.Matrix(analysis.NewMatrixKey(pos.Coordinate, i+1))
	if !ok {
		return true
	}
	bx, by := q.BinOf(pos.X, pos.Y)
	return q.Selection().Selected(bx, by)
}

// Clear returns the read with every selected base replaced by N, and the
// number of bases replaced. The input record is not modified.
func (m *Masker) Clear(rec read.Record, pos tile.SequenceCoordinate) (read.Record, int) {
	out := rec
	changed := 0
	for i := range rec.Sequence {
		if !m.selected(pos, i) {
			continue
		}
		if changed == 0 {
			out = rec.Clone()
		}
		out.Sequence[i] = 'N'
		changed++
	}
	return out, changed
}

// Apply masks one read and writes it to primary or failed according to the
// clear method.
func (m *Masker) Apply(rec read.Record, pos tile.SequenceCoordinate, primary, failed read.Writer) error {
	patched, changed := m.Clear(rec, pos)
	return m.write(rec, patched, changed, primary, failed)
}

// ApplyUnplaced masks a read whose tile position is unknown. Every base
// counts as selected.
func (m *Masker) ApplyUnplaced(rec read.Record, primary, failed read.Writer) error {
	patched := rec.Clone()
	for i := range patched.Sequence {
		patched.Sequence[i] = 'N'
	}
	return m.write(rec, patched, len(rec.Sequence), primary, failed)
}

func (m *Masker) write(rec, patched read.Record, changed int, primary, failed read.Writer) error {
	m.summary.Reads++
	if changed > 0 {
		m.summary.ReadsChanged++
		m.summary.BasesChanged += int64(changed)
	}
	switch {
	case m.method == ClearDelete && changed > 0:
		return failed.Write(rec)
	case m.method == ClearChange:
		return primary.Write(patched)
	default:
		return primary.Write(rec)
	}
}
