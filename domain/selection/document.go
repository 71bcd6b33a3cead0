package selection

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/helixml/tileqc/domain/analysis"
	"github.com/helixml/tileqc/domain/matrix"
	"github.com/helixml/tileqc/domain/tile"
)

// ErrSizeMismatch indicates a selection document built for another matrix size.
var ErrSizeMismatch = errors.New("selection matrix size does not match configuration")

// Entry is the selection grid of one matrix. Grid holds N rows of '0'/'1'.
type Entry struct {
	Coordinate tile.Coordinate `yaml:"coordinate"`
	Base       int             `yaml:"base"`
	Grid       []string        `yaml:"grid"`
}

// Key returns the matrix key of the entry.
func (e Entry) Key() analysis.MatrixKey {
	return analysis.NewMatrixKey(e.Coordinate, e.Base)
}

// Document is a portable set of selections.
type Document struct {
	MatrixSize int     `yaml:"matrixSize"`
	Entries    []Entry `yaml:"entries"`
}

// ImportReport describes the outcome of Import.
type ImportReport struct {
	Applied int
	Missing []analysis.MatrixKey
}

// Export lists every matrix of the module with a selected bin, in key order.
func Export(mod MatrixSet, matrixSize int) Document {
	doc := Document{MatrixSize: matrixSize}
	for _, key := range mod.Keys() {
		m, _ := mod.Matrix(key)
		if !m.Selection().Any() {
			continue
		}
		doc.Entries = append(doc.Entries, Entry{
			Coordinate: key.Coordinate,
			Base:       key.Position,
			Grid:       m.Selection().Rows(),
		})
	}
	return doc
}

// Import overwrites the selection of every listed matrix. The whole import
// fails with ErrSizeMismatch if the document was built for another size.
// Entries without a live matrix are collected in the report.
func Import(doc Document, mod MatrixSet, matrixSize int) (ImportReport, error) {
	var report ImportReport
	if doc.MatrixSize != matrixSize {
		return report, fmt.Errorf("%w: document %d, configured %d", ErrSizeMismatch, doc.MatrixSize, matrixSize)
	}
	masks := make([]*matrix.Mask, len(doc.Entries))
	for i, e := range doc.Entries {
		m, ok := mod.Matrix(e.Key())
		if !ok {
			report.Missing = append(report.Missing, e.Key())
			continue
		}
		// Validate on a scratch mask so a bad row leaves live selections untouched.
		scratch := matrix.NewMask(m.Size())
		if err := scratch.SetRows(e.Grid); err != nil {
			return ImportReport{}, fmt.Errorf("entry %s: %w", e.Key(), err)
		}
		masks[i] = m.Selection()
	}
	for i, e := range doc.Entries {
		if masks[i] == nil {
			continue
		}
		if err := masks[i].SetRows(e.Grid); err != nil {
			return ImportReport{}, fmt.Errorf("entry %s: %w", e.Key(), err)
		}
		report.Applied++
	}
	return report, nil
}

// Encode writes the document as YAML.
func (d Document) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML selection document.
func Decode(r io.Reader) (Document, error) {
	var d Document
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return Document{}, fmt.Errorf("decode selection: %w", err)
	}
	return d, nil
}
