// Package read defines the read records flowing through the pipeline and
// the source and writer contracts of the file formats that carry them.
package read

import (
	"fmt"
	"io"
)

// Record is one sequencing read.
//
// Sequence and Quality are always in sequencing order. Reverse marks a
// record its format stores reverse-complemented; writers restore the
// stored orientation.
type Record struct {
	ID             string
	Sequence       []byte
	Quality        []byte
	MappingQuality int
	Mapped         bool
	Reverse        bool
}

// Len returns the number of bases.
func (r Record) Len() int { return len(r.Sequence) }

// Clone returns a deep copy so the caller may patch bases.
func (r Record) Clone() Record {
	r.Sequence = append([]byte(nil), r.Sequence...)
	r.Quality = append([]byte(nil), r.Quality...)
	return r
}

// Stored returns sequence and quality in the orientation of the file.
func (r Record) Stored() ([]byte, []byte) {
	if !r.Reverse {
		return r.Sequence, r.Quality
	}
	return ReverseComplement(r.Sequence), Reverse(r.Quality)
}

// Source yields records in file order. Next returns io.EOF after the last record.
type Source interface {
	Next() (Record, error)
	// BytesRead returns how many bytes of the underlying file were consumed.
	BytesRead() int64
	// Size returns the total size of the underlying file in bytes.
	Size() int64
	io.Closer
}

// Opener opens a fresh Source positioned at the first record.
type Opener interface {
	Open() (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func() (Source, error)

// Open implements Opener.
func (f OpenerFunc) Open() (Source, error) { return f() }

// Writer writes records.
type Writer interface {
	Write(Record) error
	io.Closer
}

// MalformedRecordError reports a record that could not be decoded.
// The source stays usable and the next call to Next reads the following record.
type MalformedRecordError struct {
	Index int64
	ID    string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("malformed record %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
