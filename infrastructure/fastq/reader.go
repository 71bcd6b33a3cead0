package fastq

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/helixml/tileqc/domain/read"
)

var (
	errHeader     = errors.New("header line does not start with '@'")
	errSeparator  = errors.New("separator line does not start with '+'")
	errLength     = errors.New("sequence and quality lengths differ")
	errTruncated  = errors.New("truncated record")
	errEmptyEntry = errors.New("empty sequence")
)

// Reader is a read.Source over one FASTQ file.
//
// A record that fails validation is returned as a *read.MalformedRecordError.
// Only the lines of the broken record are consumed: the next call resumes at
// the next line that starts a record.
type Reader struct {
	br      *bufio.Reader
	counter *countingReader
	size    int64
	closer  io.Closer
	index   int64
	pending [][]byte
	eof     bool
}

// Open opens path as a FASTQ source.
func Open(path string) (*Reader, error) {
	br, counter, size, closer, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return &Reader{br: br, counter: counter, size: size, closer: closer}, nil
}

// NewReader reads FASTQ from r. Size reports size, which may be zero when unknown.
func NewReader(r io.Reader, size int64) *Reader {
	counter := &countingReader{r: r}
	return &Reader{br: bufio.NewReader(counter), counter: counter, size: size, closer: multiCloser(nil)}
}

// Opener returns a read.Opener that opens path afresh on every call.
func Opener(path string) read.Opener {
	return read.OpenerFunc(func() (read.Source, error) {
		return Open(path)
	})
}

// BytesRead returns how many bytes of the file were consumed.
func (r *Reader) BytesRead() int64 { return r.counter.n }

// Size returns the size of the file in bytes.
func (r *Reader) Size() int64 { return r.size }

// Close closes the underlying file.
func (r *Reader) Close() error { return r.closer.Close() }

// fill buffers lines until n are pending or the file ends.
func (r *Reader) fill(n int) error {
	for len(r.pending) < n && !r.eof {
		b, err := r.br.ReadBytes('\n')
		if len(b) > 0 {
			r.pending = append(r.pending, bytes.TrimRight(b, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			r.eof = true
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// startsRecord reports whether pending line i looks like a header: it starts
// with '@' and the line two below is a separator.
func (r *Reader) startsRecord(i int) bool {
	return i+2 < len(r.pending) && hasPrefix(r.pending[i], '@') && hasPrefix(r.pending[i+2], '+')
}

func hasPrefix(b []byte, c byte) bool { return len(b) > 0 && b[0] == c }

// discard drops the first n pending lines.
func (r *Reader) discard(n int) {
	r.pending = r.pending[min(n, len(r.pending)):]
}

// resync drops the header of a broken record and every following line up to
// the next line that starts a record.
func (r *Reader) resync() error {
	for i := 1; ; i++ {
		if err := r.fill(i + 3); err != nil {
			return err
		}
		if i >= len(r.pending) {
			r.discard(i)
			return nil
		}
		if r.startsRecord(i) {
			r.discard(i)
			return nil
		}
	}
}

// Next returns the next record, io.EOF at the end of the file, or a
// *read.MalformedRecordError for a record that does not validate.
func (r *Reader) Next() (read.Record, error) {
	for {
		if err := r.fill(1); err != nil {
			return read.Record{}, err
		}
		if len(r.pending) == 0 {
			return read.Record{}, io.EOF
		}
		if len(r.pending[0]) > 0 {
			break
		}
		r.discard(1)
	}
	if err := r.fill(6); err != nil {
		return read.Record{}, err
	}

	header := r.pending[0]
	if len(r.pending) < 4 {
		r.discard(len(r.pending))
		return read.Record{}, r.malformed(header, errTruncated)
	}
	seq, sep, qual := r.pending[1], r.pending[2], r.pending[3]

	var cause error
	switch {
	case !hasPrefix(header, '@'):
		cause = errHeader
	case !hasPrefix(sep, '+'):
		cause = errSeparator
	}
	if cause != nil {
		if err := r.resync(); err != nil {
			return read.Record{}, err
		}
		return read.Record{}, r.malformed(header, cause)
	}

	// A quality line that starts the next record means this one lost its
	// quality line.
	if r.startsRecord(3) {
		r.discard(3)
		return read.Record{}, r.malformed(header, errTruncated)
	}
	r.discard(4)

	switch {
	case len(seq) == 0:
		return read.Record{}, r.malformed(header, errEmptyEntry)
	case len(seq) != len(qual):
		return read.Record{}, r.malformed(header, fmt.Errorf("%w: %d vs %d", errLength, len(seq), len(qual)))
	}

	r.index++
	return read.Record{
		ID:       string(header[1:]),
		Sequence: seq,
		Quality:  qual,
	}, nil
}

func (r *Reader) malformed(header []byte, err error) error {
	idx := r.index
	r.index++
	id := string(header)
	if len(header) > 0 && header[0] == '@' {
		id = string(header[1:])
	}
	return &read.MalformedRecordError{Index: idx, ID: id, Err: err}
}
