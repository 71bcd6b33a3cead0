package fastq

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/helixml/tileqc/domain/read"
)

// Writer writes records as FASTQ, in the orientation they are stored in.
type Writer struct {
	bw      *bufio.Writer
	closers []io.Closer
}

// Create creates path for writing, gzip compressed when it ends in .gz.
func Create(path string) (*Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return &Writer{bw: bufio.NewWriter(fh), closers: []io.Closer{fh}}, nil
	}
	gw := gzip.NewWriter(fh)
	return &Writer{bw: bufio.NewWriter(gw), closers: []io.Closer{gw, fh}}, nil
}

// NewWriter writes FASTQ to w. Closing the Writer flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write writes one record.
func (w *Writer) Write(rec read.Record) error {
	seq, qual := rec.Stored()
	if _, err := fmt.Fprintf(w.bw, "@%s\n%s\n+\n%s\n", rec.ID, seq, qual); err != nil {
		return fmt.Errorf("write %s: %w", rec.ID, err)
	}
	return nil
}

// Close flushes buffered output and closes the file, if any.
func (w *Writer) Close() error {
	err := w.bw.Flush()
	for _, c := range w.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
