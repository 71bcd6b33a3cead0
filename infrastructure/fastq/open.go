// Package fastq reads and writes FASTQ files, plain or gzip compressed.
package fastq

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// countingReader counts the bytes pulled from the file itself, so progress
// stays in file bytes when the content is decompressed on top of it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var err error
	for _, c := range m {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func isGzip(path string, fh *os.File) (bool, error) {
	if strings.HasSuffix(path, ".gz") {
		return true, nil
	}
	var sig [2]byte
	n, _ := io.ReadFull(fh, sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	return n == 2 && sig[0] == 0x1f && sig[1] == 0x8b, nil
}

// openFile opens path for reading, decompressing gzip content detected by
// magic number or .gz suffix.
func openFile(path string) (*bufio.Reader, *countingReader, int64, io.Closer, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, nil, err
	}
	info, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, nil, 0, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	gz, err := isGzip(path, fh)
	if err != nil {
		_ = fh.Close()
		return nil, nil, 0, nil, fmt.Errorf("sniff %s: %w", path, err)
	}

	counter := &countingReader{r: fh}
	if !gz {
		return bufio.NewReaderSize(counter, 64*1024), counter, info.Size(), fh, nil
	}
	gr, err := gzip.NewReader(bufio.NewReaderSize(counter, 64*1024))
	if err != nil {
		_ = fh.Close()
		return nil, nil, 0, nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return bufio.NewReaderSize(gr, 64*1024), counter, info.Size(), multiCloser{gr, fh}, nil
}
