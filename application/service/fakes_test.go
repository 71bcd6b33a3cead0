package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/helixml/tileqc/domain/read"
	"github.com/helixml/tileqc/domain/run"
)

// item is one result of Source.Next.
type item struct {
	rec read.Record
	err error
}

func readAt(name string, x, y int, seq, qual string) item {
	return item{rec: read.Record{
		ID:       fmt.Sprintf("M1:7:FC1:1:1101:%d:%d 1:N:0:1 %s", x, y, name),
		Sequence: []byte(seq),
		Quality:  []byte(qual),
	}}
}

func malformed(index int64) item {
	return item{err: &read.MalformedRecordError{Index: index, Err: errors.New("truncated")}}
}

type sliceSource struct {
	items []item
	pos   int
}

func (s *sliceSource) Next() (read.Record, error) {
	if s.pos >= len(s.items) {
		return read.Record{}, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it.rec, it.err
}

func (s *sliceSource) BytesRead() int64 { return int64(s.pos) }
func (s *sliceSource) Size() int64      { return int64(len(s.items)) }
func (s *sliceSource) Close() error     { return nil }

// countingOpener opens a fresh sliceSource over the same items each time.
type countingOpener struct {
	items []item
	mu    sync.Mutex
	opens int
}

func (o *countingOpener) Open() (read.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	return &sliceSource{items: o.items}, nil
}

func (o *countingOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

type memWriter struct {
	records []read.Record
	failAt  int
	closed  bool
}

func (w *memWriter) Write(rec read.Record) error {
	if w.failAt > 0 && len(w.records)+1 == w.failAt {
		return errors.New("disk full")
	}
	w.records = append(w.records, rec.Clone())
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func (w *memWriter) names() []string {
	out := make([]string, 0, len(w.records))
	for _, r := range w.records {
		out = append(out, r.ID[strings.LastIndex(r.ID, " ")+1:])
	}
	return out
}

type recordingReporter struct {
	mu        sync.Mutex
	statuses  []run.Status
	malformed []run.MalformedRecord
}

func (r *recordingReporter) OnChange(_ context.Context, status run.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *recordingReporter) OnMalformedRecord(_ context.Context, rec run.MalformedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed = append(r.malformed, rec)
	return nil
}

func (r *recordingReporter) last() run.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

func (r *recordingReporter) percents() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s.Percent())
	}
	return out
}
