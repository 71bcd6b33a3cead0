package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/helixml/tileqc/domain/run"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusBoard keeps the latest status of every run and serves them as JSON.
// It implements tracking.Reporter.
type StatusBoard struct {
	mu        sync.RWMutex
	runs      map[string]run.Status
	order     []string
	malformed map[string]int64
}

// NewStatusBoard creates an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{
		runs:      make(map[string]run.Status),
		malformed: make(map[string]int64),
	}
}

// OnChange records the status.
func (b *StatusBoard) OnChange(_ context.Context, status run.Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.runs[status.RunID()]; !ok {
		b.order = append(b.order, status.RunID())
	}
	b.runs[status.RunID()] = status
	return nil
}

// OnMalformedRecord counts the skipped record.
func (b *StatusBoard) OnMalformedRecord(_ context.Context, rec run.MalformedRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.malformed[rec.RunID]++
	return nil
}

// StatusView is the JSON form of a run status.
type StatusView struct {
	RunID            string  `json:"run_id"`
	Stage            string  `json:"stage"`
	State            string  `json:"state"`
	Percent          float64 `json:"percent"`
	RemainingSeconds *int64  `json:"remaining_seconds,omitempty"`
	Message          string  `json:"message,omitempty"`
	Error            string  `json:"error,omitempty"`
	Malformed        int64   `json:"malformed_records"`
	UpdatedAt        string  `json:"updated_at"`
}

// Views returns every run in the order first seen.
func (b *StatusBoard) Views() []StatusView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StatusView, 0, len(b.order))
	for _, id := range b.order {
		s := b.runs[id]
		v := StatusView{
			RunID:     id,
			Stage:     string(s.Stage()),
			State:     string(s.State()),
			Percent:   s.Percent(),
			Message:   s.Message(),
			Error:     s.Error(),
			Malformed: b.malformed[id],
			UpdatedAt: s.UpdatedAt().Format(time.RFC3339),
		}
		if d, ok := s.Remaining(); ok {
			secs := int64(d.Round(time.Second) / time.Second)
			v.RemainingSeconds = &secs
		}
		out = append(out, v)
	}
	return out
}

// ServeHTTP writes every run status.
func (b *StatusBoard) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	data, err := json.Marshal(map[string][]StatusView{"runs": b.Views()})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
