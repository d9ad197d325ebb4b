package fitd

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a fit run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusCancelled, RunStatusFailed:
		return true
	}
	return false
}

// RunRecord is the stored state of one fit run. Best holds the best
// candidate vector found so far; it is updated once per generation.
type RunRecord struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	Error           string    `json:"error,omitempty"`
	Best            []float64 `json:"best,omitempty"`
	BestMSE         float64   `json:"best_mse"`
	Generation      int       `json:"generation"`
	Evaluations     int       `json:"evaluations"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
}

func (r *RunRecord) clone() *RunRecord {
	out := *r
	if r.Best != nil {
		out.Best = make([]float64, len(r.Best))
		copy(out.Best, r.Best)
	}
	return &out
}

// RunStore is a mutex-guarded in-memory run registry.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a new pending run and returns its record.
func (s *RunStore) Create() *RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &RunRecord{
		ID:              uuid.NewString(),
		Status:          RunStatusPending,
		CreatedAtUnixMs: nowUnixMs(),
	}
	s.runs[rec.ID] = rec
	return rec.clone()
}

// Get returns a copy of the run record.
func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// List returns up to limit runs, newest first.
func (s *RunStore) List(limit int) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAtUnixMs > out[j].CreatedAtUnixMs
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SetStatus transitions a run's lifecycle state.
func (s *RunStore) SetStatus(runID string, status RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}

	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}
	switch status {
	case RunStatusRunning:
		if rec.StartedAtUnixMs == 0 {
			rec.StartedAtUnixMs = nowUnixMs()
		}
	case RunStatusCompleted, RunStatusCancelled, RunStatusFailed:
		rec.EndedAtUnixMs = nowUnixMs()
	}
	return nil
}

// SetProgress records the per-generation best candidate.
func (s *RunStore) SetProgress(runID string, generation int, best []float64, mse float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Generation = generation
	rec.BestMSE = mse
	rec.Best = make([]float64, len(best))
	copy(rec.Best, best)
	return nil
}

// SetResult records the terminal outcome of a run.
func (s *RunStore) SetResult(runID string, reason string, best []float64, mse float64, generations, evaluations int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Reason = reason
	rec.Generation = generations
	rec.Evaluations = evaluations
	rec.BestMSE = mse
	rec.Best = make([]float64, len(best))
	copy(rec.Best, best)
	return nil
}
