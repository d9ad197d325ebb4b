package fitd

import (
	"testing"
)

func TestRunStoreCreateAndGet(t *testing.T) {
	store := NewRunStore()

	rec := store.Create()
	if rec == nil {
		t.Fatalf("Create returned nil record")
	}
	if rec.ID == "" {
		t.Fatalf("expected generated run id")
	}
	if rec.Status != RunStatusPending {
		t.Fatalf("expected status pending, got %v", rec.Status)
	}
	if rec.CreatedAtUnixMs == 0 {
		t.Fatalf("expected created_at_unix_ms to be set")
	}

	got, ok := store.Get(rec.ID)
	if !ok {
		t.Fatalf("expected run to exist")
	}
	if got.ID != rec.ID {
		t.Fatalf("expected same run id")
	}
}

func TestRunStoreGetUnknown(t *testing.T) {
	store := NewRunStore()
	if _, ok := store.Get("no-such-run"); ok {
		t.Fatalf("expected missing run")
	}
}

func TestRunStoreSetStatusSetsTimestamps(t *testing.T) {
	store := NewRunStore()
	rec := store.Create()

	if rec.StartedAtUnixMs != 0 || rec.EndedAtUnixMs != 0 {
		t.Fatalf("expected timestamps not set initially")
	}

	if err := store.SetStatus(rec.ID, RunStatusRunning, ""); err != nil {
		t.Fatalf("SetStatus running error: %v", err)
	}
	got, _ := store.Get(rec.ID)
	if got.StartedAtUnixMs == 0 {
		t.Fatalf("expected started_at_unix_ms set")
	}
	if got.EndedAtUnixMs != 0 {
		t.Fatalf("did not expect ended_at_unix_ms set for running")
	}

	if err := store.SetStatus(rec.ID, RunStatusCompleted, ""); err != nil {
		t.Fatalf("SetStatus completed error: %v", err)
	}
	got, _ = store.Get(rec.ID)
	if got.EndedAtUnixMs == 0 {
		t.Fatalf("expected ended_at_unix_ms set")
	}
}

func TestRunStoreSetStatusUnknownRun(t *testing.T) {
	store := NewRunStore()
	if err := store.SetStatus("no-such-run", RunStatusRunning, ""); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestRunStoreProgressCopiesBest(t *testing.T) {
	store := NewRunStore()
	rec := store.Create()

	best := []float64{1, 2, 3}
	if err := store.SetProgress(rec.ID, 5, best, 0.25); err != nil {
		t.Fatalf("SetProgress error: %v", err)
	}
	best[0] = 99

	got, _ := store.Get(rec.ID)
	if got.Generation != 5 {
		t.Fatalf("expected generation 5, got %d", got.Generation)
	}
	if got.BestMSE != 0.25 {
		t.Fatalf("expected best MSE 0.25, got %f", got.BestMSE)
	}
	if got.Best[0] != 1 {
		t.Fatalf("expected stored best isolated from caller slice, got %f", got.Best[0])
	}

	// Mutating the returned record must not leak back into the store.
	got.Best[1] = -7
	again, _ := store.Get(rec.ID)
	if again.Best[1] != 2 {
		t.Fatalf("expected store isolated from returned copies, got %f", again.Best[1])
	}
}

func TestRunStoreSetResult(t *testing.T) {
	store := NewRunStore()
	rec := store.Create()

	if err := store.SetResult(rec.ID, "converged", []float64{4, 5}, 1e-6, 42, 4200); err != nil {
		t.Fatalf("SetResult error: %v", err)
	}
	got, _ := store.Get(rec.ID)
	if got.Reason != "converged" {
		t.Fatalf("expected reason converged, got %q", got.Reason)
	}
	if got.Generation != 42 || got.Evaluations != 4200 {
		t.Fatalf("expected counters recorded, got gen %d evals %d", got.Generation, got.Evaluations)
	}
	if len(got.Best) != 2 {
		t.Fatalf("expected best of length 2, got %d", len(got.Best))
	}
}

func TestRunStoreListNewestFirst(t *testing.T) {
	store := NewRunStore()
	a := store.Create()
	b := store.Create()
	// Force distinct ordering keys regardless of clock resolution.
	store.mu.Lock()
	store.runs[a.ID].CreatedAtUnixMs = 100
	store.runs[b.ID].CreatedAtUnixMs = 200
	store.mu.Unlock()

	runs := store.List(10)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != b.ID {
		t.Fatalf("expected newest run first")
	}

	runs = store.List(1)
	if len(runs) != 1 {
		t.Fatalf("expected limit applied, got %d runs", len(runs))
	}
}

func TestRunStatusTerminal(t *testing.T) {
	terminal := []RunStatus{RunStatusCompleted, RunStatusCancelled, RunStatusFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %v to be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunStatusPending, RunStatusRunning} {
		if s.Terminal() {
			t.Fatalf("expected %v to be non-terminal", s)
		}
	}
}
