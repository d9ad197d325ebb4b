package fitd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kinfit/kinfit-core/internal/objective"
	"github.com/kinfit/kinfit-core/internal/optimizer"
	"github.com/kinfit/kinfit-core/pkg/config"
	"github.com/kinfit/kinfit-core/pkg/logger"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

// RunExecutor starts fit runs asynchronously and owns per-run cancellation
// tokens. One optimization goroutine is spawned per run; eligibility and
// fatal setup errors are reported synchronously from Start.
type RunExecutor struct {
	store    *RunStore
	cfg      *config.Config
	notifier *Notifier
	metrics  *Metrics

	mu     sync.Mutex
	tokens map[string]*optimizer.Token
}

func NewRunExecutor(store *RunStore, cfg *config.Config, notifier *Notifier, metrics *Metrics) *RunExecutor {
	return &RunExecutor{
		store:    store,
		cfg:      cfg,
		notifier: notifier,
		metrics:  metrics,
		tokens:   make(map[string]*optimizer.Token),
	}
}

// Start validates the request, builds the objective, proves it survives a
// serialization round trip, and launches the optimization goroutine. It
// returns the created run in the running state.
func (e *RunExecutor) Start(req *FitRequest) (*RunRecord, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid fit request: %w", err)
	}

	daemonSubset, err := e.cfg.ModelSubset()
	if err != nil {
		return nil, err
	}
	subset, err := req.modelSubset(daemonSubset)
	if err != nil {
		return nil, err
	}

	obj, err := objective.New(req.network(), req.objectiveCurves(), req.solverConfig(e.cfg.Solver), subset)
	if err != nil {
		return nil, err
	}

	// A worker handed a corrupted objective would silently fit garbage, so
	// a round-trip mismatch is a fatal setup error, not a warning.
	if _, err := obj.RoundTrip(); err != nil {
		return nil, fmt.Errorf("objective round trip: %w", err)
	}

	bounds := req.searchBounds()
	eval := &instrumentedEvaluator{inner: obj, penalty: obj.Penalty, metrics: e.metrics}
	de, err := optimizer.New(eval, bounds, obj.Dim(), req.optimizerConfig(e.cfg.Optimizer))
	if err != nil {
		return nil, err
	}

	rec := e.store.Create()
	if err := e.store.SetStatus(rec.ID, RunStatusRunning, ""); err != nil {
		return nil, err
	}

	token := optimizer.NewToken()
	e.mu.Lock()
	e.tokens[rec.ID] = token
	e.mu.Unlock()

	go e.drive(rec.ID, de, token, req.CallbackURL)

	rec, _ = e.store.Get(rec.ID)
	return rec, nil
}

// Stop requests cancellation for a running run. The token is polled at
// generation boundaries, so in-flight evaluations finish before the run
// reaches the cancelled state.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	e.mu.Lock()
	token, ok := e.tokens[runID]
	e.mu.Unlock()
	if ok {
		token.Cancel()
	}

	rec, _ = e.store.Get(runID)
	return rec, nil
}

// Best returns the run record with the best candidate found so far.
func (e *RunExecutor) Best(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}
	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec, nil
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	delete(e.tokens, runID)
	e.mu.Unlock()
}

func (e *RunExecutor) drive(runID string, de *optimizer.DiffEvo, token *optimizer.Token, callbackURL string) {
	defer e.cleanup(runID)

	if e.metrics != nil {
		e.metrics.ActiveRuns.Inc()
		defer e.metrics.ActiveRuns.Dec()
	}

	lastGeneration := time.Now()
	de.WithMonitor(func(p optimizer.Progress) {
		if e.metrics != nil {
			e.metrics.GenerationSeconds.Observe(time.Since(lastGeneration).Seconds())
		}
		lastGeneration = time.Now()

		if err := e.store.SetProgress(runID, p.Generation, p.Best, p.BestScore); err != nil {
			logger.Warn("failed to record progress", "run_id", runID, "error", err)
			return
		}
		if rec, ok := e.store.Get(runID); ok {
			e.notifier.NotifyProgress(callbackURL, rec)
		}
	})

	logger.Info("starting fit run", "run_id", runID)
	result, err := de.Optimize(token)
	if err != nil {
		logger.Error("fit run failed", "run_id", runID, "error", err)
		if setErr := e.store.SetStatus(runID, RunStatusFailed, err.Error()); setErr != nil {
			logger.Error("failed to set failed status", "run_id", runID, "error", setErr)
		}
		e.notifyTerminal(runID, callbackURL)
		return
	}

	if err := e.store.SetResult(runID, string(result.Reason), result.Best, result.BestScore, result.Generations, result.Evaluations); err != nil {
		logger.Error("failed to record result", "run_id", runID, "error", err)
	}

	status := RunStatusCompleted
	if result.Reason == optimizer.ReasonCancelled {
		status = RunStatusCancelled
	}
	if err := e.store.SetStatus(runID, status, ""); err != nil {
		logger.Error("failed to set terminal status", "run_id", runID, "error", err)
	}

	logger.Info("fit run finished",
		"run_id", runID,
		"reason", result.Reason,
		"generations", result.Generations,
		"evaluations", result.Evaluations,
		"best_mse", result.BestScore)

	e.notifyTerminal(runID, callbackURL)
}

func (e *RunExecutor) notifyTerminal(runID, callbackURL string) {
	if rec, ok := e.store.Get(runID); ok {
		e.notifier.NotifyTerminal(callbackURL, rec)
	}
}
