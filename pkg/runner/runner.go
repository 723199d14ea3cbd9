// Package runner owns background execution: one long-running task per
// session for the next/all commands, bounded across sessions, strictly
// serialized within a session.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/maestro-ai/maestro/pkg/envelope"
	"github.com/maestro-ai/maestro/pkg/executor"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/store"
)

var (
	// ErrAlreadyRunning is returned when a run is requested for a session
	// whose persisted status is already running.
	ErrAlreadyRunning = errors.New("session is already running")

	// ErrNoPendingSubtasks is returned when a run is requested but every
	// subtask is done or skipped.
	ErrNoPendingSubtasks = errors.New("no pending subtasks")
)

// Mode selects how much of the plan one run consumes.
type Mode int

// Run modes.
const (
	// RunNext stops after one subtask is accepted.
	RunNext Mode = iota

	// RunAll continues until no pending subtasks remain.
	RunAll
)

// Runner spawns and tracks per-session background runs.
type Runner struct {
	store    store.Store
	executor *executor.Executor
	env      *envelope.Log
	sem      *semaphore.Weighted
	logger   *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	// Session cancel registry: session_id -> cancel function.
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New creates a runner with the given cross-session concurrency bound.
func New(st store.Store, exec *executor.Executor, env *envelope.Log, maxConcurrent int, logger *slog.Logger) *Runner {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Runner{
		store:      st,
		executor:   exec,
		env:        env,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		logger:     logger.With("component", "runner"),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		active:     make(map[string]context.CancelFunc),
	}
}

// Start claims the session by persisting status=running and spawns the
// background task. Returns immediately; the caller responds with the current
// snapshot. Re-entry is blocked by the persisted flag, which also survives
// crashes.
func (r *Runner) Start(ctx context.Context, sessionID string, mode Mode) error {
	state, err := r.store.GetOrchestratorState(ctx, sessionID)
	if err != nil {
		return err
	}
	if state.Status == models.OrchestratorRunning {
		return ErrAlreadyRunning
	}
	pl, err := r.store.GetPlan(ctx, sessionID)
	if err != nil {
		return err
	}
	next := pl.NextPending()
	if next == nil {
		return ErrNoPendingSubtasks
	}

	state.Status = models.OrchestratorRunning
	state.CurrentSubtaskID = next.ID
	state.Extra.LastError = ""
	if err := r.store.SaveOrchestratorState(ctx, state); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(r.baseCtx)
	r.register(sessionID, cancel)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.unregister(sessionID)
		defer cancel()
		r.run(runCtx, sessionID, mode)
	}()
	return nil
}

func (r *Runner) register(sessionID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[sessionID] = cancel
}

func (r *Runner) unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
}

// CancelSession triggers cancellation for a session's active run. Returns
// true if a run was found.
func (r *Runner) CancelSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.active[sessionID]; ok {
		cancel()
		return true
	}
	return false
}

// ActiveCount returns the number of registered runs, for health reporting.
func (r *Runner) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// run is the background task body. State is reloaded from the store on every
// iteration so user steering (set_current_subtask, revisions) issued while
// running takes effect at the next subtask boundary.
func (r *Runner) run(ctx context.Context, sessionID string, mode Mode) {
	logger := r.logger.With("session_id", sessionID)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		logger.Info("Run cancelled while waiting for a slot")
		r.finalize(sessionID)
		return
	}
	defer r.sem.Release(1)

	memory := &executor.ReviewerMemory{}
	for {
		sess, err := r.store.GetSession(ctx, sessionID)
		if err != nil {
			r.fail(sessionID, fmt.Errorf("failed to reload session: %w", err))
			return
		}
		pl, err := r.store.GetPlan(ctx, sessionID)
		if err != nil {
			r.fail(sessionID, fmt.Errorf("failed to reload plan: %w", err))
			return
		}
		state, err := r.store.GetOrchestratorState(ctx, sessionID)
		if err != nil {
			r.fail(sessionID, fmt.Errorf("failed to reload state: %w", err))
			return
		}

		// Honor user steering: a current_subtask_id pointing at a pending
		// subtask takes priority over plan order.
		next := pl.NextPending()
		if state.CurrentSubtaskID != "" {
			if st := pl.Subtask(state.CurrentSubtaskID); st != nil && st.Status == models.SubtaskPending {
				next = st
			}
		}
		if next == nil {
			r.finalize(sessionID)
			return
		}

		outcome, err := r.executor.ExecuteSubtask(ctx, sess, pl, state, next.ID, memory)
		switch {
		case errors.Is(err, context.Canceled):
			logger.Info("Run cancelled", "subtask_id", next.ID)
			r.finalize(sessionID)
			return
		case err != nil:
			r.fail(sessionID, err)
			return
		}

		if mode == RunNext && outcome == executor.OutcomeAccepted {
			r.finalize(sessionID)
			return
		}
		// A redo loops back to the same subtask; the budget guarantees the
		// loop terminates.
		logger.Debug("Subtask turn finished", "subtask_id", next.ID, "outcome", outcome)
	}
}

// finalize persists the terminal status for a run: completed when every
// subtask is settled, idle otherwise.
func (r *Runner) finalize(sessionID string) {
	// Run on a fresh context: the run context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pl, err := r.store.GetPlan(ctx, sessionID)
	if err != nil {
		r.logger.Error("Failed to load plan during finalize", "session_id", sessionID, "error", err)
		return
	}
	state, err := r.store.GetOrchestratorState(ctx, sessionID)
	if err != nil {
		r.logger.Error("Failed to load state during finalize", "session_id", sessionID, "error", err)
		return
	}
	if pl.AllSettled() {
		state.Status = models.OrchestratorCompleted
	} else {
		state.Status = models.OrchestratorIdle
	}
	state.CurrentSubtaskID = ""
	// A skip request the executor never consumed (the subtask settled before
	// the cancel landed) must not leak into a later run.
	state.Extra.SkipRequest = nil
	if err := r.store.SaveOrchestratorState(ctx, state); err != nil {
		r.logger.Error("Failed to persist final status", "session_id", sessionID, "error", err)
	}
	r.logger.Info("Run finished", "session_id", sessionID, "status", state.Status)
}

// fail persists status=error and journals an error envelope so the failure
// is visible to the next command attempt.
func (r *Runner) fail(sessionID string, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.logger.Error("Run failed", "session_id", sessionID, "error", runErr)

	state, err := r.store.GetOrchestratorState(ctx, sessionID)
	if err != nil {
		r.logger.Error("Failed to load state after run failure", "session_id", sessionID, "error", err)
		return
	}
	state.Status = models.OrchestratorError
	state.CurrentSubtaskID = ""
	state.Extra.LastError = runErr.Error()
	if err := r.store.SaveOrchestratorState(ctx, state); err != nil {
		r.logger.Error("Failed to persist error status", "session_id", sessionID, "error", err)
	}

	payload, _ := json.Marshal(map[string]string{"error": runErr.Error()})
	env := &models.Envelope{
		SessionID:   sessionID,
		TS:          models.FormatUTC(time.Now()),
		Source:      "orchestrator",
		Target:      "user",
		PayloadType: models.PayloadError,
		Payload:     payload,
	}
	if _, err := r.env.Append(env); err != nil {
		r.logger.Error("Failed to journal error envelope", "session_id", sessionID, "error", err)
	}
}

// Shutdown waits for active runs to finish, cancelling them when the grace
// period elapses.
func (r *Runner) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("All runs finished")
	case <-time.After(timeout):
		r.logger.Warn("Shutdown grace period elapsed, cancelling active runs",
			"active", r.ActiveCount())
		r.baseCancel()
		<-done
	}
	r.baseCancel()
}
