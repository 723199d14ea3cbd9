// Package orchestrator composes the session store, agents, executor and
// background runner behind the single command dispatcher shared by the HTTP
// API and the CLI. It holds no per-session state across requests beyond the
// runner's active-run registry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-ai/maestro/pkg/agent"
	"github.com/maestro-ai/maestro/pkg/artifacts"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/progress"
	"github.com/maestro-ai/maestro/pkg/runner"
	"github.com/maestro-ai/maestro/pkg/store"
)

// ErrPlanNotConfirmed is returned when next/all is issued before
// confirm_plan.
var ErrPlanNotConfirmed = errors.New("plan is not confirmed")

// Orchestrator owns the per-session lifecycle and the plan-lock invariant:
// plan_locked is true exactly when session_mode is execution.
type Orchestrator struct {
	store     store.Store
	planner   *agent.Planner
	runner    *runner.Runner
	emitter   *progress.Emitter
	artifacts *artifacts.Store
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an orchestrator.
func New(st store.Store, planner *agent.Planner, run *runner.Runner, emitter *progress.Emitter, art *artifacts.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     st,
		planner:   planner,
		runner:    run,
		emitter:   emitter,
		artifacts: art,
		logger:    logger.With("component", "orchestrator"),
		now:       time.Now,
	}
}

// RecoverOrphans flips sessions left running by a previous process to error
// so their next command gets a clear diagnostic. Called once at startup.
func (o *Orchestrator) RecoverOrphans(ctx context.Context) error {
	n, err := o.store.MarkRunningSessionsError(ctx,
		"run interrupted by process restart; issue next or all to resume")
	if err != nil {
		return fmt.Errorf("orphan recovery failed: %w", err)
	}
	if n > 0 {
		o.logger.Warn("Recovered orphaned sessions", "count", n)
	}
	return nil
}

// CreateSession creates a session in planning mode with an empty plan.
func (o *Orchestrator) CreateSession(ctx context.Context, owner, topic string, novel *models.NovelProfile) (*models.Snapshot, error) {
	if topic == "" {
		return nil, store.NewValidationError("topic", "required")
	}
	now := o.now().UTC()
	sess := &models.Session{
		ID:          models.NewSessionID(now),
		Topic:       topic,
		Mode:        models.ModePlanning,
		Owner:       owner,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if novel != nil {
		sess.Extra = map[string]any{
			models.ExtraNovelMode:    true,
			models.ExtraNovelProfile: novel,
		}
	}
	pl := &models.Plan{PlanID: "p-" + uuid.NewString()[:8], Title: topic}
	state := models.NewOrchestratorState(sess.ID)

	if err := o.store.CreateSession(ctx, sess, pl, state); err != nil {
		return nil, err
	}
	o.logger.Info("Session created",
		"session_id", sess.ID, "owner", owner, "novel_mode", sess.NovelMode())
	return o.store.Snapshot(ctx, sess.ID)
}

// loadOwned returns the session if it exists and belongs to owner. Ownership
// failures are indistinguishable from missing sessions.
func (o *Orchestrator) loadOwned(ctx context.Context, owner, sessionID string) (*models.Session, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Owner != owner {
		return nil, store.ErrNotFound
	}
	return sess, nil
}

// ListSessions returns the owner's sessions.
func (o *Orchestrator) ListSessions(ctx context.Context, owner string) ([]models.SessionSummary, error) {
	return o.store.ListSessions(ctx, owner)
}

// Snapshot returns the assembled read model for an owned session.
func (o *Orchestrator) Snapshot(ctx context.Context, owner, sessionID string) (*models.Snapshot, error) {
	if _, err := o.loadOwned(ctx, owner, sessionID); err != nil {
		return nil, err
	}
	return o.store.Snapshot(ctx, sessionID)
}

// Events returns the polling page: progress events strictly after since,
// all worker outputs, and the liveness flag.
func (o *Orchestrator) Events(ctx context.Context, owner, sessionID string, since time.Time) (*models.EventsPage, error) {
	if _, err := o.loadOwned(ctx, owner, sessionID); err != nil {
		return nil, err
	}
	events, err := o.store.EventsSince(ctx, sessionID, since)
	if err != nil {
		return nil, err
	}
	outputs, err := o.store.WorkerOutputs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := o.store.GetOrchestratorState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lastTS, err := o.store.LastEventTS(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.EventsPage{
		ProgressEvents:      events,
		WorkerOutputs:       outputs,
		IsRunning:           state.Status == models.OrchestratorRunning,
		LastProgressEventTS: lastTS,
	}, nil
}

// Shutdown stops background execution, waiting up to timeout for active
// runs.
func (o *Orchestrator) Shutdown(timeout time.Duration) {
	o.runner.Shutdown(timeout)
}
