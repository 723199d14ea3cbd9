// Package progress emits append-only progress events. An event is persisted
// before the state transition it describes is acknowledged, so pollers never
// observe a transition without its event.
package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/store"
)

// Emitter appends progress events for a session.
type Emitter struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEmitter creates an emitter backed by the given store.
func NewEmitter(st store.Store, logger *slog.Logger) *Emitter {
	return &Emitter{
		store:  st,
		logger: logger.With("component", "progress"),
		now:    time.Now,
	}
}

// Emit persists one (agent, subtask, stage, status) event.
func (e *Emitter) Emit(ctx context.Context, sessionID string, agent models.AgentRole, subtaskID string, stage models.Stage, status string) error {
	ev := &models.ProgressEvent{
		TS:        e.now().UTC(),
		Agent:     agent,
		SubtaskID: subtaskID,
		Stage:     stage,
		Status:    status,
	}
	if err := e.store.AppendEvent(ctx, sessionID, ev); err != nil {
		e.logger.Error("Failed to persist progress event",
			"session_id", sessionID, "agent", agent, "subtask_id", subtaskID,
			"stage", stage, "error", err)
		return err
	}
	return nil
}

// EmitPlan persists a plan-edit event carrying the full plan snapshot, the
// payload the snapshot assembler uses to override the stored plan.
func (e *Emitter) EmitPlan(ctx context.Context, sessionID string, p *models.Plan) error {
	ev := &models.ProgressEvent{
		TS:      e.now().UTC(),
		Agent:   models.RoleOrchestrator,
		Stage:   models.StageFinish,
		Status:  "plan_updated",
		Payload: models.PlanPayload(p),
	}
	if err := e.store.AppendEvent(ctx, sessionID, ev); err != nil {
		e.logger.Error("Failed to persist plan event", "session_id", sessionID, "error", err)
		return err
	}
	return nil
}
