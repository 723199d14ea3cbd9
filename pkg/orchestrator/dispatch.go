package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/plan"
	"github.com/maestro-ai/maestro/pkg/runner"
	"github.com/maestro-ai/maestro/pkg/store"
)

// Execute is the single command dispatcher shared by the HTTP API and the
// CLI. Every invocation reloads state from the store, operates, persists,
// and returns a freshly assembled snapshot.
func (o *Orchestrator) Execute(ctx context.Context, owner, sessionID string, cmd models.Command) (*models.Result, error) {
	sess, err := o.loadOwned(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	var message string
	switch cmd.Type {
	case models.CommandPlan:
		message = "current plan"

	case models.CommandAsk:
		message, err = o.ask(ctx, sess, cmd.Text)

	case models.CommandConfirmPlan:
		message, err = o.confirmPlan(ctx, sess)

	case models.CommandNext, models.CommandAll:
		message, err = o.startRun(ctx, sess, cmd.Type)

	case models.CommandAppendSubtask, models.CommandInsertSubtask,
		models.CommandUpdateSubtask, models.CommandSkipSubtask:
		message, err = o.editPlan(ctx, sess, cmd)

	case models.CommandSetCurrentSubtask:
		message, err = o.setCurrent(ctx, sess, cmd.SubtaskID)

	case models.CommandApplyReviewerRevision:
		message, err = o.applyRevision(ctx, sess, cmd.SubtaskID)

	case models.CommandDeleteSession:
		if err = o.deleteSession(ctx, sess); err == nil {
			return &models.Result{OK: true, Message: "session deleted", Mode: sess.Mode}, nil
		}

	default:
		err = store.NewValidationError("command", fmt.Sprintf("unknown command: %q", cmd.Type))
	}
	if err != nil {
		return o.failure(ctx, sess, err), err
	}

	snap, err := o.store.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.Result{OK: true, Message: message, Mode: snap.Session.Mode, Snapshot: snap}, nil
}

// failure assembles the error result for a command that was refused after
// the session loaded: ok=false with a human-readable reason, carrying the
// current snapshot so callers always see state alongside the refusal.
func (o *Orchestrator) failure(ctx context.Context, sess *models.Session, cmdErr error) *models.Result {
	res := &models.Result{OK: false, Message: cmdErr.Error(), Mode: sess.Mode}
	if snap, err := o.store.Snapshot(ctx, sess.ID); err == nil {
		res.Snapshot = snap
		res.Mode = snap.Session.Mode
	}
	return res
}

// ask routes the free-form text command: planner conversation while
// planning, intent classification while executing.
func (o *Orchestrator) ask(ctx context.Context, sess *models.Session, text string) (string, error) {
	if sess.Mode == models.ModePlanning {
		return o.planningAsk(ctx, sess, text)
	}
	return o.executionAsk(ctx, sess, text)
}

// planningAsk appends the user turn to the planner chat, invokes the
// Planner, and adopts a proposed plan when one is produced.
func (o *Orchestrator) planningAsk(ctx context.Context, sess *models.Session, text string) (string, error) {
	history, err := o.store.ChatHistory(ctx, sess.ID, models.HistoryPlanner)
	if err != nil {
		return "", err
	}
	if err := o.appendChat(ctx, sess.ID, models.HistoryPlanner, models.ChatUser, text); err != nil {
		return "", err
	}

	pl, reply, err := o.planner.Propose(ctx, sess, history, text)
	if err != nil {
		return "", err
	}
	if err := o.appendChat(ctx, sess.ID, models.HistoryPlanner, models.ChatPlanner, reply); err != nil {
		return "", err
	}

	if pl != nil {
		if err := o.store.SavePlan(ctx, sess.ID, pl); err != nil {
			return "", err
		}
		if err := o.emitter.EmitPlan(ctx, sess.ID, pl); err != nil {
			return "", err
		}
		return fmt.Sprintf("plan updated: %d subtasks", len(pl.Subtasks)), nil
	}
	return reply, nil
}

// confirmPlan locks the plan and moves the session to execution mode. The
// invariant plan_locked ⇔ execution mode is established here and never
// broken afterwards. A session whose plan is still empty gets a default plan
// proposed from its topic before locking, so create-then-confirm works
// without a planning conversation. Confirming an already-confirmed session
// is a no-op.
func (o *Orchestrator) confirmPlan(ctx context.Context, sess *models.Session) (string, error) {
	if sess.Mode == models.ModeExecution {
		return "plan already confirmed", nil
	}
	pl, err := o.store.GetPlan(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	if len(pl.Subtasks) == 0 {
		seeded, reply, err := o.planner.Propose(ctx, sess, nil, sess.Topic)
		if err != nil {
			return "", err
		}
		if seeded == nil {
			return "", store.NewValidationError("plan", "cannot confirm an empty plan")
		}
		if err := o.appendChat(ctx, sess.ID, models.HistoryPlanner, models.ChatPlanner, reply); err != nil {
			return "", err
		}
		if err := o.store.SavePlan(ctx, sess.ID, seeded); err != nil {
			return "", err
		}
		if err := o.emitter.EmitPlan(ctx, sess.ID, seeded); err != nil {
			return "", err
		}
		o.logger.Info("Seeded default plan on confirm", "session_id", sess.ID, "subtasks", len(seeded.Subtasks))
		pl = seeded
	}

	sess.Mode = models.ModeExecution
	sess.PlanLocked = true
	sess.LastUpdated = o.now().UTC()
	if err := o.store.SaveSession(ctx, sess); err != nil {
		return "", err
	}
	o.logger.Info("Plan confirmed", "session_id", sess.ID, "subtasks", len(pl.Subtasks))
	return "plan confirmed, session is in execution mode", nil
}

// startRun delegates next/all to the background runner.
func (o *Orchestrator) startRun(ctx context.Context, sess *models.Session, cmdType models.CommandType) (string, error) {
	if sess.Mode != models.ModeExecution {
		return "", ErrPlanNotConfirmed
	}
	mode := runner.RunNext
	if cmdType == models.CommandAll {
		mode = runner.RunAll
	}
	err := o.runner.Start(ctx, sess.ID, mode)
	switch {
	case errors.Is(err, runner.ErrNoPendingSubtasks):
		return "no pending subtasks remain", nil
	case err != nil:
		return "", err
	}
	return "execution started", nil
}

// editPlan applies a structural plan mutation under the lock rules and
// journals the resulting plan snapshot as a progress event.
func (o *Orchestrator) editPlan(ctx context.Context, sess *models.Session, cmd models.Command) (string, error) {
	pl, err := o.store.GetPlan(ctx, sess.ID)
	if err != nil {
		return "", err
	}

	var message string
	switch cmd.Type {
	case models.CommandAppendSubtask:
		st, err := plan.Append(pl, sess.PlanLocked, cmd.Title, cmd.Notes)
		if err != nil {
			return "", err
		}
		message = fmt.Sprintf("appended subtask %s", st.ID)
	case models.CommandInsertSubtask:
		st, err := plan.Insert(pl, sess.PlanLocked, cmd.AfterID, cmd.Title, cmd.Notes)
		if err != nil {
			return "", err
		}
		message = fmt.Sprintf("inserted subtask %s after %s", st.ID, cmd.AfterID)
	case models.CommandUpdateSubtask:
		if err := plan.Update(pl, sess.PlanLocked, cmd.SubtaskID, cmd.TitleSet, cmd.NotesSet); err != nil {
			return "", err
		}
		message = fmt.Sprintf("updated subtask %s", cmd.SubtaskID)
	case models.CommandSkipSubtask:
		if sess.PlanLocked {
			return o.skipLocked(ctx, sess, cmd)
		}
		if err := plan.Skip(pl, sess.PlanLocked, cmd.SubtaskID, cmd.Reason); err != nil {
			return "", err
		}
		message = fmt.Sprintf("skipped subtask %s", cmd.SubtaskID)
	}

	if err := o.store.SavePlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	if err := o.emitter.EmitPlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	return message, nil
}

// skipLocked handles skip_subtask under the plan lock. The only permitted
// target is the subtask currently being executed: the run is cancelled
// cooperatively and the executor finalizes the subtask as skipped at its
// cancellation checkpoint.
func (o *Orchestrator) skipLocked(ctx context.Context, sess *models.Session, cmd models.Command) (string, error) {
	state, err := o.store.GetOrchestratorState(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	if state.Status != models.OrchestratorRunning || state.CurrentSubtaskID != cmd.SubtaskID {
		return "", store.NewValidationError("subtask_id",
			"skip_subtask on a locked plan is only allowed for the subtask currently being executed")
	}
	state.Extra.SkipRequest = &models.SkipRequest{SubtaskID: cmd.SubtaskID, Reason: cmd.Reason}
	if err := o.store.SaveOrchestratorState(ctx, state); err != nil {
		return "", err
	}
	o.runner.CancelSession(sess.ID)
	o.logger.Info("Requested skip of running subtask", "session_id", sess.ID, "subtask_id", cmd.SubtaskID)
	return fmt.Sprintf("cancelling %s; it will be finalized as skipped", cmd.SubtaskID), nil
}

// setCurrent redirects execution. Allowed even when locked.
func (o *Orchestrator) setCurrent(ctx context.Context, sess *models.Session, subtaskID string) (string, error) {
	pl, err := o.store.GetPlan(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	if err := plan.SetCurrent(pl, subtaskID); err != nil {
		return "", err
	}
	state, err := o.store.GetOrchestratorState(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	state.CurrentSubtaskID = subtaskID

	if err := o.store.SavePlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	if err := o.store.SaveOrchestratorState(ctx, state); err != nil {
		return "", err
	}
	if err := o.emitter.EmitPlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	return fmt.Sprintf("current subtask set to %s", subtaskID), nil
}

// applyRevision promotes a stored reviewer revision: the subtask is reset to
// pending and its latest worker output is overwritten with the revised
// draft. Rejected in planning mode, allowed even when locked.
func (o *Orchestrator) applyRevision(ctx context.Context, sess *models.Session, subtaskID string) (string, error) {
	if sess.Mode != models.ModeExecution {
		return "", ErrPlanNotConfirmed
	}
	state, err := o.store.GetOrchestratorState(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	revised, ok := state.Revision(subtaskID)
	if !ok {
		return "", store.NewValidationError("subtask_id",
			fmt.Sprintf("no stored reviewer revision for %q", subtaskID))
	}
	pl, err := o.store.GetPlan(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	if err := plan.ResetForRevision(pl, subtaskID); err != nil {
		return "", err
	}
	if err := o.store.ReplaceLatestWorkerOutput(ctx, sess.ID, subtaskID, revised); err != nil {
		return "", err
	}
	if err := o.store.SavePlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	if err := o.emitter.EmitPlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	return fmt.Sprintf("applied reviewer revision to %s", subtaskID), nil
}

// deleteSession cancels any active run and tombstones the session. The
// artifact directory is removed with it.
func (o *Orchestrator) deleteSession(ctx context.Context, sess *models.Session) error {
	if o.runner.CancelSession(sess.ID) {
		o.logger.Info("Cancelled active run for deleted session", "session_id", sess.ID)
	}
	if err := o.store.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	if err := o.artifacts.DeleteSession(sess.ID); err != nil {
		o.logger.Warn("Failed to remove artifact directory", "session_id", sess.ID, "error", err)
	}
	o.logger.Info("Session deleted", "session_id", sess.ID)
	return nil
}

func (o *Orchestrator) appendChat(ctx context.Context, sessionID string, history models.ChatHistory, role models.ChatRole, content string) error {
	return o.store.AppendChat(ctx, sessionID, history, models.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: o.now().UTC(),
	})
}
