// Package executor runs exactly one subtask at a time through the
// worker-then-reviewer pipeline, honoring the redo budget and the progress
// event ordering contract.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maestro-ai/maestro/pkg/agent"
	"github.com/maestro-ai/maestro/pkg/artifacts"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/plan"
	"github.com/maestro-ai/maestro/pkg/progress"
	"github.com/maestro-ai/maestro/pkg/store"
)

// Outcome classifies one ExecuteSubtask call.
type Outcome int

// Outcomes.
const (
	// OutcomeAccepted means the subtask is done (reviewer accept or
	// budget force-accept).
	OutcomeAccepted Outcome = iota

	// OutcomeRedo means the reviewer rejected and the subtask is pending
	// again; the caller decides whether to retry in the same turn.
	OutcomeRedo
)

// ReviewerMemory is the reviewer's accumulated conversation, reset on batch
// boundaries in novel mode. Owned by the runner so it spans subtasks within
// one background run.
type ReviewerMemory struct {
	turns []agent.Message
}

// Add appends a review turn pair.
func (m *ReviewerMemory) Add(turn []agent.Message) { m.turns = append(m.turns, turn...) }

// Reset drops the accumulated conversation.
func (m *ReviewerMemory) Reset() { m.turns = nil }

// Messages returns the conversation for the next review call.
func (m *ReviewerMemory) Messages() []agent.Message { return m.turns }

// Executor drives one subtask through worker and reviewer.
type Executor struct {
	store      store.Store
	emitter    *progress.Emitter
	worker     *agent.Worker
	reviewer   *agent.Reviewer
	artifacts  *artifacts.Store
	redoBudget int
	batchSize  int
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a subtask executor.
func New(st store.Store, emitter *progress.Emitter, worker *agent.Worker, reviewer *agent.Reviewer, art *artifacts.Store, redoBudget, batchSize int, logger *slog.Logger) *Executor {
	return &Executor{
		store:      st,
		emitter:    emitter,
		worker:     worker,
		reviewer:   reviewer,
		artifacts:  art,
		redoBudget: redoBudget,
		batchSize:  batchSize,
		logger:     logger.With("component", "executor"),
		now:        time.Now,
	}
}

// ExecuteSubtask runs one subtask end to end. The plan and state are mutated
// in place and persisted at every observable transition; each progress event
// is flushed before the transition it precedes.
func (x *Executor) ExecuteSubtask(ctx context.Context, sess *models.Session, pl *models.Plan, state *models.OrchestratorState, subtaskID string, memory *ReviewerMemory) (Outcome, error) {
	st := pl.Subtask(subtaskID)
	if st == nil {
		return 0, store.NewValidationError("subtask_id", fmt.Sprintf("unknown subtask: %q", subtaskID))
	}
	if !models.ValidTransition(st.Status, models.SubtaskInProgress, false) {
		return 0, store.NewValidationError("subtask_id",
			fmt.Sprintf("subtask %q is %s, not pending", subtaskID, st.Status))
	}
	logger := x.logger.With("session_id", sess.ID, "subtask_id", subtaskID)

	// Step 1: in_progress, worker start.
	st.Status = models.SubtaskInProgress
	state.CurrentSubtaskID = subtaskID
	if err := x.persist(ctx, sess.ID, pl, state); err != nil {
		return 0, err
	}
	if err := x.emitter.Emit(ctx, sess.ID, models.RoleWorker, subtaskID, models.StageStart, ""); err != nil {
		return 0, err
	}

	// Steps 2-3: build ticket, invoke worker.
	ticket := agent.Ticket{
		Topic:    fmt.Sprintf("%s\n\n%s", sess.Topic, plan.Summary(pl)),
		Subtask:  st,
		RedoNote: redoNote(st),
	}
	if sess.NovelMode() {
		ticket.NovelSummary = x.novelContext(ctx, sess.ID, pl, state, subtaskID)
	}

	draft, err := x.worker.Execute(ctx, sess.ID, ticket)
	if errors.Is(err, agent.ErrTimeout) {
		// A worker timeout consumes a redo attempt like a reviewer
		// rejection; the budget check keeps a persistently failing worker
		// from looping on the same subtask forever.
		logger.Warn("Worker timed out", "redo_count", st.RedoCount)
		st.RedoCount++
		if st.RedoCount >= x.redoBudget {
			note := fmt.Sprintf(
				"force-accepted: redo budget exhausted after %d attempts; last failure: worker timeout",
				st.RedoCount)
			logger.Info("Redo budget exhausted, force-accepting", "redo_count", st.RedoCount)
			return x.accept(ctx, sess, pl, state, st, models.RoleWorker, note)
		}
		return x.redo(ctx, sess.ID, pl, state, st, models.RoleWorker, "timeout", "worker timeout")
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return x.cancelled(sess.ID, pl, state, st, logger, err)
		}
		return 0, fmt.Errorf("worker failed on %s: %w", subtaskID, err)
	}

	output := models.WorkerOutput{
		SubtaskID: subtaskID,
		Timestamp: x.now().UTC(),
		Preview:   models.MakePreview(draft),
		Content:   draft,
	}
	if ref, err := x.artifacts.Put(sess.ID, subtaskID, []byte(draft), "text/markdown"); err != nil {
		logger.Warn("Failed to store artifact", "error", err)
	} else {
		output.Artifact = ref
	}
	if err := x.store.AppendWorkerOutput(ctx, sess.ID, output); err != nil {
		return 0, err
	}

	// Step 4: worker finish must be durable before the reviewer starts, so
	// a crash here is observable as "worker finished, reviewer pending".
	if err := x.emitter.Emit(ctx, sess.ID, models.RoleWorker, subtaskID, models.StageFinish, "completed"); err != nil {
		return 0, err
	}

	// Cooperative cancel point, checked before the reviewer phase starts.
	if ctx.Err() != nil {
		return x.cancelled(sess.ID, pl, state, st, logger, ctx.Err())
	}

	// Steps 5-6: reviewer.
	if err := x.emitter.Emit(ctx, sess.ID, models.RoleReviewer, subtaskID, models.StageStart, ""); err != nil {
		return 0, err
	}
	verdict, turn, err := x.reviewer.Review(ctx, sess.ID, st, draft, memory.Messages())
	if errors.Is(err, agent.ErrTimeout) {
		// A reviewer timeout must not block progress: force-accept.
		logger.Warn("Reviewer timed out, force-accepting")
		verdict = agent.Verdict{Accept: true, Note: "force-accepted: reviewer timeout"}
		turn = nil
		err = nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return x.cancelled(sess.ID, pl, state, st, logger, err)
		}
		return 0, fmt.Errorf("reviewer failed on %s: %w", subtaskID, err)
	}
	memory.Add(turn)

	// Step 9: batch counter and stored revision.
	state.Extra.ReviewerBatchCount++
	if sess.NovelMode() && state.Extra.ReviewerBatchCount%x.batchSize == 0 {
		logger.Info("Resetting reviewer memory", "batch_count", state.Extra.ReviewerBatchCount)
		memory.Reset()
	}
	if verdict.RevisedText != "" {
		state.SetRevision(subtaskID, verdict.RevisedText)
	}

	if verdict.Accept {
		return x.accept(ctx, sess, pl, state, st, models.RoleReviewer, verdict.Note)
	}

	// Step 8: redo path with budget.
	st.RedoCount++
	if st.RedoCount >= x.redoBudget {
		note := fmt.Sprintf("force-accepted: redo budget exhausted after %d attempts", st.RedoCount)
		if verdict.Note != "" {
			note += "; last reviewer note: " + verdict.Note
		}
		logger.Info("Redo budget exhausted, force-accepting", "redo_count", st.RedoCount)
		return x.accept(ctx, sess, pl, state, st, models.RoleReviewer, note)
	}
	return x.redo(ctx, sess.ID, pl, state, st, models.RoleReviewer, "in_progress", verdict.Note)
}

// accept finalizes a subtask as done. The finish event carries the role that
// settled the attempt: the reviewer normally, the worker when its own timeout
// exhausted the budget and no review ever started.
func (x *Executor) accept(ctx context.Context, sess *models.Session, pl *models.Plan, state *models.OrchestratorState, st *models.Subtask, role models.AgentRole, note string) (Outcome, error) {
	st.Status = models.SubtaskDone
	st.NeedsRedo = false
	st.LastDecision = "accept: " + note
	state.CurrentSubtaskID = ""

	if sess.NovelMode() && st.ID == "t4" && state.Extra.NovelSummaryT1T4 == "" {
		state.Extra.NovelSummaryT1T4 = x.summarizePreparation(ctx, sess.ID)
	}

	if err := x.recordDecision(ctx, sess.ID, st.ID, "ACCEPT", note); err != nil {
		return 0, err
	}
	if err := x.persist(ctx, sess.ID, pl, state); err != nil {
		return 0, err
	}
	if err := x.emitter.Emit(ctx, sess.ID, role, st.ID, models.StageFinish, "completed"); err != nil {
		return 0, err
	}
	return OutcomeAccepted, nil
}

// redo hands the subtask back to pending for another attempt. The finish
// event is attributed to whichever role settled the attempt: a reviewer
// rejection closes with (reviewer, finish), a worker timeout closes with
// (worker, finish) since no review ever started.
func (x *Executor) redo(ctx context.Context, sessionID string, pl *models.Plan, state *models.OrchestratorState, st *models.Subtask, role models.AgentRole, eventStatus, note string) (Outcome, error) {
	st.Status = models.SubtaskPending
	st.NeedsRedo = true
	st.LastDecision = "redo: " + note
	state.CurrentSubtaskID = ""

	if err := x.recordDecision(ctx, sessionID, st.ID, "REDO", note); err != nil {
		return 0, err
	}
	if err := x.persist(ctx, sessionID, pl, state); err != nil {
		return 0, err
	}
	if err := x.emitter.Emit(ctx, sessionID, role, st.ID, models.StageFinish, eventStatus); err != nil {
		return 0, err
	}
	return OutcomeRedo, nil
}

// cancelled finalizes a cooperatively cancelled attempt. A pending skip
// request for this subtask turns it into skipped; any other cancellation
// hands it back to pending with the draft retained. Persistence runs on a
// fresh context since the run context is already done.
func (x *Executor) cancelled(sessionID string, pl *models.Plan, state *models.OrchestratorState, st *models.Subtask, logger *slog.Logger, cause error) (Outcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fresh, err := x.store.GetOrchestratorState(ctx, sessionID)
	if err == nil && fresh.Extra.SkipRequest != nil && fresh.Extra.SkipRequest.SubtaskID == st.ID {
		reason := fresh.Extra.SkipRequest.Reason
		st.Status = models.SubtaskSkipped
		st.NeedsRedo = false
		st.LastDecision = "skipped: cancelled by user"
		if reason != "" {
			if st.Notes != "" {
				st.Notes += "\n"
			}
			st.Notes += "skipped: " + reason
		}
		state.Extra = fresh.Extra
		state.Extra.SkipRequest = nil
		state.CurrentSubtaskID = ""
		if err := x.recordDecision(ctx, sessionID, st.ID, "SKIP", reason); err != nil {
			logger.Warn("Failed to record skip decision", "error", err)
		}
		if err := x.persist(ctx, sessionID, pl, state); err != nil {
			logger.Warn("Failed to persist skip transition", "error", err)
		}
		if err := x.emitter.Emit(ctx, sessionID, models.RoleWorker, st.ID, models.StageFinish, "skipped"); err != nil {
			logger.Warn("Failed to emit skip event", "error", err)
		}
		logger.Info("Subtask skipped on user request")
		return 0, cause
	}

	st.Status = models.SubtaskPending
	if err := x.persist(ctx, sessionID, pl, state); err != nil {
		logger.Warn("Failed to persist cancel transition", "error", err)
	}
	return 0, cause
}

func (x *Executor) persist(ctx context.Context, sessionID string, pl *models.Plan, state *models.OrchestratorState) error {
	if err := x.store.SavePlan(ctx, sessionID, pl); err != nil {
		return err
	}
	return x.store.SaveOrchestratorState(ctx, state)
}

func (x *Executor) recordDecision(ctx context.Context, sessionID, subtaskID, verdict, note string) error {
	content := fmt.Sprintf("%s %s", verdict, subtaskID)
	if note != "" {
		content += ": " + note
	}
	return x.store.AppendChat(ctx, sessionID, models.HistoryCoord, models.ChatMessage{
		Role:      models.ChatReviewer,
		Content:   content,
		Timestamp: x.now().UTC(),
	})
}

// redoNote surfaces the previous reviewer rejection to the worker.
func redoNote(st *models.Subtask) string {
	if !st.NeedsRedo {
		return ""
	}
	return strings.TrimPrefix(st.LastDecision, "redo: ")
}

// novelContext builds the story context for a novel-mode ticket: prior
// preparation outputs for t1-t4, the stored condensed summary for t5+.
func (x *Executor) novelContext(ctx context.Context, sessionID string, pl *models.Plan, state *models.OrchestratorState, subtaskID string) string {
	if !isPreparation(subtaskID) {
		return state.Extra.NovelSummaryT1T4
	}
	outputs, err := x.store.WorkerOutputs(ctx, sessionID)
	if err != nil {
		x.logger.Warn("Failed to load prior outputs", "session_id", sessionID, "error", err)
		return ""
	}
	var parts []string
	for _, out := range outputs {
		if isPreparation(out.SubtaskID) && out.SubtaskID != subtaskID {
			parts = append(parts, out.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// summarizePreparation condenses the t1-t4 outputs into the rolling summary
// prepended to every chapter ticket.
func (x *Executor) summarizePreparation(ctx context.Context, sessionID string) string {
	outputs, err := x.store.WorkerOutputs(ctx, sessionID)
	if err != nil {
		x.logger.Warn("Failed to load preparation outputs", "session_id", sessionID, "error", err)
		return ""
	}
	latest := make(map[string]string)
	for _, out := range outputs {
		if isPreparation(out.SubtaskID) {
			latest[out.SubtaskID] = out.Preview
		}
	}
	var b strings.Builder
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		if text, ok := latest[id]; ok {
			fmt.Fprintf(&b, "[%s] %s\n", id, text)
		}
	}
	return b.String()
}

func isPreparation(subtaskID string) bool {
	switch subtaskID {
	case "t1", "t2", "t3", "t4":
		return true
	default:
		return false
	}
}
