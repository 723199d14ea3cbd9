package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/maestro-ai/maestro/pkg/models"
)

// Intent classifies an execution-phase free-form message.
type Intent string

// Intents.
const (
	IntentRedo     Intent = "redo"
	IntentPlanEdit Intent = "plan_edit"
	IntentStatus   Intent = "status"
	IntentChat     Intent = "chat"
)

var subtaskIDPattern = regexp.MustCompile(`\bt\d+\b`)

// ClassifyIntent applies the keyword heuristics. Order matters: redo beats
// plan edit beats status; anything else is chat.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "redo", "do again", "rewrite", "try again"):
		return IntentRedo
	case containsAny(lower, "add a step", "add subtask", "append", "insert", "remove step", "skip step", "change the plan", "edit the plan"):
		return IntentPlanEdit
	case containsAny(lower, "status", "progress", "how far", "where are we", "what's done", "whats done"):
		return IntentStatus
	default:
		return IntentChat
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// executionAsk appends the message to the orchestrator history, classifies
// it and routes or answers. The reply is also recorded.
func (o *Orchestrator) executionAsk(ctx context.Context, sess *models.Session, text string) (string, error) {
	if err := o.appendChat(ctx, sess.ID, models.HistoryOrchestrator, models.ChatUser, text); err != nil {
		return "", err
	}

	var (
		reply string
		err   error
	)
	switch ClassifyIntent(text) {
	case IntentRedo:
		reply, err = o.routeRedo(ctx, sess, text)
	case IntentPlanEdit:
		reply = "the plan is locked; while executing you can steer with set_current_subtask or adopt a stored revision with apply_reviewer_revision"
	case IntentStatus:
		reply, err = o.statusReply(ctx, sess)
	default:
		reply, err = o.chatReply(ctx, sess, text)
	}
	if err != nil {
		return "", err
	}

	if err := o.appendChat(ctx, sess.ID, models.HistoryOrchestrator, models.ChatOrchestrator, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// routeRedo resets the referenced subtask to pending so the next run redoes
// it. Without an explicit id the most recently done subtask is targeted.
func (o *Orchestrator) routeRedo(ctx context.Context, sess *models.Session, text string) (string, error) {
	pl, err := o.store.GetPlan(ctx, sess.ID)
	if err != nil {
		return "", err
	}

	id := subtaskIDPattern.FindString(strings.ToLower(text))
	var target *models.Subtask
	if id != "" {
		target = pl.Subtask(id)
		if target == nil {
			return fmt.Sprintf("no subtask %q in the plan", id), nil
		}
	} else {
		for _, st := range pl.Subtasks {
			if st.Status == models.SubtaskDone {
				target = st
			}
		}
		if target == nil {
			return "nothing has been completed yet, so there is nothing to redo", nil
		}
	}
	if target.Status == models.SubtaskInProgress {
		return fmt.Sprintf("%s is currently in progress; wait for it to settle first", target.ID), nil
	}

	target.Status = models.SubtaskPending
	target.NeedsRedo = true
	target.RedoCount = 0
	target.LastDecision = "redo: requested by user"
	if err := o.store.SavePlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	if err := o.emitter.EmitPlan(ctx, sess.ID, pl); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is queued for redo; issue next or all to run it", target.ID), nil
}

// statusReply renders a natural-language progress summary from the snapshot.
func (o *Orchestrator) statusReply(ctx context.Context, sess *models.Session) (string, error) {
	snap, err := o.store.Snapshot(ctx, sess.ID)
	if err != nil {
		return "", err
	}

	total := len(snap.Plan.Subtasks)
	done := snap.Plan.DoneCount()
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d subtasks done", done, total)

	if last := lastDone(snap.Plan); last != nil {
		fmt.Fprintf(&b, "; last completed was %s (%s)", last.ID, last.Title)
		if note := strings.TrimPrefix(last.LastDecision, "accept: "); note != "" {
			fmt.Fprintf(&b, ", reviewer note: %s", note)
		}
	}
	if n := len(snap.WorkerOutputs); n > 0 {
		fmt.Fprintf(&b, "; latest output: %s", snap.WorkerOutputs[n-1].Preview)
	}

	switch snap.State.Status {
	case models.OrchestratorRunning:
		if cur := snap.Plan.Subtask(snap.State.CurrentSubtaskID); cur != nil {
			fmt.Fprintf(&b, "; currently working on %s (%s)", cur.ID, cur.Title)
		} else {
			b.WriteString("; a run is in progress")
		}
	case models.OrchestratorCompleted:
		b.WriteString("; the plan is complete")
	case models.OrchestratorError:
		fmt.Fprintf(&b, "; the last run failed: %s", snap.State.Extra.LastError)
	default:
		if next := snap.Plan.NextPending(); next != nil {
			fmt.Fprintf(&b, "; next up is %s (%s)", next.ID, next.Title)
		}
	}
	return b.String(), nil
}

// lastDone returns the last done subtask in plan order, or nil.
func lastDone(p *models.Plan) *models.Subtask {
	var last *models.Subtask
	for _, st := range p.Subtasks {
		if st.Status == models.SubtaskDone {
			last = st
		}
	}
	return last
}

// chatReply answers a free-form execution-phase message through the planner
// persona, seeded with the orchestrator conversation.
func (o *Orchestrator) chatReply(ctx context.Context, sess *models.Session, text string) (string, error) {
	history, err := o.store.ChatHistory(ctx, sess.ID, models.HistoryOrchestrator)
	if err != nil {
		return "", err
	}
	// The just-appended user turn is the request itself; don't double it.
	if n := len(history); n > 0 && history[n-1].Content == text {
		history = history[:n-1]
	}
	return o.planner.Ask(ctx, sess, history, text)
}
