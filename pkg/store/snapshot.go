package store

import (
	"time"

	"github.com/maestro-ai/maestro/pkg/models"
)

// assembleSnapshot merges the persisted parts into the read model. Shared by
// both backends so the merge rules cannot drift.
//
// Merge rules:
//   - the most recent plan snapshot embedded in a plan-edit progress event
//     overrides the stored plan (lets the UI reconstruct the timeline even
//     if a mutation raced with a poll);
//   - a subtask with a (worker, start) event and no matching finish event is
//     surfaced as in_progress regardless of the stored status.
func assembleSnapshot(
	sess *models.Session,
	plan *models.Plan,
	state *models.OrchestratorState,
	events []models.ProgressEvent,
	outputs []models.WorkerOutput,
	plannerChat, orchMessages, coordDecisions []models.ChatMessage,
) *models.Snapshot {
	merged := plan.Clone()

	var lastTS *time.Time
	openStarts := make(map[string]bool) // subtask id -> unfinished start seen
	for i := range events {
		ev := &events[i]
		if p := models.PlanFromPayload(ev.Payload); p != nil {
			merged = p.Clone()
		}
		if ev.SubtaskID != "" {
			switch ev.Stage {
			case models.StageStart:
				openStarts[ev.SubtaskID] = true
			case models.StageFinish:
				// A worker finish that hands the draft to the reviewer keeps
				// the subtask open; a reviewer finish, or a worker finish
				// that settled the attempt itself (timeout, skip), closes it.
				if ev.Agent != models.RoleWorker || ev.Status != "completed" {
					delete(openStarts, ev.SubtaskID)
				}
			}
		}
		ts := ev.TS
		lastTS = &ts
	}

	if merged != nil {
		for id := range openStarts {
			if st := merged.Subtask(id); st != nil && st.Status == models.SubtaskInProgress {
				// Already in_progress in the materialized plan; nothing to fix.
				continue
			} else if st != nil && st.Status == models.SubtaskPending {
				st.Status = models.SubtaskInProgress
			}
		}
	}

	return &models.Snapshot{
		Session:              sess,
		Plan:                 merged,
		State:                state.Clone(),
		PlannerChat:          plannerChat,
		OrchestratorMessages: orchMessages,
		CoordDecisions:       coordDecisions,
		WorkerOutputs:        outputs,
		LastEventTS:          lastTS,
	}
}
