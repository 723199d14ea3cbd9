// Package plan implements the plan mutation operations and the plan-lock
// whitelist. All operations mutate the plan in place; persistence is the
// caller's job.
package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/store"
)

// errLocked is the uniform rejection for structural edits on a locked plan.
func errLocked(op string) error {
	return store.NewValidationError("plan", fmt.Sprintf("%s is not allowed on a locked plan", op))
}

// NextID returns the next stable subtask id. Ids are never reused, so the
// numeric suffix grows past deletions and skips.
func NextID(p *models.Plan) string {
	max := 0
	for _, st := range p.Subtasks {
		if n, err := strconv.Atoi(strings.TrimPrefix(st.ID, "t")); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("t%d", max+1)
}

// Append adds a subtask at the end of the plan. Rejected when locked.
func Append(p *models.Plan, locked bool, title, notes string) (*models.Subtask, error) {
	if locked {
		return nil, errLocked("append_subtask")
	}
	if title == "" {
		return nil, store.NewValidationError("title", "required")
	}
	st := &models.Subtask{ID: NextID(p), Title: title, Notes: notes, Status: models.SubtaskPending}
	p.Subtasks = append(p.Subtasks, st)
	return st, nil
}

// Insert adds a subtask immediately after afterID. Rejected when locked.
func Insert(p *models.Plan, locked bool, afterID, title, notes string) (*models.Subtask, error) {
	if locked {
		return nil, errLocked("insert_subtask")
	}
	if title == "" {
		return nil, store.NewValidationError("title", "required")
	}
	idx := -1
	for i, st := range p.Subtasks {
		if st.ID == afterID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, store.NewValidationError("after_id", fmt.Sprintf("unknown subtask: %q", afterID))
	}
	st := &models.Subtask{ID: NextID(p), Title: title, Notes: notes, Status: models.SubtaskPending}
	p.Subtasks = append(p.Subtasks, nil)
	copy(p.Subtasks[idx+2:], p.Subtasks[idx+1:])
	p.Subtasks[idx+1] = st
	return st, nil
}

// Update patches title and/or notes. Status transitions use other
// operations. Rejected when locked.
func Update(p *models.Plan, locked bool, id string, title, notes *string) error {
	if locked {
		return errLocked("update_subtask")
	}
	st := p.Subtask(id)
	if st == nil {
		return store.NewValidationError("subtask_id", fmt.Sprintf("unknown subtask: %q", id))
	}
	if title != nil {
		if *title == "" {
			return store.NewValidationError("title", "must not be empty")
		}
		st.Title = *title
	}
	if notes != nil {
		st.Notes = *notes
	}
	return nil
}

// Skip marks a subtask skipped and records the reason in its notes.
// Rejected when locked.
func Skip(p *models.Plan, locked bool, id, reason string) error {
	if locked {
		return errLocked("skip_subtask")
	}
	st := p.Subtask(id)
	if st == nil {
		return store.NewValidationError("subtask_id", fmt.Sprintf("unknown subtask: %q", id))
	}
	if !models.ValidTransition(st.Status, models.SubtaskSkipped, false) {
		return store.NewValidationError("subtask_id",
			fmt.Sprintf("cannot skip subtask in status %q", st.Status))
	}
	st.Status = models.SubtaskSkipped
	if reason != "" {
		if st.Notes != "" {
			st.Notes += "\n"
		}
		st.Notes += "skipped: " + reason
	}
	return nil
}

// SetCurrent redirects execution to the given subtask. Allowed even when
// locked; any other in_progress subtask is reset to pending.
func SetCurrent(p *models.Plan, id string) error {
	target := p.Subtask(id)
	if target == nil {
		return store.NewValidationError("subtask_id", fmt.Sprintf("unknown subtask: %q", id))
	}
	if target.Status == models.SubtaskDone || target.Status == models.SubtaskSkipped {
		return store.NewValidationError("subtask_id",
			fmt.Sprintf("subtask %q is already %s", id, target.Status))
	}
	for _, st := range p.Subtasks {
		if st.ID != id && st.Status == models.SubtaskInProgress {
			st.Status = models.SubtaskPending
		}
	}
	return nil
}

// ResetForRevision resets a subtask to pending so a stored reviewer revision
// can replace its output. Allowed even when locked.
func ResetForRevision(p *models.Plan, id string) error {
	st := p.Subtask(id)
	if st == nil {
		return store.NewValidationError("subtask_id", fmt.Sprintf("unknown subtask: %q", id))
	}
	st.Status = models.SubtaskPending
	st.NeedsRedo = false
	return nil
}

// Summary renders the plan as the numbered step list shown to agents and
// users. Step numbers are positional, ids are stable.
func Summary(p *models.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n", p.Title)
	for i, st := range p.Subtasks {
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i+1, st.ID, st.Title, st.Status)
	}
	return b.String()
}
