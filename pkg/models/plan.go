package models

import "fmt"

// SubtaskStatus is the per-subtask status machine.
type SubtaskStatus string

// Subtask statuses.
const (
	SubtaskPending    SubtaskStatus = "pending"
	SubtaskInProgress SubtaskStatus = "in_progress"
	SubtaskDone       SubtaskStatus = "done"
	SubtaskSkipped    SubtaskStatus = "skipped"
)

// SubtaskStatusValidator validates a subtask status value.
func SubtaskStatusValidator(s SubtaskStatus) error {
	switch s {
	case SubtaskPending, SubtaskInProgress, SubtaskDone, SubtaskSkipped:
		return nil
	default:
		return fmt.Errorf("invalid subtask status: %q", s)
	}
}

// ValidTransition reports whether from → to is a legal status edge.
// The reset edge (any → pending) is only legal via reviewer revision or an
// explicit user reset and must be requested with viaReset=true.
func ValidTransition(from, to SubtaskStatus, viaReset bool) bool {
	if viaReset {
		return to == SubtaskPending
	}
	switch from {
	case SubtaskPending:
		return to == SubtaskInProgress || to == SubtaskSkipped
	case SubtaskInProgress:
		// done covers both reviewer accept and redo-budget force-accept;
		// pending is the reviewer-reject edge; skipped is cooperative cancel.
		return to == SubtaskDone || to == SubtaskPending || to == SubtaskSkipped
	default:
		return false
	}
}

// Subtask is one unit of work produced by the Worker and judged by the
// Reviewer. IDs are stable across plan edits.
type Subtask struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Notes        string        `json:"notes,omitempty"`
	Status       SubtaskStatus `json:"status"`
	NeedsRedo    bool          `json:"needs_redo,omitempty"`
	RedoCount    int           `json:"redo_count,omitempty"`
	LastDecision string        `json:"last_decision,omitempty"`
}

// Plan is an ordered sequence of subtasks. Order is externally observable:
// subtask N is presented to the user as step N+1.
type Plan struct {
	PlanID   string     `json:"plan_id"`
	Title    string     `json:"title"`
	Subtasks []*Subtask `json:"subtasks"`
}

// Subtask returns the subtask with the given id, or nil.
func (p *Plan) Subtask(id string) *Subtask {
	for _, st := range p.Subtasks {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// NextPending returns the first pending subtask in plan order, or nil when
// none remain. Skipped subtasks are passed over.
func (p *Plan) NextPending() *Subtask {
	for _, st := range p.Subtasks {
		if st.Status == SubtaskPending {
			return st
		}
	}
	return nil
}

// AllSettled reports whether every subtask is done or skipped.
func (p *Plan) AllSettled() bool {
	for _, st := range p.Subtasks {
		if st.Status != SubtaskDone && st.Status != SubtaskSkipped {
			return false
		}
	}
	return true
}

// DoneCount returns the number of done subtasks.
func (p *Plan) DoneCount() int {
	n := 0
	for _, st := range p.Subtasks {
		if st.Status == SubtaskDone {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the plan. Snapshot assembly and progress
// payloads must never alias the live plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := &Plan{PlanID: p.PlanID, Title: p.Title, Subtasks: make([]*Subtask, len(p.Subtasks))}
	for i, st := range p.Subtasks {
		dup := *st
		cp.Subtasks[i] = &dup
	}
	return cp
}
