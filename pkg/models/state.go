package models

import "fmt"

// OrchestratorStatus is the runtime status shadow of a session. It doubles
// as the session-local execution mutex: next/all are refused while running.
type OrchestratorStatus string

// Orchestrator statuses.
const (
	OrchestratorIdle      OrchestratorStatus = "idle"
	OrchestratorRunning   OrchestratorStatus = "running"
	OrchestratorCompleted OrchestratorStatus = "completed"
	OrchestratorError     OrchestratorStatus = "error"
)

// OrchestratorStatusValidator validates an orchestrator status value.
func OrchestratorStatusValidator(s OrchestratorStatus) error {
	switch s {
	case OrchestratorIdle, OrchestratorRunning, OrchestratorCompleted, OrchestratorError:
		return nil
	default:
		return fmt.Errorf("invalid orchestrator status: %q", s)
	}
}

// SkipRequest records a user skip of the subtask currently being executed.
// The executor consumes it at its cancellation checkpoint and finalizes the
// subtask as skipped instead of handing it back to pending.
type SkipRequest struct {
	SubtaskID string `json:"subtask_id"`
	Reason    string `json:"reason,omitempty"`
}

// StateExtra carries the novel-mode counters and reviewer side data.
type StateExtra struct {
	NovelSummaryT1T4   string            `json:"novel_summary_t1_t4,omitempty"`
	ReviewerBatchCount int               `json:"reviewer_batch_count,omitempty"`
	ReviewerRevisions  map[string]string `json:"reviewer_revisions,omitempty"`
	LastError          string            `json:"last_error,omitempty"`
	SkipRequest        *SkipRequest      `json:"skip_request,omitempty"`
}

// OrchestratorState is the persisted runtime state of a session.
type OrchestratorState struct {
	SessionID        string             `json:"session_id"`
	Status           OrchestratorStatus `json:"status"`
	CurrentSubtaskID string             `json:"current_subtask_id,omitempty"`
	Extra            StateExtra         `json:"extra"`
}

// NewOrchestratorState returns the idle state for a new session.
func NewOrchestratorState(sessionID string) *OrchestratorState {
	return &OrchestratorState{SessionID: sessionID, Status: OrchestratorIdle}
}

// SetRevision stores a reviewer-produced revised draft for a subtask. The
// worker's original output is never overwritten here; promotion happens only
// through the apply_reviewer_revision command.
func (s *OrchestratorState) SetRevision(subtaskID, text string) {
	if s.Extra.ReviewerRevisions == nil {
		s.Extra.ReviewerRevisions = make(map[string]string)
	}
	s.Extra.ReviewerRevisions[subtaskID] = text
}

// Revision returns the stored reviewer revision for a subtask, if any.
func (s *OrchestratorState) Revision(subtaskID string) (string, bool) {
	text, ok := s.Extra.ReviewerRevisions[subtaskID]
	return text, ok
}

// Clone returns a deep copy of the state.
func (s *OrchestratorState) Clone() *OrchestratorState {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Extra.ReviewerRevisions != nil {
		cp.Extra.ReviewerRevisions = make(map[string]string, len(s.Extra.ReviewerRevisions))
		for k, v := range s.Extra.ReviewerRevisions {
			cp.Extra.ReviewerRevisions[k] = v
		}
	}
	if s.Extra.SkipRequest != nil {
		req := *s.Extra.SkipRequest
		cp.Extra.SkipRequest = &req
	}
	return &cp
}
