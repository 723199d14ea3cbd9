package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentRole identifies which agent a progress event or chat message belongs to.
type AgentRole string

// Agent roles.
const (
	RolePlanner      AgentRole = "planner"
	RoleWorker       AgentRole = "worker"
	RoleReviewer     AgentRole = "reviewer"
	RoleOrchestrator AgentRole = "orchestrator"
)

// AgentRoleValidator validates an agent role value.
func AgentRoleValidator(r AgentRole) error {
	switch r {
	case RolePlanner, RoleWorker, RoleReviewer, RoleOrchestrator:
		return nil
	default:
		return fmt.Errorf("invalid agent role: %q", r)
	}
}

// Stage is the phase of a progress event.
type Stage string

// Progress stages.
const (
	StageStart  Stage = "start"
	StageFinish Stage = "finish"
)

// ProgressEvent is one append-only record of an agent/subtask phase
// transition. The ordered event log is the authoritative source for UI
// timeline reconstruction.
type ProgressEvent struct {
	Sequence  int64           `json:"sequence"`
	TS        time.Time       `json:"ts"`
	Agent     AgentRole       `json:"agent"`
	SubtaskID string          `json:"subtask_id,omitempty"`
	Stage     Stage           `json:"stage"`
	Status    string          `json:"status,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Validate checks required fields and the UTC timestamp contract.
func (e *ProgressEvent) Validate() error {
	if err := AgentRoleValidator(e.Agent); err != nil {
		return err
	}
	if e.Stage != StageStart && e.Stage != StageFinish {
		return fmt.Errorf("invalid progress stage: %q", e.Stage)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("progress event ts is required")
	}
	return nil
}

// PlanPayload marshals a plan snapshot for embedding in a plan-edit event.
func PlanPayload(p *Plan) json.RawMessage {
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return b
}

// PlanFromPayload decodes a plan snapshot out of a progress event payload.
// Returns nil when the payload is absent or not a plan.
func PlanFromPayload(raw json.RawMessage) *Plan {
	if len(raw) == 0 {
		return nil
	}
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil || p.PlanID == "" {
		return nil
	}
	return &p
}
