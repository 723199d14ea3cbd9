package models

import "time"

// Snapshot is the assembled read model of a session: persisted plan and
// state merged with the progress-event tail. Every command returns one.
type Snapshot struct {
	Session              *Session           `json:"session"`
	Plan                 *Plan              `json:"plan"`
	State                *OrchestratorState `json:"state"`
	PlannerChat          []ChatMessage      `json:"planner_chat,omitempty"`
	OrchestratorMessages []ChatMessage      `json:"orchestrator_messages,omitempty"`
	CoordDecisions       []ChatMessage      `json:"coord_decisions,omitempty"`
	WorkerOutputs        []WorkerOutput     `json:"worker_outputs,omitempty"`
	LastEventTS          *time.Time         `json:"last_progress_event_ts,omitempty"`
}

// Result is the uniform outcome of a dispatched command.
type Result struct {
	OK       bool        `json:"ok"`
	Message  string      `json:"message,omitempty"`
	Mode     SessionMode `json:"mode,omitempty"`
	Snapshot *Snapshot   `json:"snapshot,omitempty"`
}

// EventsPage is the response body of the polling endpoint.
type EventsPage struct {
	ProgressEvents      []ProgressEvent `json:"progress_events"`
	WorkerOutputs       []WorkerOutput  `json:"worker_outputs"`
	IsRunning           bool            `json:"is_running"`
	LastProgressEventTS *time.Time      `json:"last_progress_event_ts,omitempty"`
}
