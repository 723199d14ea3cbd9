package models

import (
	"time"
	"unicode/utf8"
)

// PreviewLimit is the maximum rune length of a worker output preview.
const PreviewLimit = 300

// ArtifactRef points at a write-once artifact under the session's artifact
// directory.
type ArtifactRef struct {
	Label       string `json:"label"`
	URI         string `json:"uri"`
	Digest      string `json:"digest,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// WorkerOutput is one Worker deliverable for a subtask. Outputs accumulate
// across redo attempts; the latest wins for display, all are retained.
type WorkerOutput struct {
	SubtaskID string       `json:"subtask_id"`
	Timestamp time.Time    `json:"timestamp"`
	Preview   string       `json:"preview"`
	Content   string       `json:"content"`
	Artifact  *ArtifactRef `json:"artifact_ref,omitempty"`
}

// MakePreview truncates content to PreviewLimit runes.
func MakePreview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:PreviewLimit])
}

// ChatRole is the author of a chat message.
type ChatRole string

// Chat roles.
const (
	ChatUser         ChatRole = "user"
	ChatPlanner      ChatRole = "planner"
	ChatOrchestrator ChatRole = "orchestrator"
	ChatReviewer     ChatRole = "reviewer"
)

// ChatHistory names one of the three per-session chat histories.
type ChatHistory string

// Chat histories.
const (
	HistoryPlanner      ChatHistory = "planner_chat"
	HistoryOrchestrator ChatHistory = "orchestrator_messages"
	HistoryCoord        ChatHistory = "coord_decisions"
)

// ChatMessage is one entry in a session chat history.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
