// Package agent implements the three LLM personas (Planner, Worker,
// Reviewer) behind a single chat-completion interface, with a deterministic
// stub for offline operation.
package agent

import (
	"context"
	"errors"
)

// Persona selects the system prompt and stub behavior for a call.
type Persona string

// Personas.
const (
	PersonaPlanner  Persona = "planner"
	PersonaWorker   Persona = "worker"
	PersonaReviewer Persona = "reviewer"
)

// Message is one chat turn sent to the model. The system prompt is carried
// as the first message with role "system".
type Message struct {
	Role    string
	Content string
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer produces one completion for a persona conversation.
type Completer interface {
	Complete(ctx context.Context, persona Persona, messages []Message) (string, error)
}

var (
	// ErrTimeout reports that an agent call exceeded its deadline. Callers
	// absorb it: a worker timeout becomes a redo, a reviewer timeout becomes
	// a force-accept.
	ErrTimeout = errors.New("agent call timed out")

	// ErrProviderUnavailable reports a transient provider failure. Retried
	// once with backoff before surfacing.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
)
