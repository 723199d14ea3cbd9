package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro/pkg/models"
)

const workerSystemPrompt = `You are the Worker of a multi-agent team. You are
given one subtask of a larger plan. Produce the complete deliverable for that
subtask and nothing else. Do not ask questions; make reasonable assumptions
and state them inline.`

// Ticket is one unit of work handed to the Worker.
type Ticket struct {
	Topic    string
	Subtask  *models.Subtask
	RedoNote string // reviewer's note when this is a redo attempt

	// NovelSummary is the condensed preparation-phase output prepended to
	// chapter tickets in novel mode.
	NovelSummary string
}

// Worker produces subtask deliverables.
type Worker struct {
	runner *Runner
}

// NewWorker creates a worker persona.
func NewWorker(runner *Runner) *Worker { return &Worker{runner: runner} }

// Execute produces the deliverable for a ticket.
func (w *Worker) Execute(ctx context.Context, sessionID string, ticket Ticket) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", ticket.Subtask.Title)
	fmt.Fprintf(&b, "Overall goal: %s\n", ticket.Topic)
	if ticket.Subtask.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", ticket.Subtask.Notes)
	}
	if ticket.NovelSummary != "" {
		fmt.Fprintf(&b, "\nStory context so far:\n%s\n", ticket.NovelSummary)
	}
	if ticket.RedoNote != "" {
		fmt.Fprintf(&b, "\nThis is a redo. Reviewer feedback on the previous attempt:\n%s\n", ticket.RedoNote)
	}

	messages := []Message{
		{Role: RoleSystem, Content: workerSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
	return w.runner.Call(ctx, sessionID, PersonaWorker, messages)
}
