package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro/pkg/models"
)

const reviewerSystemPrompt = `You are the Reviewer of a multi-agent team. You
judge one Worker deliverable at a time. Reply with a verdict on the first
line: ACCEPT or REDO. Follow with a short note explaining the verdict. If a
light edit would fix the deliverable, you may append a revised version after
a line containing only REVISED:, instead of demanding a redo.`

// Verdict is the parsed reviewer decision.
type Verdict struct {
	Accept      bool
	Note        string
	RevisedText string // non-empty when the reviewer supplied a revision
}

// Reviewer judges worker deliverables. The accumulated conversation memory
// is owned by the caller so it can be reset on batch boundaries.
type Reviewer struct {
	runner *Runner
}

// NewReviewer creates a reviewer persona.
func NewReviewer(runner *Runner) *Reviewer { return &Reviewer{runner: runner} }

// Review judges one deliverable. The returned user/assistant turn pair is
// appended to memory by the caller.
func (r *Reviewer) Review(ctx context.Context, sessionID string, subtask *models.Subtask, draft string, memory []Message) (Verdict, []Message, error) {
	prompt := fmt.Sprintf("%s\n\nDeliverable to review:\n%s", subtask.Title, draft)

	messages := make([]Message, 0, len(memory)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: reviewerSystemPrompt})
	messages = append(messages, memory...)
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	reply, err := r.runner.Call(ctx, sessionID, PersonaReviewer, messages)
	if err != nil {
		return Verdict{}, nil, err
	}

	turn := []Message{
		{Role: RoleUser, Content: prompt},
		{Role: RoleAssistant, Content: reply},
	}
	return ParseVerdict(reply), turn, nil
}

// ParseVerdict extracts the verdict from a reviewer reply. A reply whose
// first word is neither ACCEPT nor REDO counts as an accept: an unparseable
// reviewer must not burn the worker's redo budget.
func ParseVerdict(reply string) Verdict {
	body := reply
	var revised string
	if idx := strings.Index(reply, "\nREVISED:"); idx >= 0 {
		body = reply[:idx]
		revised = strings.TrimSpace(reply[idx+len("\nREVISED:"):])
	}

	v := Verdict{Accept: true, RevisedText: revised}
	lines := strings.SplitN(strings.TrimSpace(body), "\n", 2)
	first := strings.ToUpper(strings.TrimSpace(lines[0]))
	switch {
	case strings.HasPrefix(first, "ACCEPT"):
		v.Accept = true
	case strings.HasPrefix(first, "REDO"):
		v.Accept = false
	default:
		v.Note = strings.TrimSpace(body)
		return v
	}
	if len(lines) > 1 {
		v.Note = strings.TrimSpace(lines[1])
	}
	return v
}

// ChatToMemory converts persisted reviewer decisions back into model memory.
func ChatToMemory(msgs []models.ChatMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := RoleAssistant
		if m.Role == models.ChatUser {
			role = RoleUser
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}
