package agent

import (
	"context"
	"fmt"
	"strings"
)

// StubCompleter is the deterministic offline Completer, active when no API
// key is configured. Its output is stable for a given input so CLI demos and
// tests behave reproducibly.
type StubCompleter struct{}

// NewStubCompleter returns the deterministic stub.
func NewStubCompleter() *StubCompleter { return &StubCompleter{} }

// Complete produces persona-appropriate deterministic text.
func (s *StubCompleter) Complete(_ context.Context, persona Persona, messages []Message) (string, error) {
	subject := lastUserLine(messages)
	switch persona {
	case PersonaPlanner:
		return fmt.Sprintf(
			"1. Research and outline: %s\n2. Draft the main content\n3. Review and finalize the result\n",
			subject), nil
	case PersonaWorker:
		return fmt.Sprintf(
			"Deliverable: %s\n\nThis section addresses the assigned step in full. "+
				"It summarizes the relevant considerations, presents the result, "+
				"and notes follow-ups where applicable.\n", subject), nil
	case PersonaReviewer:
		return "ACCEPT\nThe deliverable covers the assigned step.", nil
	default:
		return "", fmt.Errorf("unknown persona: %q", persona)
	}
}

// lastUserLine extracts the first line of the last user message, which the
// personas use as the subject of their canned output.
func lastUserLine(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleUser {
			continue
		}
		line := messages[i].Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		return strings.TrimSpace(line)
	}
	return ""
}
