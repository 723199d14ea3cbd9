package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/maestro-ai/maestro/pkg/models"
)

const plannerSystemPrompt = `You are the Planner of a multi-agent team.
Given the user's goal, produce a numbered outline of concrete subtasks, one
per line, in execution order. Keep each line short and self-contained.
Answer follow-up questions about the plan conversationally.`

const plannerNovelPrompt = `You are the Planner of a long-form writing team.
The first four steps of every plan are fixed preparation phases; after them,
list one step per chapter. Produce a numbered outline, one step per line.`

// Forced preparation phases for novel-mode plans. These occupy t1-t4
// regardless of what the model proposes.
var novelPhases = []string{
	"Background research and setting notes",
	"Character profiles",
	"Plot outline",
	"Chapter map",
}

// Planner drives the planning-phase conversation and turns model outlines
// into plans.
type Planner struct {
	runner *Runner
}

// NewPlanner creates a planner persona.
func NewPlanner(runner *Runner) *Planner { return &Planner{runner: runner} }

// Propose asks the model for a plan outline and materializes it. The reply
// text is returned for the planner chat history.
func (p *Planner) Propose(ctx context.Context, sess *models.Session, history []models.ChatMessage, request string) (*models.Plan, string, error) {
	system := plannerSystemPrompt
	if sess.NovelMode() {
		system = plannerNovelPrompt
		if prof := sess.NovelProfile(); prof != nil {
			system += fmt.Sprintf("\nTarget length: %s. Genre: %s. Style: %s.",
				prof.Length, prof.Genre, prof.Style)
		}
	}

	messages := buildMessages(system, history, request)
	reply, err := p.runner.Call(ctx, sess.ID, PersonaPlanner, messages)
	if err != nil {
		return nil, "", err
	}

	titles := parseOutline(reply)
	if len(titles) == 0 {
		// A conversational reply without an outline leaves the plan as is.
		return nil, reply, nil
	}

	plan := &models.Plan{
		PlanID: "p-" + uuid.NewString()[:8],
		Title:  sess.Topic,
	}
	if sess.NovelMode() {
		titles = forceNovelPhases(titles)
	}
	for i, title := range titles {
		plan.Subtasks = append(plan.Subtasks, &models.Subtask{
			ID:     fmt.Sprintf("t%d", i+1),
			Title:  title,
			Status: models.SubtaskPending,
		})
	}
	return plan, reply, nil
}

// Ask continues the planning conversation without producing a plan.
func (p *Planner) Ask(ctx context.Context, sess *models.Session, history []models.ChatMessage, question string) (string, error) {
	messages := buildMessages(plannerSystemPrompt, history, question)
	return p.runner.Call(ctx, sess.ID, PersonaPlanner, messages)
}

func buildMessages(system string, history []models.ChatMessage, request string) []Message {
	messages := []Message{{Role: RoleSystem, Content: system}}
	for _, msg := range history {
		role := RoleAssistant
		if msg.Role == models.ChatUser {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: msg.Content})
	}
	return append(messages, Message{Role: RoleUser, Content: request})
}

var outlineLine = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s+(.+?)\s*$`)

// parseOutline extracts the outline items from a planner reply. Numbered and
// bulleted lines both count; prose lines are ignored.
func parseOutline(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		if m := outlineLine.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// forceNovelPhases pins the four preparation phases at the head of the plan.
// Model-proposed items that duplicate a phase are dropped; the rest become
// the chapter steps.
func forceNovelPhases(titles []string) []string {
	out := make([]string, 0, len(titles)+len(novelPhases))
	out = append(out, novelPhases...)
	for _, t := range titles {
		if isNovelPhase(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isNovelPhase(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range []string{"research", "character", "plot outline", "chapter map"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
