package agent

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/envelope"
	"github.com/maestro-ai/maestro/pkg/models"
)

// scriptedCompleter returns one canned step per call.
type scriptedCompleter struct {
	steps []func(ctx context.Context) (string, error)
	calls int
}

func (s *scriptedCompleter) Complete(ctx context.Context, _ Persona, _ []Message) (string, error) {
	step := s.steps[s.calls]
	if s.calls < len(s.steps)-1 {
		s.calls++
	}
	return step(ctx)
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func newTestRunner(t *testing.T, completer Completer, timeout time.Duration) (*Runner, *envelope.Log) {
	t.Helper()
	env := envelope.NewLog(t.TempDir())
	return NewRunner(completer, env, slog.Default(), timeout), env
}

func TestCallRetriesOnceOnProviderUnavailable(t *testing.T) {
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){
		fail(ErrProviderUnavailable),
		reply("recovered"),
	}}
	runner, _ := newTestRunner(t, completer, 5*time.Second)

	out, err := runner.Call(context.Background(), "s-1", PersonaWorker,
		[]Message{{Role: RoleUser, Content: "draft"}})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 1, completer.calls, "exactly one retry")
}

func TestCallGivesUpAfterOneRetry(t *testing.T) {
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){
		fail(ErrProviderUnavailable),
		fail(ErrProviderUnavailable),
	}}
	runner, _ := newTestRunner(t, completer, 5*time.Second)

	_, err := runner.Call(context.Background(), "s-1", PersonaWorker,
		[]Message{{Role: RoleUser, Content: "draft"}})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestCallDoesNotRetryPermanentErrors(t *testing.T) {
	boom := errors.New("model refused")
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){
		fail(boom),
		reply("should never be reached"),
	}}
	runner, _ := newTestRunner(t, completer, 5*time.Second)

	_, err := runner.Call(context.Background(), "s-1", PersonaWorker,
		[]Message{{Role: RoleUser, Content: "draft"}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, completer.calls)
}

func TestCallDeadlineSurfacesAsTimeout(t *testing.T) {
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}
	runner, _ := newTestRunner(t, completer, 50*time.Millisecond)

	_, err := runner.Call(context.Background(), "s-1", PersonaWorker,
		[]Message{{Role: RoleUser, Content: "draft"}})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCallParentCancelIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){
		func(ctx context.Context) (string, error) { return "", ctx.Err() },
	}}
	runner, _ := newTestRunner(t, completer, 5*time.Second)

	_, err := runner.Call(ctx, "s-1", PersonaWorker,
		[]Message{{Role: RoleUser, Content: "draft"}})
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestCallJournalsInstructionAndReport(t *testing.T) {
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){reply("done")}}
	runner, env := newTestRunner(t, completer, 5*time.Second)

	_, err := runner.Call(context.Background(), "s-1", PersonaWorker,
		[]Message{{Role: RoleUser, Content: "draft the intro\nwith details"}})
	require.NoError(t, err)

	envs, err := env.Tail("s-1", 0)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, models.PayloadInstruction, envs[0].PayloadType)
	assert.Equal(t, "orchestrator", envs[0].Source)
	assert.Equal(t, "worker", envs[0].Target)
	assert.Equal(t, models.PayloadReport, envs[1].PayloadType)
	assert.Equal(t, "worker", envs[1].Source)
}

func TestCallJournalsErrors(t *testing.T) {
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){
		fail(errors.New("model refused")),
	}}
	runner, env := newTestRunner(t, completer, 5*time.Second)

	_, err := runner.Call(context.Background(), "s-1", PersonaWorker,
		[]Message{{Role: RoleUser, Content: "draft"}})
	require.Error(t, err)

	envs, err := env.Tail("s-1", 0)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, models.PayloadError, envs[1].PayloadType)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		accept  bool
		note    string
		revised string
	}{
		{
			name:   "accept with note",
			reply:  "ACCEPT\nCovers the step well.",
			accept: true,
			note:   "Covers the step well.",
		},
		{
			name:   "redo with note",
			reply:  "REDO\nMissing the conclusion.",
			accept: false,
			note:   "Missing the conclusion.",
		},
		{
			name:   "verdict with trailing punctuation",
			reply:  "ACCEPT.\nFine.",
			accept: true,
			note:   "Fine.",
		},
		{
			name:   "lowercase verdict",
			reply:  "redo\nneeds work",
			accept: false,
			note:   "needs work",
		},
		{
			name:    "accept with revision",
			reply:   "ACCEPT\nLight edit applied.\nREVISED:\nThe polished text.",
			accept:  true,
			note:    "Light edit applied.",
			revised: "The polished text.",
		},
		{
			name:   "unparseable reply counts as accept",
			reply:  "The deliverable looks reasonable to me overall.",
			accept: true,
			note:   "The deliverable looks reasonable to me overall.",
		},
		{
			name:   "empty reply counts as accept",
			reply:  "",
			accept: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVerdict(tt.reply)
			assert.Equal(t, tt.accept, v.Accept)
			assert.Equal(t, tt.note, v.Note)
			assert.Equal(t, tt.revised, v.RevisedText)
		})
	}
}

func TestParseOutline(t *testing.T) {
	reply := `Here is a plan for you:

1. Research the topic
2) Draft the content
- Review everything
* Ship it

Let me know if you want changes.`

	assert.Equal(t, []string{
		"Research the topic",
		"Draft the content",
		"Review everything",
		"Ship it",
	}, parseOutline(reply))

	assert.Empty(t, parseOutline("Sure, what would you like to write about?"))
}

func TestForceNovelPhases(t *testing.T) {
	titles := forceNovelPhases([]string{
		"Research the setting",  // duplicate of a preparation phase, dropped
		"Chapter 1: The arrival",
		"Chapter 2: The storm",
	})
	require.Len(t, titles, 6)
	assert.Equal(t, novelPhases, titles[:4])
	assert.Equal(t, "Chapter 1: The arrival", titles[4])
}

func TestProposeBuildsPlanFromStub(t *testing.T) {
	runner, _ := newTestRunner(t, NewStubCompleter(), 5*time.Second)
	planner := NewPlanner(runner)

	sess := &models.Session{ID: "s-1", Topic: "a hiking guide"}
	plan, reply, err := planner.Propose(context.Background(), sess, nil, "plan a hiking guide")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.NotEmpty(t, reply)

	require.Len(t, plan.Subtasks, 3)
	assert.Equal(t, "t1", plan.Subtasks[0].ID)
	assert.Equal(t, "t3", plan.Subtasks[2].ID)
	for _, st := range plan.Subtasks {
		assert.Equal(t, models.SubtaskPending, st.Status)
	}
}

func TestProposeNovelModeForcesPreparationPhases(t *testing.T) {
	runner, _ := newTestRunner(t, NewStubCompleter(), 5*time.Second)
	planner := NewPlanner(runner)

	sess := &models.Session{ID: "s-1", Topic: "a mystery novel", Extra: map[string]any{
		models.ExtraNovelMode:    true,
		models.ExtraNovelProfile: &models.NovelProfile{Genre: "mystery", Length: "short"},
	}}
	plan, _, err := planner.Propose(context.Background(), sess, nil, "plan my novel")
	require.NoError(t, err)
	require.NotNil(t, plan)

	require.GreaterOrEqual(t, len(plan.Subtasks), 4)
	for i, want := range novelPhases {
		assert.Equal(t, want, plan.Subtasks[i].Title)
	}
}

func TestProposeConversationalReplyLeavesPlanAlone(t *testing.T) {
	completer := &scriptedCompleter{steps: []func(context.Context) (string, error){
		reply("Could you tell me more about the audience first?"),
	}}
	runner, _ := newTestRunner(t, completer, 5*time.Second)
	planner := NewPlanner(runner)

	plan, text, err := planner.Propose(context.Background(),
		&models.Session{ID: "s-1", Topic: "x"}, nil, "hmm")
	require.NoError(t, err)
	assert.Nil(t, plan)
	assert.Contains(t, text, "audience")
}

func TestReviewReturnsTurnForMemory(t *testing.T) {
	runner, _ := newTestRunner(t, NewStubCompleter(), 5*time.Second)
	reviewer := NewReviewer(runner)

	verdict, turn, err := reviewer.Review(context.Background(), "s-1",
		&models.Subtask{ID: "t1", Title: "outline"}, "the draft", nil)
	require.NoError(t, err)
	assert.True(t, verdict.Accept)
	require.Len(t, turn, 2)
	assert.Equal(t, RoleUser, turn[0].Role)
	assert.Equal(t, RoleAssistant, turn[1].Role)
	assert.Contains(t, turn[0].Content, "the draft")
}
