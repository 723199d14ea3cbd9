package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/agent"
	"github.com/maestro-ai/maestro/pkg/artifacts"
	"github.com/maestro-ai/maestro/pkg/auth"
	"github.com/maestro-ai/maestro/pkg/envelope"
	"github.com/maestro-ai/maestro/pkg/executor"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/orchestrator"
	"github.com/maestro-ai/maestro/pkg/progress"
	"github.com/maestro-ai/maestro/pkg/runner"
	"github.com/maestro-ai/maestro/pkg/store"
)

type nullSender struct{}

func (nullSender) Send(string, string, string) error { return nil }

type fixture struct {
	server *Server
	store  *store.MemoryStore
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := store.NewMemoryStore()
	logger := slog.Default()
	env := envelope.NewLog(t.TempDir())
	agentRunner := agent.NewRunner(agent.NewStubCompleter(), env, logger, 5*time.Second)
	art := artifacts.NewStore(t.TempDir())
	emitter := progress.NewEmitter(m, logger)
	exec := executor.New(m, emitter,
		agent.NewWorker(agentRunner), agent.NewReviewer(agentRunner), art, 2, 5, logger)
	run := runner.New(m, exec, env, 5, logger)
	t.Cleanup(func() { run.Shutdown(time.Second) })

	orch := orchestrator.New(m, agent.NewPlanner(agentRunner), run, emitter, art, logger)
	authSvc := auth.NewService(m, nullSender{}, "test-signing-key", logger)
	return &fixture{server: NewServer(orch, authSvc, m, logger), store: m}
}

// do issues a request against the router, attaching the fixture token when
// one has been obtained.
func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// login registers, verifies and logs in a user, storing the bearer token on
// the fixture.
func (f *fixture) login(t *testing.T, email string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/register",
		map[string]string{"email": email, "password": "hunter2hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	code, err := f.store.GetVerificationCode(context.Background(), email)
	require.NoError(t, err)
	rec = f.do(t, http.MethodPost, "/auth/verify",
		map[string]string{"email": email, "code": code.Code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": "hunter2hunter2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.token = decode[loginResponse](t, rec).Token
	require.NotEmpty(t, f.token)
}

func (f *fixture) createSession(t *testing.T, topic string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/sessions", map[string]string{"topic": topic})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap := decode[models.Snapshot](t, rec)
	return snap.Session.ID
}

func (f *fixture) command(t *testing.T, sessionID, name string, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/sessions/"+sessionID+"/command",
		commandRequest{Command: name, Payload: payload})
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSessionsRequireAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.token = "garbage"
	rec = f.do(t, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFlowStatusCodes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register",
		map[string]string{"email": "bad", "password": "hunter2hunter2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.login(t, "alice@example.com")

	rec = f.do(t, http.MethodPost, "/auth/register",
		map[string]string{"email": "alice@example.com", "password": "hunter2hunter2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	unverified := newFixture(t)
	rec = unverified.do(t, http.MethodPost, "/auth/register",
		map[string]string{"email": "bob@example.com", "password": "hunter2hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = unverified.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "bob@example.com", "password": "hunter2hunter2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice@example.com")

	id := f.createSession(t, "a hiking guide")

	rec := f.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]models.SessionSummary](t, rec)
	require.Len(t, list["sessions"], 1)
	assert.Equal(t, id, list["sessions"][0].SessionID)

	// Plan through the dispatcher.
	rec = f.command(t, id, "ask", map[string]any{"text": "plan a hiking guide"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[models.Result](t, rec)
	require.NotNil(t, res.Snapshot)
	require.Len(t, res.Snapshot.Plan.Subtasks, 3)

	// Running before confirmation is a conflict; the body still carries
	// ok=false and the current snapshot.
	rec = f.command(t, id, "next", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	refused := decode[models.Result](t, rec)
	assert.False(t, refused.OK)
	assert.NotEmpty(t, refused.Message)
	require.NotNil(t, refused.Snapshot)
	assert.Equal(t, id, refused.Snapshot.Session.ID)

	rec = f.command(t, id, "confirm_plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[models.Result](t, rec)
	assert.Equal(t, models.ModeExecution, res.Mode)

	// Locked plans refuse structural edits.
	rec = f.command(t, id, "append_subtask", map[string]any{"title": "extra"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.command(t, id, "next", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Poll until the background run settles.
	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/sessions/"+id+"/events", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return !decode[models.EventsPage](t, rec).IsRunning
	}, 10*time.Second, 20*time.Millisecond)

	rec = f.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[models.Snapshot](t, rec)
	assert.Equal(t, models.SubtaskDone, snap.Plan.Subtasks[0].Status)
	require.NotEmpty(t, snap.WorkerOutputs)

	rec = f.do(t, http.MethodDelete, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsSincePaging(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice@example.com")
	id := f.createSession(t, "a hiking guide")

	rec := f.command(t, id, "ask", map[string]any{"text": "plan a hiking guide"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/sessions/"+id+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.EventsPage](t, rec)
	require.NotEmpty(t, page.ProgressEvents)
	require.NotNil(t, page.LastProgressEventTS)

	// Polling from the reported cursor returns nothing new.
	since := page.LastProgressEventTS.Format(time.RFC3339Nano)
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/sessions/%s/events?since=%s", id, since), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.EventsPage](t, rec).ProgressEvents)

	rec = f.do(t, http.MethodGet, "/sessions/"+id+"/events?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandValidation(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice@example.com")
	id := f.createSession(t, "a hiking guide")

	rec := f.command(t, id, "teleport", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.command(t, id, "ask", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "ask without text")

	rec = f.command(t, "s-missing", "plan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOwnersAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.login(t, "alice@example.com")
	id := f.createSession(t, "a hiking guide")

	f.login(t, "mallory@example.com")
	rec := f.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "foreign sessions look missing")

	rec = f.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]models.SessionSummary](t, rec)["sessions"])
}
