package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maestro-ai/maestro/pkg/models"
)

// MemoryStore is the in-process Store backend. It backs tests, the
// deterministic stub mode and CLI one-shot commands. Semantics match the
// Postgres backend exactly; the contract tests run against both.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	users    map[string]*models.User
	codes    map[string]models.VerificationCode
}

type sessionRecord struct {
	session *models.Session
	plan    *models.Plan
	state   *models.OrchestratorState
	seq     int64
	events  []models.ProgressEvent
	outputs []models.WorkerOutput
	chats   map[models.ChatHistory][]models.ChatMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionRecord),
		users:    make(map[string]*models.User),
		codes:    make(map[string]models.VerificationCode),
	}
}

func (m *MemoryStore) record(sessionID string) (*sessionRecord, error) {
	rec, ok := m.sessions[sessionID]
	if !ok || rec.session.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// CreateSession stores a new session with its initial plan and state.
func (m *MemoryStore) CreateSession(_ context.Context, sess *models.Session, plan *models.Plan, state *models.OrchestratorState) error {
	if sess.ID == "" {
		return NewValidationError("session_id", "required")
	}
	if sess.Topic == "" {
		return NewValidationError("topic", "required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *sess
	m.sessions[sess.ID] = &sessionRecord{
		session: &cp,
		plan:    plan.Clone(),
		state:   state.Clone(),
		chats:   make(map[models.ChatHistory][]models.ChatMessage),
	}
	return nil
}

// GetSession returns the session, or ErrNotFound for unknown/tombstoned ids.
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	cp := *rec.session
	return &cp, nil
}

// SaveSession persists mutated session fields (mode, lock, last_updated).
func (m *MemoryStore) SaveSession(_ context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(sess.ID)
	if err != nil {
		return err
	}
	cp := *sess
	rec.session = &cp
	return nil
}

// ListSessions returns the owner's sessions, newest first.
func (m *MemoryStore) ListSessions(_ context.Context, owner string) ([]models.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SessionSummary
	for _, rec := range m.sessions {
		if rec.session.Owner != owner || rec.session.DeletedAt != nil {
			continue
		}
		out = append(out, models.SessionSummary{
			SessionID:   rec.session.ID,
			Topic:       rec.session.Topic,
			Mode:        rec.session.Mode,
			Status:      string(rec.state.Status),
			DoneCount:   rec.plan.DoneCount(),
			TotalCount:  len(rec.plan.Subtasks),
			CreatedAt:   rec.session.CreatedAt,
			LastUpdated: rec.session.LastUpdated,
		})
	}
	// Session ids are time-prefixed, so a reverse id sort is newest first.
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].SessionID, out[j].SessionID) > 0
	})
	return out, nil
}

// DeleteSession tombstones the session. Physical removal is left to a
// separate retention policy.
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.session.DeletedAt = &now
	return nil
}

// GetPlan returns a copy of the stored plan.
func (m *MemoryStore) GetPlan(_ context.Context, sessionID string) (*models.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	return rec.plan.Clone(), nil
}

// SavePlan persists the plan.
func (m *MemoryStore) SavePlan(_ context.Context, sessionID string, plan *models.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return err
	}
	rec.plan = plan.Clone()
	rec.session.LastUpdated = time.Now().UTC()
	return nil
}

// GetOrchestratorState returns a copy of the stored state.
func (m *MemoryStore) GetOrchestratorState(_ context.Context, sessionID string) (*models.OrchestratorState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	return rec.state.Clone(), nil
}

// SaveOrchestratorState persists the state.
func (m *MemoryStore) SaveOrchestratorState(_ context.Context, state *models.OrchestratorState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(state.SessionID)
	if err != nil {
		return err
	}
	rec.state = state.Clone()
	rec.session.LastUpdated = time.Now().UTC()
	return nil
}

// AppendEvent validates, assigns the next sequence and appends the event.
func (m *MemoryStore) AppendEvent(_ context.Context, sessionID string, ev *models.ProgressEvent) error {
	if err := ev.Validate(); err != nil {
		return NewValidationError("event", err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return err
	}
	rec.seq++
	ev.Sequence = rec.seq
	ev.TS = ev.TS.UTC()
	rec.events = append(rec.events, *ev)
	return nil
}

// EventsSince returns events with ts strictly later than since, in sequence
// order. Two calls with the same since return identical results if nothing
// new was emitted.
func (m *MemoryStore) EventsSince(_ context.Context, sessionID string, since time.Time) ([]models.ProgressEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	var out []models.ProgressEvent
	for _, ev := range rec.events {
		if ev.TS.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// LastEventTS returns the timestamp of the newest event, or nil.
func (m *MemoryStore) LastEventTS(_ context.Context, sessionID string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	if len(rec.events) == 0 {
		return nil, nil
	}
	ts := rec.events[len(rec.events)-1].TS
	return &ts, nil
}

// AppendWorkerOutput appends a worker output record.
func (m *MemoryStore) AppendWorkerOutput(_ context.Context, sessionID string, out models.WorkerOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return err
	}
	rec.outputs = append(rec.outputs, out)
	return nil
}

// WorkerOutputs returns all worker outputs in append order.
func (m *MemoryStore) WorkerOutputs(_ context.Context, sessionID string) ([]models.WorkerOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.WorkerOutput, len(rec.outputs))
	copy(out, rec.outputs)
	return out, nil
}

// ReplaceLatestWorkerOutput overwrites the content of the newest output for
// a subtask. Used only by apply_reviewer_revision.
func (m *MemoryStore) ReplaceLatestWorkerOutput(_ context.Context, sessionID, subtaskID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return err
	}
	for i := len(rec.outputs) - 1; i >= 0; i-- {
		if rec.outputs[i].SubtaskID == subtaskID {
			rec.outputs[i].Content = content
			rec.outputs[i].Preview = models.MakePreview(content)
			rec.outputs[i].Timestamp = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// AppendChat appends a chat message to the named history.
func (m *MemoryStore) AppendChat(_ context.Context, sessionID string, history models.ChatHistory, msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return err
	}
	rec.chats[history] = append(rec.chats[history], msg)
	return nil
}

// ChatHistory returns the named history in append order.
func (m *MemoryStore) ChatHistory(_ context.Context, sessionID string, history models.ChatHistory) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	msgs := rec.chats[history]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Snapshot assembles the merged read model.
func (m *MemoryStore) Snapshot(_ context.Context, sessionID string) (*models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.record(sessionID)
	if err != nil {
		return nil, err
	}
	sess := *rec.session
	events := make([]models.ProgressEvent, len(rec.events))
	copy(events, rec.events)
	outputs := make([]models.WorkerOutput, len(rec.outputs))
	copy(outputs, rec.outputs)
	return assembleSnapshot(&sess, rec.plan, rec.state, events, outputs,
		rec.chats[models.HistoryPlanner],
		rec.chats[models.HistoryOrchestrator],
		rec.chats[models.HistoryCoord],
	), nil
}

// MarkRunningSessionsError flips running states to error with a note.
func (m *MemoryStore) MarkRunningSessionsError(_ context.Context, note string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.sessions {
		if rec.session.DeletedAt == nil && rec.state.Status == models.OrchestratorRunning {
			rec.state.Status = models.OrchestratorError
			rec.state.CurrentSubtaskID = ""
			rec.state.Extra.LastError = note
			n++
		}
	}
	return n, nil
}

// CreateUser stores a new user keyed by email.
func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return ErrAlreadyExists
	}
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

// GetUserByEmail returns the user, or ErrNotFound.
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// MarkUserVerified flips the verified flag.
func (m *MemoryStore) MarkUserVerified(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return ErrNotFound
	}
	u.Verified = true
	return nil
}

// SaveVerificationCode stores a pending verification challenge.
func (m *MemoryStore) SaveVerificationCode(_ context.Context, code models.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code.Email] = code
	return nil
}

// GetVerificationCode returns the pending challenge for an email.
func (m *MemoryStore) GetVerificationCode(_ context.Context, email string) (*models.VerificationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.codes[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &code, nil
}

// Ping always succeeds for the in-memory backend.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (m *MemoryStore) Close() error { return nil }
