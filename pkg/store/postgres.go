package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql

	"github.com/maestro-ai/maestro/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresStore is the durable Store backend. Migrations are embedded into
// the binary and applied on startup.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database, verifies connectivity and applies
// pending migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver. m.Close() would also close the database
	// driver, which closes the shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}

	return nil
}

// CreateSession inserts the session with its initial plan and state in one
// transaction.
func (p *PostgresStore) CreateSession(ctx context.Context, sess *models.Session, plan *models.Plan, state *models.OrchestratorState) error {
	if sess.ID == "" {
		return NewValidationError("session_id", "required")
	}
	if sess.Topic == "" {
		return NewValidationError("topic", "required")
	}
	extra, err := json.Marshal(sess.Extra)
	if err != nil {
		return fmt.Errorf("failed to marshal session extra: %w", err)
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	stateExtra, err := json.Marshal(state.Extra)
	if err != nil {
		return fmt.Errorf("failed to marshal state extra: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, topic, mode, plan_locked, owner, created_at, last_updated, extra)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.Topic, string(sess.Mode), sess.PlanLocked, sess.Owner,
		sess.CreatedAt, sess.LastUpdated, extra)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyExists
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plans (session_id, plan) VALUES ($1, $2)`,
		sess.ID, planJSON); err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orchestrator_states (session_id, status, current_subtask_id, extra)
		 VALUES ($1, $2, $3, $4)`,
		state.SessionID, string(state.Status), state.CurrentSubtaskID, stateExtra); err != nil {
		return fmt.Errorf("failed to insert orchestrator state: %w", err)
	}

	return tx.Commit()
}

func (p *PostgresStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, topic, mode, plan_locked, owner, created_at, last_updated, extra, deleted_at
		 FROM sessions WHERE id = $1 AND deleted_at IS NULL`, sessionID)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var (
		sess  models.Session
		mode  string
		extra []byte
	)
	err := row.Scan(&sess.ID, &sess.Topic, &mode, &sess.PlanLocked, &sess.Owner,
		&sess.CreatedAt, &sess.LastUpdated, &extra, &sess.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.Mode = models.SessionMode(mode)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &sess.Extra); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session extra: %w", err)
		}
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.LastUpdated = sess.LastUpdated.UTC()
	return &sess, nil
}

func (p *PostgresStore) SaveSession(ctx context.Context, sess *models.Session) error {
	extra, err := json.Marshal(sess.Extra)
	if err != nil {
		return fmt.Errorf("failed to marshal session extra: %w", err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE sessions SET topic = $2, mode = $3, plan_locked = $4, last_updated = $5, extra = $6
		 WHERE id = $1 AND deleted_at IS NULL`,
		sess.ID, sess.Topic, string(sess.Mode), sess.PlanLocked, sess.LastUpdated, extra)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListSessions(ctx context.Context, owner string) ([]models.SessionSummary, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT s.id, s.topic, s.mode, st.status, p.plan, s.created_at, s.last_updated
		 FROM sessions s
		 JOIN orchestrator_states st ON st.session_id = s.id
		 JOIN plans p ON p.session_id = s.id
		 WHERE s.owner = $1 AND s.deleted_at IS NULL
		 ORDER BY s.id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionSummary
	for rows.Next() {
		var (
			sum      models.SessionSummary
			mode     string
			planJSON []byte
		)
		if err := rows.Scan(&sum.SessionID, &sum.Topic, &mode, &sum.Status, &planJSON,
			&sum.CreatedAt, &sum.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		sum.Mode = models.SessionMode(mode)
		var plan models.Plan
		if err := json.Unmarshal(planJSON, &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
		sum.DoneCount = plan.DoneCount()
		sum.TotalCount = len(plan.Subtasks)
		sum.CreatedAt = sum.CreatedAt.UTC()
		sum.LastUpdated = sum.LastUpdated.UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE sessions SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) sessionExists(ctx context.Context, sessionID string) error {
	var one int
	err := p.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE id = $1 AND deleted_at IS NULL`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *PostgresStore) GetPlan(ctx context.Context, sessionID string) (*models.Plan, error) {
	var planJSON []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT p.plan FROM plans p
		 JOIN sessions s ON s.id = p.session_id
		 WHERE p.session_id = $1 AND s.deleted_at IS NULL`, sessionID).Scan(&planJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	var plan models.Plan
	if err := json.Unmarshal(planJSON, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}
	return &plan, nil
}

func (p *PostgresStore) SavePlan(ctx context.Context, sessionID string, plan *models.Plan) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE plans SET plan = $2 WHERE session_id = $1`, sessionID, planJSON)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE sessions SET last_updated = NOW() WHERE id = $1`, sessionID)
	return err
}

func (p *PostgresStore) GetOrchestratorState(ctx context.Context, sessionID string) (*models.OrchestratorState, error) {
	var (
		state  models.OrchestratorState
		status string
		extra  []byte
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT st.session_id, st.status, st.current_subtask_id, st.extra
		 FROM orchestrator_states st
		 JOIN sessions s ON s.id = st.session_id
		 WHERE st.session_id = $1 AND s.deleted_at IS NULL`, sessionID).
		Scan(&state.SessionID, &status, &state.CurrentSubtaskID, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get orchestrator state: %w", err)
	}
	state.Status = models.OrchestratorStatus(status)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &state.Extra); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state extra: %w", err)
		}
	}
	return &state, nil
}

func (p *PostgresStore) SaveOrchestratorState(ctx context.Context, state *models.OrchestratorState) error {
	extra, err := json.Marshal(state.Extra)
	if err != nil {
		return fmt.Errorf("failed to marshal state extra: %w", err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE orchestrator_states SET status = $2, current_subtask_id = $3, extra = $4
		 WHERE session_id = $1`,
		state.SessionID, string(state.Status), state.CurrentSubtaskID, extra)
	if err != nil {
		return fmt.Errorf("failed to save orchestrator state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE sessions SET last_updated = NOW() WHERE id = $1`, state.SessionID)
	return err
}

func (p *PostgresStore) AppendEvent(ctx context.Context, sessionID string, ev *models.ProgressEvent) error {
	if err := ev.Validate(); err != nil {
		return NewValidationError("event", err.Error())
	}
	if err := p.sessionExists(ctx, sessionID); err != nil {
		return err
	}
	// Writers are serialized per session by the runner, so the max+1 read
	// cannot race with another writer for the same session.
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO progress_events (session_id, sequence, ts, agent, subtask_id, stage, status, payload)
		 VALUES ($1,
		         (SELECT COALESCE(MAX(sequence), 0) + 1 FROM progress_events WHERE session_id = $1),
		         $2, $3, $4, $5, $6, $7)
		 RETURNING sequence`,
		sessionID, ev.TS.UTC(), string(ev.Agent), ev.SubtaskID, string(ev.Stage),
		ev.Status, nullableJSON(ev.Payload)).Scan(&ev.Sequence)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	ev.TS = ev.TS.UTC()
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func (p *PostgresStore) EventsSince(ctx context.Context, sessionID string, since time.Time) ([]models.ProgressEvent, error) {
	if err := p.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT sequence, ts, agent, subtask_id, stage, status, payload
		 FROM progress_events
		 WHERE session_id = $1 AND ts > $2
		 ORDER BY sequence`, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []models.ProgressEvent
	for rows.Next() {
		var (
			ev      models.ProgressEvent
			agent   string
			stage   string
			payload []byte
		)
		if err := rows.Scan(&ev.Sequence, &ev.TS, &agent, &ev.SubtaskID, &stage,
			&ev.Status, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Agent = models.AgentRole(agent)
		ev.Stage = models.Stage(stage)
		ev.TS = ev.TS.UTC()
		if len(payload) > 0 {
			ev.Payload = json.RawMessage(payload)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *PostgresStore) LastEventTS(ctx context.Context, sessionID string) (*time.Time, error) {
	if err := p.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	var ts time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT ts FROM progress_events WHERE session_id = $1 ORDER BY sequence DESC LIMIT 1`,
		sessionID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last event ts: %w", err)
	}
	ts = ts.UTC()
	return &ts, nil
}

func (p *PostgresStore) AppendWorkerOutput(ctx context.Context, sessionID string, out models.WorkerOutput) error {
	if err := p.sessionExists(ctx, sessionID); err != nil {
		return err
	}
	var artifact any
	if out.Artifact != nil {
		b, err := json.Marshal(out.Artifact)
		if err != nil {
			return fmt.Errorf("failed to marshal artifact ref: %w", err)
		}
		artifact = b
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO worker_outputs (session_id, subtask_id, ts, preview, content, artifact)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, out.SubtaskID, out.Timestamp.UTC(), out.Preview, out.Content, artifact)
	if err != nil {
		return fmt.Errorf("failed to append worker output: %w", err)
	}
	return nil
}

func (p *PostgresStore) WorkerOutputs(ctx context.Context, sessionID string) ([]models.WorkerOutput, error) {
	if err := p.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT subtask_id, ts, preview, content, artifact
		 FROM worker_outputs WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query worker outputs: %w", err)
	}
	defer rows.Close()

	var out []models.WorkerOutput
	for rows.Next() {
		var (
			wo       models.WorkerOutput
			artifact []byte
		)
		if err := rows.Scan(&wo.SubtaskID, &wo.Timestamp, &wo.Preview, &wo.Content, &artifact); err != nil {
			return nil, fmt.Errorf("failed to scan worker output: %w", err)
		}
		wo.Timestamp = wo.Timestamp.UTC()
		if len(artifact) > 0 {
			var ref models.ArtifactRef
			if err := json.Unmarshal(artifact, &ref); err != nil {
				return nil, fmt.Errorf("failed to unmarshal artifact ref: %w", err)
			}
			wo.Artifact = &ref
		}
		out = append(out, wo)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ReplaceLatestWorkerOutput(ctx context.Context, sessionID, subtaskID, content string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE worker_outputs SET content = $3, preview = $4, ts = NOW()
		 WHERE id = (SELECT id FROM worker_outputs
		             WHERE session_id = $1 AND subtask_id = $2
		             ORDER BY id DESC LIMIT 1)`,
		sessionID, subtaskID, content, models.MakePreview(content))
	if err != nil {
		return fmt.Errorf("failed to replace worker output: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) AppendChat(ctx context.Context, sessionID string, history models.ChatHistory, msg models.ChatMessage) error {
	if err := p.sessionExists(ctx, sessionID); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, history, role, content, ts)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, string(history), string(msg.Role), msg.Content, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (p *PostgresStore) ChatHistory(ctx context.Context, sessionID string, history models.ChatHistory) ([]models.ChatMessage, error) {
	if err := p.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	return p.chatHistory(ctx, sessionID, history)
}

func (p *PostgresStore) chatHistory(ctx context.Context, sessionID string, history models.ChatHistory) ([]models.ChatMessage, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT role, content, ts FROM chat_messages
		 WHERE session_id = $1 AND history = $2 ORDER BY id`, sessionID, string(history))
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			msg  models.ChatMessage
			role string
		)
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Role = models.ChatRole(role)
		msg.Timestamp = msg.Timestamp.UTC()
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Snapshot(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	sess, err := p.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	plan, err := p.GetPlan(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := p.GetOrchestratorState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	events, err := p.EventsSince(ctx, sessionID, time.Time{})
	if err != nil {
		return nil, err
	}
	outputs, err := p.WorkerOutputs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	plannerChat, err := p.chatHistory(ctx, sessionID, models.HistoryPlanner)
	if err != nil {
		return nil, err
	}
	orchMessages, err := p.chatHistory(ctx, sessionID, models.HistoryOrchestrator)
	if err != nil {
		return nil, err
	}
	coordDecisions, err := p.chatHistory(ctx, sessionID, models.HistoryCoord)
	if err != nil {
		return nil, err
	}
	return assembleSnapshot(sess, plan, state, events, outputs,
		plannerChat, orchMessages, coordDecisions), nil
}

func (p *PostgresStore) MarkRunningSessionsError(ctx context.Context, note string) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE orchestrator_states SET status = 'error', current_subtask_id = '',
		        extra = jsonb_set(extra, '{last_error}', to_jsonb($1::text))
		 WHERE status = 'running'`, note)
	if err != nil {
		return 0, fmt.Errorf("failed to mark running sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, verified, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING`,
		user.ID, user.Email, user.PasswordHash, user.Verified, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (p *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, verified, created_at FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (p *PostgresStore) MarkUserVerified(ctx context.Context, email string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) SaveVerificationCode(ctx context.Context, code models.VerificationCode) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO verification_codes (email, code, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		code.Email, code.Code, code.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save verification code: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetVerificationCode(ctx context.Context, email string) (*models.VerificationCode, error) {
	var code models.VerificationCode
	err := p.db.QueryRowContext(ctx,
		`SELECT email, code, expires_at FROM verification_codes WHERE email = $1`,
		email).Scan(&code.Email, &code.Code, &code.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}
	code.ExpiresAt = code.ExpiresAt.UTC()
	return &code, nil
}

// Ping reports database reachability.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
