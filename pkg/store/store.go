// Package store persists session state. It is the single source of truth:
// no orchestrator operation may remember state across requests without
// persisting it here first. Any mutation visible via a getter has been
// flushed to durable storage.
package store

import (
	"context"
	"time"

	"github.com/maestro-ai/maestro/pkg/models"
)

// Store is the persistence contract shared by the in-memory and Postgres
// backends. Writers are serialized per session by the implementation;
// concurrent readers are allowed.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, sess *models.Session, plan *models.Plan, state *models.OrchestratorState) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SaveSession(ctx context.Context, sess *models.Session) error
	ListSessions(ctx context.Context, owner string) ([]models.SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Plan and orchestrator state
	GetPlan(ctx context.Context, sessionID string) (*models.Plan, error)
	SavePlan(ctx context.Context, sessionID string, plan *models.Plan) error
	GetOrchestratorState(ctx context.Context, sessionID string) (*models.OrchestratorState, error)
	SaveOrchestratorState(ctx context.Context, state *models.OrchestratorState) error

	// Progress events (append-only, sequence-monotonic per session)
	AppendEvent(ctx context.Context, sessionID string, ev *models.ProgressEvent) error
	EventsSince(ctx context.Context, sessionID string, since time.Time) ([]models.ProgressEvent, error)
	LastEventTS(ctx context.Context, sessionID string) (*time.Time, error)

	// Worker outputs (accumulate across redo attempts; latest wins for display)
	AppendWorkerOutput(ctx context.Context, sessionID string, out models.WorkerOutput) error
	WorkerOutputs(ctx context.Context, sessionID string) ([]models.WorkerOutput, error)
	ReplaceLatestWorkerOutput(ctx context.Context, sessionID, subtaskID, content string) error

	// Chat histories
	AppendChat(ctx context.Context, sessionID string, history models.ChatHistory, msg models.ChatMessage) error
	ChatHistory(ctx context.Context, sessionID string, history models.ChatHistory) ([]models.ChatMessage, error)

	// Snapshot assembles the merged read model for a session.
	Snapshot(ctx context.Context, sessionID string) (*models.Snapshot, error)

	// MarkRunningSessionsError is the startup orphan recovery: any state
	// persisted as running is flipped to error with the given note.
	MarkRunningSessionsError(ctx context.Context, note string) (int, error)

	// Users (auth)
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	MarkUserVerified(ctx context.Context, email string) error
	SaveVerificationCode(ctx context.Context, code models.VerificationCode) error
	GetVerificationCode(ctx context.Context, email string) (*models.VerificationCode, error)

	// Ping reports backend reachability for health checks.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
