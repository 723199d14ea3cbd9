package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/models"
)

// newPostgresStore connects to the database named by MAESTRO_TEST_DATABASE_URL
// or skips the test when none is configured.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("MAESTRO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MAESTRO_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresSessionRoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	id := models.NewSessionID(now)
	sess := &models.Session{
		ID: id, Topic: "round trip", Mode: models.ModePlanning,
		Owner: "pg-test@example.com", CreatedAt: now, LastUpdated: now,
	}
	pl := &models.Plan{PlanID: "p-rt", Title: sess.Topic, Subtasks: []*models.Subtask{
		{ID: "t1", Title: "outline", Status: models.SubtaskPending},
	}}
	require.NoError(t, s.CreateSession(ctx, sess, pl, models.NewOrchestratorState(id)))
	t.Cleanup(func() { _ = s.DeleteSession(context.Background(), id) })

	assert.ErrorIs(t, s.CreateSession(ctx, sess, pl, models.NewOrchestratorState(id)), ErrAlreadyExists)

	got, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sess.Topic, got.Topic)
	assert.Equal(t, sess.Owner, got.Owner)

	gotPlan, err := s.GetPlan(ctx, id)
	require.NoError(t, err)
	require.Len(t, gotPlan.Subtasks, 1)
	assert.Equal(t, "t1", gotPlan.Subtasks[0].ID)

	require.NoError(t, s.DeleteSession(ctx, id))
	_, err = s.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresEventSequence(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	id := models.NewSessionID(now)
	sess := &models.Session{
		ID: id, Topic: "events", Mode: models.ModePlanning,
		Owner: "pg-test@example.com", CreatedAt: now, LastUpdated: now,
	}
	require.NoError(t, s.CreateSession(ctx, sess, &models.Plan{PlanID: "p-ev", Title: sess.Topic},
		models.NewOrchestratorState(id)))
	t.Cleanup(func() { _ = s.DeleteSession(context.Background(), id) })

	for i := 0; i < 3; i++ {
		ev := &models.ProgressEvent{
			TS: now.Add(time.Duration(i) * time.Second), Agent: models.RoleWorker,
			SubtaskID: "t1", Stage: models.StageStart,
		}
		require.NoError(t, s.AppendEvent(ctx, id, ev))
		assert.Equal(t, int64(i+1), ev.Sequence)
	}

	events, err := s.EventsSince(ctx, id, now.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
