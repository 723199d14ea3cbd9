package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/models"
)

func newEnvelope(sessionID string) *models.Envelope {
	return &models.Envelope{
		SessionID:   sessionID,
		TS:          models.FormatUTC(time.Now()),
		Source:      "orchestrator",
		Target:      "worker",
		PayloadType: models.PayloadInstruction,
		Payload:     []byte(`{"content":"do the thing"}`),
	}
}

func TestAppendAssignsMonotonicSequence(t *testing.T) {
	log := NewLog(t.TempDir())

	for i := 1; i <= 3; i++ {
		seq, err := log.Append(newEnvelope("s-1"))
		require.NoError(t, err)
		assert.Equal(t, int64(i), seq)
	}

	// Sessions are independent.
	seq, err := log.Append(newEnvelope("s-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestAppendRejectsInvalidEnvelope(t *testing.T) {
	log := NewLog(t.TempDir())

	env := newEnvelope("s-1")
	env.TS = "2026-08-24T10:00:00" // naive
	_, err := log.Append(env)
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	log := NewLog(t.TempDir())
	for i := 0; i < 5; i++ {
		_, err := log.Append(newEnvelope("s-1"))
		require.NoError(t, err)
	}

	envs, err := log.Tail("s-1", 2)
	require.NoError(t, err)
	require.Len(t, envs, 3)
	assert.Equal(t, int64(3), envs[0].Sequence)
	assert.Equal(t, int64(5), envs[2].Sequence)

	envs, err = log.Tail("missing", 0)
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestSequenceRecoveryAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	log := NewLog(dir)
	_, err := log.Append(newEnvelope("s-1"))
	require.NoError(t, err)
	_, err = log.Append(newEnvelope("s-1"))
	require.NoError(t, err)

	// A fresh Log over the same directory must continue the sequence.
	restarted := NewLog(dir)
	seq, err := restarted.Append(newEnvelope("s-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}
