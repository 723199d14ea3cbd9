package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope() *Envelope {
	return &Envelope{
		SessionID:   "s-1",
		TS:          FormatUTC(time.Now()),
		Source:      "orchestrator",
		Target:      "worker",
		PayloadType: PayloadInstruction,
	}
}

func TestEnvelopeValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validEnvelope().Validate())
	})

	t.Run("naive timestamp rejected", func(t *testing.T) {
		env := validEnvelope()
		env.TS = "2026-08-24T10:00:00"
		assert.Error(t, env.Validate())
	})

	t.Run("offset timestamp rejected until normalized", func(t *testing.T) {
		env := validEnvelope()
		env.TS = "2026-08-24T10:00:00+02:00"
		assert.Error(t, env.Validate(), "producers must normalize to Z before appending")
	})

	t.Run("unknown payload type", func(t *testing.T) {
		env := validEnvelope()
		env.PayloadType = "telepathy"
		assert.Error(t, env.Validate())
	})

	t.Run("missing source", func(t *testing.T) {
		env := validEnvelope()
		env.Source = ""
		assert.Error(t, env.Validate())
	})
}

func TestParseUTC(t *testing.T) {
	ts, err := ParseUTC("2026-08-24T12:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24T10:30:00Z", FormatUTC(ts), "offsets normalize to UTC")

	_, err = ParseUTC("2026-08-24 12:30:00")
	assert.Error(t, err)
}

func TestMakePreview(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, MakePreview(short))

	long := make([]rune, PreviewLimit+50)
	for i := range long {
		long[i] = 'é' // multi-byte rune; the limit counts runes, not bytes
	}
	preview := MakePreview(string(long))
	assert.Equal(t, PreviewLimit, len([]rune(preview)))
}

func TestNewSessionIDSortable(t *testing.T) {
	a := NewSessionID(time.Unix(1000, 0))
	b := NewSessionID(time.Unix(2000, 0))
	assert.Less(t, a, b)
}

func TestSessionNovelProfileShapes(t *testing.T) {
	typed := &Session{Extra: map[string]any{
		ExtraNovelMode:    true,
		ExtraNovelProfile: &NovelProfile{Genre: "mystery"},
	}}
	require.True(t, typed.NovelMode())
	require.NotNil(t, typed.NovelProfile())
	assert.Equal(t, "mystery", typed.NovelProfile().Genre)

	// The store round-trips extra through JSON, decoding the profile as a map.
	decoded := &Session{Extra: map[string]any{
		ExtraNovelMode:    true,
		ExtraNovelProfile: map[string]any{"genre": "mystery", "length": "short"},
	}}
	require.NotNil(t, decoded.NovelProfile())
	assert.Equal(t, "mystery", decoded.NovelProfile().Genre)
	assert.Equal(t, "short", decoded.NovelProfile().Length)

	assert.False(t, (&Session{}).NovelMode())
	assert.Nil(t, (&Session{}).NovelProfile())
}
