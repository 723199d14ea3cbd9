package auth

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/store"
)

// captureSender records outgoing mail so tests can fish the code out.
type captureSender struct {
	to, subject, body string
}

func (c *captureSender) Send(to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (c *captureSender) code(t *testing.T) string {
	t.Helper()
	code := codePattern.FindString(c.body)
	require.NotEmpty(t, code, "verification mail carries a 6-digit code")
	return code
}

func newService(t *testing.T) (*Service, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	return NewService(store.NewMemoryStore(), sender, "test-signing-key", slog.Default()), sender
}

func TestRegisterVerifyLogin(t *testing.T) {
	svc, sender := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Alice@Example.com ", "hunter2hunter2"))
	assert.Equal(t, "alice@example.com", sender.to, "email is normalized")

	// Login before verification is refused.
	_, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrNotVerified)

	require.NoError(t, svc.Verify(ctx, "alice@example.com", sender.code(t)))

	token, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	owner, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", owner)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	assert.True(t, store.IsValidationError(svc.Register(ctx, "not-an-email", "hunter2hunter2")))
	assert.True(t, store.IsValidationError(svc.Register(ctx, "", "hunter2hunter2")))
	assert.True(t, store.IsValidationError(svc.Register(ctx, "a@b.com", "short")))

	require.NoError(t, svc.Register(ctx, "a@b.com", "hunter2hunter2"))
	assert.ErrorIs(t, svc.Register(ctx, "a@b.com", "hunter2hunter2"), store.ErrAlreadyExists)
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	svc, sender := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "a@b.com", "hunter2hunter2"))

	wrong := "000000"
	if sender.code(t) == wrong {
		wrong = "000001"
	}
	assert.ErrorIs(t, svc.Verify(ctx, "a@b.com", wrong), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.Verify(ctx, "nobody@b.com", "123456"), ErrInvalidCredentials)
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	svc, sender := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "a@b.com", "hunter2hunter2"))

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	assert.ErrorIs(t, svc.Verify(ctx, "a@b.com", sender.code(t)), ErrCodeExpired)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, sender := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "a@b.com", "hunter2hunter2"))
	require.NoError(t, svc.Verify(ctx, "a@b.com", sender.code(t)))

	_, err := svc.Login(ctx, "a@b.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@b.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown accounts are indistinguishable")
}

func TestParseTokenRejectsTampering(t *testing.T) {
	svc, sender := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "a@b.com", "hunter2hunter2"))
	require.NoError(t, svc.Verify(ctx, "a@b.com", sender.code(t)))

	token, err := svc.Login(ctx, "a@b.com", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// A token signed with a different key is refused.
	other := NewService(store.NewMemoryStore(), &captureSender{}, "other-key", slog.Default())
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
