package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/maestro-ai/maestro/pkg/envelope"
	"github.com/maestro-ai/maestro/pkg/models"
)

// Runner executes persona calls with the shared cross-cutting behavior:
// per-call deadline, one backoff retry on transient provider failures, and
// an instruction/report envelope pair journaled around every call.
type Runner struct {
	completer   Completer
	env         *envelope.Log
	logger      *slog.Logger
	callTimeout time.Duration
}

// NewRunner creates an agent runner.
func NewRunner(completer Completer, env *envelope.Log, logger *slog.Logger, callTimeout time.Duration) *Runner {
	return &Runner{
		completer:   completer,
		env:         env,
		logger:      logger.With("component", "agent_runner"),
		callTimeout: callTimeout,
	}
}

type callPayload struct {
	Persona Persona `json:"persona"`
	Content string  `json:"content"`
}

// Call runs one persona completion. The returned error is ErrTimeout,
// ErrProviderUnavailable (after the retry), or a permanent provider error.
func (r *Runner) Call(ctx context.Context, sessionID string, persona Persona, messages []Message) (string, error) {
	r.journal(sessionID, "orchestrator", string(persona), models.PayloadInstruction,
		callPayload{Persona: persona, Content: lastUserLine(messages)})

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	op := func() (string, error) {
		out, err := r.completer.Complete(callCtx, persona, messages)
		if err != nil && !errors.Is(err, ErrProviderUnavailable) {
			return "", backoff.Permanent(err)
		}
		return out, err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), callCtx)

	out, err := backoff.RetryWithData(op, policy)
	if err != nil {
		// Deadline hits surface as ErrTimeout regardless of where they
		// interrupted the call.
		if callCtx.Err() != nil && ctx.Err() == nil {
			err = ErrTimeout
		}
		r.journal(sessionID, string(persona), "orchestrator", models.PayloadError,
			callPayload{Persona: persona, Content: err.Error()})
		r.logger.Warn("Agent call failed",
			"session_id", sessionID, "persona", persona, "error", err)
		return "", err
	}

	r.journal(sessionID, string(persona), "orchestrator", models.PayloadReport,
		callPayload{Persona: persona, Content: out})
	return out, nil
}

// journal appends an envelope, logging rather than failing the call if the
// journal write itself errors.
func (r *Runner) journal(sessionID, source, target string, pt models.PayloadType, payload callPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("Failed to marshal envelope payload", "error", err)
		return
	}
	env := &models.Envelope{
		SessionID:   sessionID,
		TS:          models.FormatUTC(time.Now()),
		Source:      source,
		Target:      target,
		PayloadType: pt,
		Payload:     raw,
	}
	if _, err := r.env.Append(env); err != nil {
		r.logger.Error("Failed to journal envelope",
			"session_id", sessionID, "payload_type", pt, "error", err)
	}
}
