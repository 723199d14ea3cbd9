package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadType classifies the payload carried by an envelope.
type PayloadType string

// Envelope payload types.
const (
	PayloadUserCommand   PayloadType = "user_command"
	PayloadPlan          PayloadType = "plan"
	PayloadTicket        PayloadType = "ticket"
	PayloadInstruction   PayloadType = "instruction"
	PayloadReport        PayloadType = "report"
	PayloadReview        PayloadType = "review"
	PayloadArtifactRef   PayloadType = "artifact_ref"
	PayloadCoordResponse PayloadType = "coord_response"
	PayloadProgressEvent PayloadType = "progress_event"
	PayloadError         PayloadType = "error"
)

// PayloadTypeValidator validates an envelope payload type.
func PayloadTypeValidator(t PayloadType) error {
	switch t {
	case PayloadUserCommand, PayloadPlan, PayloadTicket, PayloadInstruction,
		PayloadReport, PayloadReview, PayloadArtifactRef, PayloadCoordResponse,
		PayloadProgressEvent, PayloadError:
		return nil
	default:
		return fmt.Errorf("invalid payload type: %q", t)
	}
}

// Envelope is the uniform JSON wrapper carried between the orchestrator and
// its agents. Sequence is assigned by the envelope log on append.
type Envelope struct {
	SessionID   string          `json:"session_id"`
	Sequence    int64           `json:"sequence"`
	TS          string          `json:"ts"`
	Source      string          `json:"source"`
	Target      string          `json:"target"`
	PayloadType PayloadType     `json:"payload_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Validate checks required envelope fields. The timestamp must be UTC with a
// trailing Z; explicit offsets must be normalized by the producer first.
func (e *Envelope) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("envelope session_id is required")
	}
	if e.Source == "" || e.Target == "" {
		return fmt.Errorf("envelope source and target are required")
	}
	if err := PayloadTypeValidator(e.PayloadType); err != nil {
		return err
	}
	if e.TS == "" {
		return fmt.Errorf("envelope ts is required")
	}
	if !strings.HasSuffix(e.TS, "Z") {
		return fmt.Errorf("envelope ts must be UTC with trailing Z: %q", e.TS)
	}
	if _, err := ParseUTC(e.TS); err != nil {
		return fmt.Errorf("envelope ts invalid: %w", err)
	}
	return nil
}
