package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionMode is the two-phase lifecycle of a session.
type SessionMode string

// Session modes.
const (
	ModePlanning  SessionMode = "planning"
	ModeExecution SessionMode = "execution"
)

// ModeValidator validates a session mode value.
func ModeValidator(m SessionMode) error {
	switch m {
	case ModePlanning, ModeExecution:
		return nil
	default:
		return fmt.Errorf("invalid session mode: %q", m)
	}
}

// Extra keys recognized on Session.Extra.
const (
	ExtraNovelMode    = "novel_mode"
	ExtraNovelProfile = "novel_profile"
)

// NovelProfile describes the long-form writing profile for novel-mode sessions.
type NovelProfile struct {
	Length string `json:"length,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Style  string `json:"style,omitempty"`
}

// Session is a user's goal-scoped unit of work. It exclusively owns its plan,
// orchestrator state, event log, chat histories and artifacts.
type Session struct {
	ID          string         `json:"session_id"`
	Topic       string         `json:"topic"`
	Mode        SessionMode    `json:"session_mode"`
	PlanLocked  bool           `json:"plan_locked"`
	Owner       string         `json:"owner"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
	Extra       map[string]any `json:"extra,omitempty"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// NewSessionID returns a session id sortable by creation time:
// "s-<zero-padded unix nanos>-<uuid prefix>".
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("s-%020d-%s", now.UnixNano(), uuid.NewString()[:8])
}

// NovelMode reports whether the session runs with the novel-mode profile.
func (s *Session) NovelMode() bool {
	if s.Extra == nil {
		return false
	}
	v, ok := s.Extra[ExtraNovelMode].(bool)
	return ok && v
}

// NovelProfile returns the stored novel profile, if any. The profile may be
// present as a typed value (in-process) or as a decoded JSON map (from the
// store); both shapes are handled.
func (s *Session) NovelProfile() *NovelProfile {
	if s.Extra == nil {
		return nil
	}
	switch p := s.Extra[ExtraNovelProfile].(type) {
	case *NovelProfile:
		return p
	case NovelProfile:
		return &p
	case map[string]any:
		np := &NovelProfile{}
		if v, ok := p["length"].(string); ok {
			np.Length = v
		}
		if v, ok := p["genre"].(string); ok {
			np.Genre = v
		}
		if v, ok := p["style"].(string); ok {
			np.Style = v
		}
		return np
	default:
		return nil
	}
}

// SessionSummary is the owner-scoped list entry for a session.
type SessionSummary struct {
	SessionID   string      `json:"session_id"`
	Topic       string      `json:"topic"`
	Mode        SessionMode `json:"session_mode"`
	Status      string      `json:"status"`
	DoneCount   int         `json:"done_count"`
	TotalCount  int         `json:"total_count"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUpdated time.Time   `json:"last_updated"`
}
