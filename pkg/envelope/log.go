// Package envelope implements the per-session append-only journal of
// inter-agent messages. One JSON record per line, durable before the
// corresponding state mutation is acknowledged.
package envelope

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maestro-ai/maestro/pkg/models"
)

// Log appends envelopes for all sessions under a data directory. Appenders
// within one session are serialized; sessions are independent.
type Log struct {
	dataDir string

	mu   sync.Mutex
	seqs map[string]int64 // session id -> last assigned sequence
}

// NewLog creates an envelope log rooted at dataDir.
func NewLog(dataDir string) *Log {
	return &Log{dataDir: dataDir, seqs: make(map[string]int64)}
}

func (l *Log) path(sessionID string) string {
	return filepath.Join(l.dataDir, "sessions", sessionID, "events.jsonl")
}

// Append validates the envelope, assigns the next sequence and writes the
// record durably. Returns the assigned sequence.
func (l *Log) Append(env *models.Envelope) (int64, error) {
	if err := env.Validate(); err != nil {
		return 0, fmt.Errorf("envelope validation failed: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq, ok := l.seqs[env.SessionID]
	if !ok {
		recovered, err := l.lastSequence(env.SessionID)
		if err != nil {
			return 0, err
		}
		seq = recovered
	}
	seq++
	env.Sequence = seq

	path := l.path(env.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create session log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open envelope log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return 0, fmt.Errorf("failed to append envelope: %w", err)
	}
	// Durable before the caller's state mutation is acknowledged.
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync envelope log: %w", err)
	}

	l.seqs[env.SessionID] = seq
	return seq, nil
}

// Tail returns envelopes with sequence strictly greater than afterSeq, in
// sequence order. Truncation is never performed on a live session.
func (l *Log) Tail(sessionID string, afterSeq int64) ([]models.Envelope, error) {
	f, err := os.Open(l.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open envelope log: %w", err)
	}
	defer f.Close()

	var out []models.Envelope
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var env models.Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			return nil, fmt.Errorf("corrupt envelope record: %w", err)
		}
		if env.Sequence > afterSeq {
			out = append(out, env)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read envelope log: %w", err)
	}
	return out, nil
}

// lastSequence recovers the last assigned sequence by scanning the journal.
// Called once per session per process, under the log mutex.
func (l *Log) lastSequence(sessionID string) (int64, error) {
	envs, err := l.Tail(sessionID, 0)
	if err != nil {
		return 0, err
	}
	if len(envs) == 0 {
		return 0, nil
	}
	return envs[len(envs)-1].Sequence, nil
}
