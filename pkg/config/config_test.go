package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5, cfg.Runner.MaxConcurrentSessions)
	assert.Equal(t, 2, cfg.Runner.RedoBudget)
	assert.Equal(t, 5, cfg.Runner.ReviewerBatchSize)
	assert.True(t, cfg.LLM.StubMode())
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := `
http_port: "9090"
log_level: debug
runner:
  redo_budget: 3
llm:
  model: gpt-4o
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maestro.yaml"), []byte(yaml), 0o644))
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AGENT_CALL_TIMEOUT", "30s")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HTTPPort, "env beats file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Runner.RedoBudget)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.CallTimeout)
	assert.False(t, cfg.LLM.StubMode())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Runner.MaxConcurrentSessions = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Runner.RedoBudget = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.CallTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maestro.yaml"), []byte("{{nope"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
