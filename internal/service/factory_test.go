// File: internal/service/factory_test.go
package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/agent"
	"github.com/xkilldash9x/pocketd/internal/config"
)

// -- Test Helpers --

// buildConfig returns the default configuration pointed at throwaway paths
// so nothing leaks between tests or reaches outside the test directory.
func buildConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "history.db")
	// A name that resolves nowhere keeps the speech engine from finding a
	// real piper install on the host.
	cfg.Speech.PiperPath = "piper-absent-from-path"
	return cfg
}

// eventRecorder is a minimal EventSink that remembers what was published.
type eventRecorder struct {
	mu     sync.Mutex
	events []schemas.AssistantEvent
}

func (r *eventRecorder) Publish(ev schemas.AssistantEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Message)
	}
	return out
}

// -- Test Cases: Build --

func TestBuildMinimal(t *testing.T) {
	cfg := buildConfig(t)

	c, err := Build(cfg, nil, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	defer c.Shutdown()

	assert.NotNil(t, c.ChatModel)
	assert.NotNil(t, c.AgentModel)
	assert.NotNil(t, c.Home)
	assert.NotNil(t, c.Search)
	assert.NotNil(t, c.Briefing)
	assert.NotNil(t, c.Assistant)

	assert.Nil(t, c.History, "history not requested")
	assert.Nil(t, c.Speech, "speech not requested")
	assert.Nil(t, c.Browser, "browser not requested")
	assert.Nil(t, c.Agent, "agent not requested")
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := buildConfig(t)
	cfg.Model.Provider = "abacus"

	c, err := Build(cfg, nil, zaptest.NewLogger(t), Options{})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "initializing model clients")
}

func TestBuildWithHistoryOpensStore(t *testing.T) {
	cfg := buildConfig(t)

	c, err := Build(cfg, nil, zaptest.NewLogger(t), Options{WithHistory: true})
	require.NoError(t, err)
	defer c.Shutdown()

	require.NotNil(t, c.History)
	session, err := c.History.CreateSession(context.Background(), "Smoke test")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
}

func TestBuildHistoryFailureDegrades(t *testing.T) {
	cfg := buildConfig(t)
	// Park the database path underneath a regular file so the open fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.Database.Path = filepath.Join(blocker, "history.db")

	c, err := Build(cfg, nil, zaptest.NewLogger(t), Options{WithHistory: true})
	require.NoError(t, err, "a broken store must not block startup")
	defer c.Shutdown()

	assert.Nil(t, c.History)
	assert.NotNil(t, c.Assistant, "assistant still runs, just without persistence")
}

func TestBuildWithSpeechStartsEngine(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := buildConfig(t)
	cfg.Speech.Enabled = true

	c, err := Build(cfg, nil, zaptest.NewLogger(t), Options{WithSpeech: true})
	require.NoError(t, err)
	defer c.Shutdown()

	require.NotNil(t, c.Speech)
	// Piper is absent, so the engine stays off rather than erroring out.
	assert.False(t, c.Speech.Enabled())
}

func TestBuildWithBrowserRequiresSink(t *testing.T) {
	cfg := buildConfig(t)

	c, err := Build(cfg, nil, zaptest.NewLogger(t), Options{WithBrowser: true})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "initializing browser agent")
}

func TestBuildWithBrowserWiresAgent(t *testing.T) {
	cfg := buildConfig(t)
	sink := &eventRecorder{}

	c, err := Build(cfg, sink, zaptest.NewLogger(t), Options{WithBrowser: true})
	require.NoError(t, err)
	defer c.Shutdown()

	require.NotNil(t, c.Browser)
	require.NotNil(t, c.Agent)
	// The browser itself is not launched until a task starts.
	assert.Equal(t, agent.StateIdle, c.Agent.State())
}
