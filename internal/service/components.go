// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/agent"
	"github.com/xkilldash9x/pocketd/internal/assistant"
	"github.com/xkilldash9x/pocketd/internal/briefing"
	"github.com/xkilldash9x/pocketd/internal/browser"
	"github.com/xkilldash9x/pocketd/internal/history"
	"github.com/xkilldash9x/pocketd/internal/homectl"
	"github.com/xkilldash9x/pocketd/internal/speech"
	"github.com/xkilldash9x/pocketd/internal/websearch"
)

// Components holds every initialized service the commands compose. Fields
// left nil were skipped by the build options or degraded at startup; callers
// check before use and Shutdown tolerates any combination.
type Components struct {
	AgentModel schemas.AgentModel
	ChatModel  schemas.ChatModel

	History  *history.Store
	Speech   *speech.Engine
	Home     *homectl.Controller
	Search   *websearch.Client
	Briefing *briefing.Service

	Browser   *browser.Controller
	Agent     *agent.Agent
	Assistant *assistant.Assistant

	log *zap.Logger
}

// Shutdown releases everything Build created, in dependency order: the
// browser session first so no action is mid-flight, then the speech worker,
// then the conversation store.
func (c *Components) Shutdown() {
	if c == nil {
		return
	}

	if c.Agent != nil {
		if err := c.Agent.Close(); err != nil {
			c.log.Warn("Error closing browser session.", zap.Error(err))
		}
	} else if c.Browser != nil {
		// The controller was built but never handed to an agent.
		if err := c.Browser.Stop(); err != nil {
			c.log.Warn("Error stopping browser.", zap.Error(err))
		}
	}

	if c.Speech != nil {
		if err := c.Speech.Close(); err != nil {
			c.log.Warn("Error stopping speech engine.", zap.Error(err))
		}
	}

	if c.History != nil {
		if err := c.History.Close(); err != nil {
			c.log.Warn("Error closing history store.", zap.Error(err))
		}
	}

	c.log.Debug("All components shut down.")
}
