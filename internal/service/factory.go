// File: internal/service/factory.go
package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/agent"
	"github.com/xkilldash9x/pocketd/internal/assistant"
	"github.com/xkilldash9x/pocketd/internal/briefing"
	"github.com/xkilldash9x/pocketd/internal/browser"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/history"
	"github.com/xkilldash9x/pocketd/internal/homectl"
	"github.com/xkilldash9x/pocketd/internal/model"
	"github.com/xkilldash9x/pocketd/internal/speech"
	"github.com/xkilldash9x/pocketd/internal/websearch"
)

// Options selects which optional components Build assembles. The model
// clients, device controller, search client and briefing service are always
// built; they hold no resources until first use.
type Options struct {
	// WithHistory opens the conversation store.
	WithHistory bool
	// WithSpeech starts the speech worker.
	WithSpeech bool
	// WithBrowser builds the browser controller and the vision agent. The
	// agent publishes progress as it works, so this requires a sink.
	WithBrowser bool
}

// Build assembles the application components against one event sink. A nil
// sink is fine for callers that do not surface events. Failures in optional
// components degrade with a warning; only the model clients and the agent
// are fatal. On error any partially built components are already released.
func Build(cfg *config.Config, sink schemas.EventSink, logger *zap.Logger, opts Options) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{log: logger.Named("Components")}

	agentModel, chatModel, err := model.NewClients(cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing model clients: %w", err)
	}
	c.AgentModel = agentModel
	c.ChatModel = chatModel

	if opts.WithHistory {
		store, err := history.Open(cfg.Database.Path, logger)
		if err != nil {
			// The assistant and server run fine without persistence.
			logger.Warn("Could not open history store, conversations will not be saved.",
				zap.String("path", cfg.Database.Path), zap.Error(err))
		} else {
			c.History = store
		}
	}

	if opts.WithSpeech {
		c.Speech = speech.NewEngine(cfg.Speech, nil, logger)
	}

	c.Home = homectl.NewController(cfg.Home, logger)
	c.Search = websearch.NewClient(cfg.Search, logger)
	c.Briefing = briefing.New(cfg.Briefing, c.Search, chatModel, logger)

	if opts.WithBrowser {
		c.Browser = browser.NewController(cfg.Browser, cfg.Agent.StartURL, logger)
		ag, err := agent.New(cfg.Agent, agentModel, c.Browser, sink, logger)
		if err != nil {
			c.Shutdown()
			return nil, fmt.Errorf("initializing browser agent: %w", err)
		}
		c.Agent = ag
	}

	deps := assistant.Deps{
		Chat:    chatModel,
		Search:  c.Search,
		Devices: c.Home,
		Events:  sink,
		Logger:  logger,
	}
	// Assign the optional pieces only when present so the interface fields
	// stay nil instead of wrapping a nil pointer.
	if c.History != nil {
		deps.History = c.History
	}
	if c.Speech != nil {
		deps.Speech = c.Speech
	}

	asst, err := assistant.New(cfg.Assistant, deps)
	if err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("initializing assistant: %w", err)
	}
	c.Assistant = asst

	return c, nil
}
