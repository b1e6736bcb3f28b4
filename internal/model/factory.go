package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
)

// NewClients is a factory function that creates the agent and chat model
// clients for the configured provider. Both surfaces come from the same
// backend so the two models share a server connection.
func NewClients(cfg config.ModelConfig, logger *zap.Logger) (schemas.AgentModel, schemas.ChatModel, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		client := NewOllamaClient(cfg, logger)
		return client, client, nil
	case config.ProviderGemini:
		client, err := NewGeminiClient(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown or unsupported model provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderOllama, config.ProviderGemini)
	}
}
