package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient is the remote alternative to the local Ollama backend. The
// generateContent API has no incremental reasoning channel, so streaming
// surfaces degrade to a single completed response.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	chatModel   string
	visionModel string
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

var (
	_ schemas.AgentModel = (*GeminiClient)(nil)
	_ schemas.ChatModel  = (*GeminiClient)(nil)
)

// -- Gemini API request/response structures --

type geminiBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the client.
func NewGeminiClient(cfg config.ModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	baseURL := strings.TrimSuffix(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &GeminiClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.APITimeout},
		logger:      logger.Named("Gemini"),
	}, nil
}

// -- Agent surface --

// StreamTurn runs one agent turn against the vision model. The full response
// text is surfaced as a single thinking event so progress reporting still
// works, then parsed for a tool call.
func (c *GeminiClient) StreamTurn(ctx context.Context, turns []schemas.ConversationTurn) (<-chan schemas.StreamEvent, error) {
	payload := c.buildAgentPayload(turns)

	events := make(chan schemas.StreamEvent)
	go func() {
		defer close(events)

		emit := func(ev schemas.StreamEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		text, err := c.generate(ctx, c.visionModel, payload)
		if err != nil {
			emit(schemas.StreamEvent{Type: schemas.StreamError, Text: err.Error()})
			return
		}
		if text != "" {
			emit(schemas.StreamEvent{Type: schemas.StreamThinking, Text: text})
		}
		if action := ParseAction(text, c.logger); action != nil {
			emit(schemas.StreamEvent{Type: schemas.StreamAction, Action: action})
		}
	}()
	return events, nil
}

func (c *GeminiClient) buildAgentPayload(turns []schemas.ConversationTurn) geminiRequestPayload {
	payload := geminiRequestPayload{
		GenerationConfig: geminiGenerationConfig{Temperature: c.temperature},
	}
	for _, turn := range turns {
		if turn.Role == schemas.RoleSystem {
			payload.SystemInstruction = appendInstruction(payload.SystemInstruction, turn.Text)
			continue
		}
		content := geminiContent{Role: geminiRole(turn.Role)}
		if turn.Text != "" {
			content.Parts = append(content.Parts, geminiPart{Text: turn.Text})
		}
		for _, image := range turn.Images {
			content.Parts = append(content.Parts, geminiPart{
				InlineData: &geminiBlob{MIMEType: "image/jpeg", Data: image},
			})
		}
		if len(content.Parts) > 0 {
			payload.Contents = append(payload.Contents, content)
		}
	}
	return payload
}

// -- Chat surface --

// StreamChat delivers the completed response as one content chunk. The
// reasoning phase is not available over this API.
func (c *GeminiClient) StreamChat(ctx context.Context, messages []schemas.ChatMessage, opts schemas.GenerationOptions) (<-chan schemas.ChatChunk, error) {
	chunks := make(chan schemas.ChatChunk)
	go func() {
		defer close(chunks)

		text, err := c.Chat(ctx, messages, opts)
		if err != nil {
			c.logger.Error("Chat request failed.", zap.Error(err))
			return
		}
		select {
		case chunks <- schemas.ChatChunk{Content: text}:
		case <-ctx.Done():
		}
	}()
	return chunks, nil
}

// Chat sends the conversation to the chat model and returns the generated
// text, retrying transient API errors.
func (c *GeminiClient) Chat(ctx context.Context, messages []schemas.ChatMessage, opts schemas.GenerationOptions) (string, error) {
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	payload := geminiRequestPayload{
		GenerationConfig: geminiGenerationConfig{Temperature: temperature},
	}
	for _, m := range messages {
		if m.Role == schemas.RoleSystem {
			payload.SystemInstruction = appendInstruction(payload.SystemInstruction, m.Content)
			continue
		}
		payload.Contents = append(payload.Contents, geminiContent{
			Role:  geminiRole(m.Role),
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	return c.generate(ctx, c.chatModel, payload)
}

// Warmup is a no-op; there is nothing to preload on a hosted API.
func (c *GeminiClient) Warmup(ctx context.Context) error {
	c.logger.Debug("Warmup skipped for hosted provider.")
	return nil
}

// -- Transport --

// generate sends the payload to the named model and returns the first
// candidate's text, with retries on transient failures.
func (c *GeminiClient) generate(ctx context.Context, model string, payload geminiRequestPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var responseContent string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during model request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload geminiResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if len(responsePayload.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := responsePayload.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("Generation complete.",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", responsePayload.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", responsePayload.UsageMetadata.CandidatesTokenCount),
		)

		var parts []string
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
		responseContent = strings.Join(parts, "")
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status.",
		zap.Int("status", statusCode),
		zap.String("response", string(body)))
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}

func appendInstruction(instruction *geminiSystemInstruction, text string) *geminiSystemInstruction {
	if instruction == nil {
		instruction = &geminiSystemInstruction{}
	}
	instruction.Parts = append(instruction.Parts, geminiPart{Text: text})
	return instruction
}

func geminiRole(role schemas.Role) string {
	if role == schemas.RoleAssistant {
		return "model"
	}
	return "user"
}
