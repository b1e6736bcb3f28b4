package model

import (
	"bufio"
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

const (
	chatEndpoint     = "/api/chat"
	generateEndpoint = "/api/generate"

	// warmupPrompt is a minimal prompt whose only job is to force the model
	// into memory.
	warmupPrompt = "hi"
)

// OllamaClient speaks the Ollama HTTP API. One client serves both surfaces:
// the vision model for agent turns and the chat model for conversation.
type OllamaClient struct {
	host        string
	chatModel   string
	visionModel string
	keepAlive   string
	numCtx      int
	temperature float64
	apiTimeout  time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

var (
	_ schemas.AgentModel = (*OllamaClient)(nil)
	_ schemas.ChatModel  = (*OllamaClient)(nil)
)

// NewOllamaClient builds a client from the model configuration. The HTTP
// client carries no global timeout; streaming responses are bounded by the
// caller's context and non-streaming calls by cfg.APITimeout.
func NewOllamaClient(cfg config.ModelConfig, logger *zap.Logger) *OllamaClient {
	host := strings.TrimRight(cfg.Host, "/")
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host
	}
	return &OllamaClient{
		host:        host,
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
		keepAlive:   cfg.KeepAlive,
		numCtx:      cfg.NumCtx,
		temperature: cfg.Temperature,
		apiTimeout:  cfg.APITimeout,
		httpClient:  &http.Client{},
		logger:      logger.Named("Ollama"),
	}
}

// -- Wire format --

type wireMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type wireOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	Think     *bool         `json:"think,omitempty"`
	KeepAlive string        `json:"keep_alive,omitempty"`
	Options   *wireOptions  `json:"options,omitempty"`
}

type chatResponseMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking"`
}

type chatResponse struct {
	Message chatResponseMessage `json:"message"`
	Done    bool                `json:"done"`
	Error   string              `json:"error"`
}

type generateRequest struct {
	Model     string       `json:"model"`
	Prompt    string       `json:"prompt"`
	Stream    bool         `json:"stream"`
	KeepAlive string       `json:"keep_alive,omitempty"`
	Options   *wireOptions `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// -- Agent surface --

// StreamTurn sends the agent conversation to the vision model. Reasoning
// fragments are forwarded as they arrive; answer text is accumulated
// privately and parsed for a tool call only once the response completes, so
// the channel carries at most one action event, always last.
func (c *OllamaClient) StreamTurn(ctx context.Context, turns []schemas.ConversationTurn) (<-chan schemas.StreamEvent, error) {
	messages := make([]wireMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, wireMessage{
			Role:    string(turn.Role),
			Content: turn.Text,
			Images:  turn.Images,
		})
	}

	payload := chatRequest{
		Model:    c.visionModel,
		Messages: messages,
		Stream:   true,
		Options: &wireOptions{
			Temperature: c.temperature,
			NumCtx:      c.numCtx,
		},
	}

	events := make(chan schemas.StreamEvent)
	go func() {
		defer close(events)

		emit := func(ev schemas.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var response strings.Builder
		err := c.streamChat(ctx, payload, func(chunk chatResponse) bool {
			if chunk.Message.Thinking != "" {
				if !emit(schemas.StreamEvent{Type: schemas.StreamThinking, Text: chunk.Message.Thinking}) {
					return false
				}
			}
			// Content is never surfaced mid-stream; a partial response can
			// hold half a tool call.
			response.WriteString(chunk.Message.Content)
			return true
		})
		if err != nil {
			c.logger.Error("Agent turn stream failed.", zap.Error(err))
			emit(schemas.StreamEvent{Type: schemas.StreamError, Text: err.Error()})
			return
		}

		if action := ParseAction(response.String(), c.logger); action != nil {
			emit(schemas.StreamEvent{Type: schemas.StreamAction, Action: action})
		}
	}()
	return events, nil
}

// -- Chat surface --

// StreamChat streams a conversational response from the chat model,
// separating reasoning from answer text chunk by chunk.
func (c *OllamaClient) StreamChat(ctx context.Context, messages []schemas.ChatMessage, opts schemas.GenerationOptions) (<-chan schemas.ChatChunk, error) {
	payload := chatRequest{
		Model:    c.chatModel,
		Messages: toWireMessages(messages),
		Stream:   true,
		Think:    &opts.Think,
	}
	if opts.Temperature > 0 || opts.NumCtx > 0 {
		payload.Options = &wireOptions{Temperature: opts.Temperature, NumCtx: opts.NumCtx}
	}

	chunks := make(chan schemas.ChatChunk)
	go func() {
		defer close(chunks)

		emit := func(chunk schemas.ChatChunk) bool {
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := c.streamChat(ctx, payload, func(chunk chatResponse) bool {
			if chunk.Message.Thinking != "" {
				if !emit(schemas.ChatChunk{Thinking: chunk.Message.Thinking}) {
					return false
				}
			}
			if chunk.Message.Content != "" {
				if !emit(schemas.ChatChunk{Content: chunk.Message.Content}) {
					return false
				}
			}
			return true
		})
		if err != nil {
			c.logger.Error("Chat stream failed.", zap.Error(err))
		}
	}()
	return chunks, nil
}

// Chat returns a complete response in one call. Transient server errors are
// retried with exponential backoff.
func (c *OllamaClient) Chat(ctx context.Context, messages []schemas.ChatMessage, opts schemas.GenerationOptions) (string, error) {
	payload := chatRequest{
		Model:    c.chatModel,
		Messages: toWireMessages(messages),
		Stream:   false,
	}
	if opts.Temperature > 0 || opts.NumCtx > 0 {
		payload.Options = &wireOptions{Temperature: opts.Temperature, NumCtx: opts.NumCtx}
	}

	var result chatResponse
	operation := func() error {
		return c.doJSON(ctx, chatEndpoint, payload, &result)
	}
	if err := backoff.Retry(operation, c.newBackoff(ctx)); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("model error: %s", result.Error)
	}
	return result.Message.Content, nil
}

// Warmup asks the server to load the chat model and keep it resident, so the
// first real request does not pay the load cost.
func (c *OllamaClient) Warmup(ctx context.Context) error {
	c.logger.Info("Warming up model.", zap.String("model", c.chatModel))
	payload := generateRequest{
		Model:     c.chatModel,
		Prompt:    warmupPrompt,
		Stream:    false,
		KeepAlive: c.keepAlive,
		Options:   &wireOptions{NumPredict: 1},
	}

	var result generateResponse
	if err := c.doJSON(ctx, generateEndpoint, payload, &result); err != nil {
		return fmt.Errorf("model warmup: %w", err)
	}
	if result.Error != "" {
		return fmt.Errorf("model warmup: %s", result.Error)
	}
	c.logger.Info("Model ready.", zap.String("model", c.chatModel))
	return nil
}

// -- Transport --

// streamChat POSTs a streaming chat request and feeds each decoded line to
// handle until the stream reports done or handle returns false.
func (c *OllamaClient) streamChat(ctx context.Context, payload chatRequest, handle func(chatResponse) bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+chatEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting model server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var chunk chatResponse
			if jsonErr := json.Unmarshal(line, &chunk); jsonErr != nil {
				return fmt.Errorf("decoding stream chunk: %w", jsonErr)
			}
			if chunk.Error != "" {
				return fmt.Errorf("model error: %s", chunk.Error)
			}
			if !handle(chunk) {
				return nil
			}
			if chunk.Done {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading stream: %w", err)
		}
	}
}

// doJSON POSTs a non-streaming request and decodes the single JSON response,
// bounded by the configured API timeout.
func (c *OllamaClient) doJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encoding request: %w", err))
	}

	reqCtx := ctx
	if c.apiTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.apiTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.host+endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused and timeouts are worth retrying; the server may
		// still be coming up.
		return fmt.Errorf("contacting model server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// newBackoff builds the retry policy for non-streaming calls.
func (c *OllamaClient) newBackoff(ctx context.Context) backoff.BackOffContext {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 2 * time.Minute
	expBackoff.MaxInterval = 30 * time.Second
	return backoff.WithContext(expBackoff, ctx)
}

func newStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(raw))
	if detail == "" {
		detail = resp.Status
	}
	return fmt.Errorf("model server returned status %d: %s", resp.StatusCode, detail)
}

// classifyStatusError separates transient server conditions, which the
// backoff policy may retry, from everything else.
func classifyStatusError(resp *http.Response) error {
	err := newStatusError(resp)
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err
	default:
		return backoff.Permanent(err)
	}
}

func toWireMessages(messages []schemas.ChatMessage) []wireMessage {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return wire
}
