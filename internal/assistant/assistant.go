// Package assistant orchestrates one user utterance end to end: route it
// to a function or the responder model, stream the reply to interface
// clients, feed finished sentences to speech, and persist the exchange.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/history"
	"github.com/xkilldash9x/pocketd/internal/model"
	"github.com/xkilldash9x/pocketd/internal/speech"
	"github.com/xkilldash9x/pocketd/internal/websearch"
)

// WebSearcher is the slice of the search client the assistant consumes.
type WebSearcher interface {
	SearchAndScrape(ctx context.Context, query string, numResults int) ([]websearch.EnrichedResult, error)
}

// Deps bundles the assistant's collaborators. Chat is required; every
// other dependency is optional and its absence degrades the matching
// feature instead of failing construction.
type Deps struct {
	Chat    schemas.ChatModel
	Search  WebSearcher
	Devices schemas.DeviceController
	Speech  schemas.SpeechEngine
	History schemas.HistoryStore
	Events  schemas.EventSink
	Logger  *zap.Logger
}

// Assistant routes utterances and drives the responder model. One
// conversation is held in memory at a time; stored sessions are adopted on
// demand.
type Assistant struct {
	cfg     config.AssistantConfig
	chat    schemas.ChatModel
	search  WebSearcher
	devices schemas.DeviceController
	speech  schemas.SpeechEngine
	store   schemas.HistoryStore
	sink    schemas.EventSink
	log     *zap.Logger

	estimate func([]schemas.ChatMessage) (int, error)

	stopFlag atomic.Bool

	mu            sync.Mutex
	messages      []schemas.ChatMessage
	activeSession string
}

// New wires an assistant from its collaborators.
func New(cfg config.AssistantConfig, deps Deps) (*Assistant, error) {
	if deps.Chat == nil {
		return nil, errors.New("assistant requires a chat model")
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 20
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	estimator := &tokenEstimator{}
	return &Assistant{
		cfg:      cfg,
		chat:     deps.Chat,
		search:   deps.Search,
		devices:  deps.Devices,
		speech:   deps.Speech,
		store:    deps.History,
		sink:     deps.Events,
		log:      logger.Named("Assistant"),
		estimate: estimator.count,
		messages: []schemas.ChatMessage{{Role: schemas.RoleSystem, Content: model.ResponderPrompt}},
	}, nil
}

// HandleUtterance runs one user turn end to end. A blank sessionID starts
// a new stored session; the returned id addresses follow-ups. The reply is
// streamed through the event sink while it generates and returned whole.
func (a *Assistant) HandleUtterance(ctx context.Context, sessionID, text string) (string, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return sessionID, "", errors.New("empty utterance")
	}

	// A new utterance cuts off whatever is still being spoken.
	if a.speech != nil {
		a.speech.Interrupt()
	}
	a.stopFlag.Store(false)

	sessionID = a.ensureSession(ctx, sessionID, text)
	a.persist(ctx, sessionID, schemas.RoleUser, text)

	defer a.publish(schemas.EventDone, "")

	a.publish(schemas.EventStatus, "Routing...")
	decision := a.route(ctx, text)

	var (
		response string
		err      error
	)
	switch decision.Function {
	case functionPassthrough:
		response, err = a.respond(ctx, text, decision.Think && a.ThinkEnabled())
	case functionWebSearch:
		response, err = a.searchAndRespond(ctx, decision, text)
	default:
		result := a.performFunction(ctx, decision)
		a.publish(schemas.EventSimpleResponse, result.message)
		a.speak(sanitizeForSpeech(result.message))
		response = result.message
	}
	if err != nil {
		a.publish(schemas.EventError, err.Error())
		return sessionID, "", err
	}

	a.persist(ctx, sessionID, schemas.RoleAssistant, response)
	return sessionID, response, nil
}

// respond runs a plain responder turn over the rolling conversation.
func (a *Assistant) respond(ctx context.Context, userText string, think bool) (string, error) {
	msgs := a.appendUserTurn(userText)
	a.publish(schemas.EventStatus, "Generating...")

	full, err := a.streamChat(ctx, msgs, think)
	if err != nil {
		return "", err
	}
	a.appendAssistantTurn(full)
	return full, nil
}

// searchAndRespond is the two-stage search flow: acknowledge with the
// search template, gather and scrape results, then let the responder
// answer from them.
func (a *Assistant) searchAndRespond(ctx context.Context, decision routeDecision, userText string) (string, error) {
	query := paramString(decision.Params, "query", userText)

	message := "🔍 Searching the web for: " + query
	a.publish(schemas.EventSimpleResponse, message)
	a.speak(sanitizeForSpeech(message))
	a.publish(schemas.EventStatus, "Searching...")

	grounding := "The web search returned no results."
	searched := false
	switch {
	case a.search == nil:
		a.log.Warn("No search client configured.")
	default:
		results, err := a.search.SearchAndScrape(ctx, query, 0)
		if err != nil {
			a.log.Warn("Web search failed.", zap.String("query", query), zap.Error(err))
		} else if len(results) > 0 {
			grounding = websearch.FormatForLLM(results)
			searched = true
		}
	}

	contextPrompt := fmt.Sprintf(
		"Function web_search executed. Success: %t. Result: %s\n\nUser asked: %s\n\nRespond naturally and concisely.",
		searched, grounding, userText)

	msgs := a.appendUserTurn(contextPrompt)
	a.publish(schemas.EventStatus, "Generating...")

	full, err := a.streamChat(ctx, msgs, false)
	if err != nil {
		return "", err
	}
	a.appendAssistantTurn(full)
	return full, nil
}

// streamChat drives one streaming responder call, fanning chunks out to
// the event sink and the sentence buffer. A stop request takes effect at
// the next chunk; the partial text is still returned for the record.
func (a *Assistant) streamChat(ctx context.Context, msgs []schemas.ChatMessage, think bool) (string, error) {
	if n, err := a.estimate(msgs); err == nil {
		a.log.Debug("Sending chat context.",
			zap.Int("messages", len(msgs)), zap.Int("token_estimate", n))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := a.chat.StreamChat(ctx, msgs, schemas.GenerationOptions{Think: think})
	if err != nil {
		return "", fmt.Errorf("starting responder stream: %w", err)
	}

	a.publish(schemas.EventThinkStart, "")
	var (
		buffer  speech.SentenceBuffer
		full    strings.Builder
		stopped bool
	)
	for chunk := range chunks {
		if a.stopFlag.Load() {
			stopped = true
			cancel()
			break
		}
		if chunk.Thinking != "" {
			a.publish(schemas.EventThoughtChunk, chunk.Thinking)
		}
		if chunk.Content != "" {
			full.WriteString(chunk.Content)
			a.publish(schemas.EventResponseChunk, chunk.Content)
			for _, sentence := range buffer.Add(chunk.Content) {
				a.speak(sentence)
			}
		}
	}
	a.publish(schemas.EventThinkEnd, "")

	if !stopped {
		if rem := buffer.Flush(); rem != "" {
			a.speak(rem)
		}
	}
	return full.String(), nil
}

// appendUserTurn trims the window, appends the user message, and snapshots
// the context to send. The window keeps the system prompt plus the most
// recent exchanges.
func (a *Assistant) appendUserTurn(content string) []schemas.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.messages) > a.cfg.MaxHistory {
		kept := make([]schemas.ChatMessage, 0, a.cfg.MaxHistory)
		kept = append(kept, a.messages[0])
		kept = append(kept, a.messages[len(a.messages)-(a.cfg.MaxHistory-1):]...)
		a.messages = kept
	}
	a.messages = append(a.messages, schemas.ChatMessage{Role: schemas.RoleUser, Content: content})
	return append([]schemas.ChatMessage(nil), a.messages...)
}

func (a *Assistant) appendAssistantTurn(content string) {
	a.mu.Lock()
	a.messages = append(a.messages, schemas.ChatMessage{Role: schemas.RoleAssistant, Content: content})
	a.mu.Unlock()
}

// ensureSession resolves which stored session this turn belongs to,
// creating one with a derived title when none is given. Persistence
// trouble degrades to an unsaved conversation rather than failing the
// turn.
func (a *Assistant) ensureSession(ctx context.Context, sessionID, firstLine string) string {
	if a.store == nil {
		return sessionID
	}
	if sessionID != "" {
		a.adoptSession(ctx, sessionID)
		return sessionID
	}

	sess, err := a.store.CreateSession(ctx, history.DeriveTitle(firstLine))
	if err != nil {
		a.log.Warn("Could not create a chat session.", zap.Error(err))
		return ""
	}
	a.mu.Lock()
	a.activeSession = sess.ID
	a.mu.Unlock()
	return sess.ID
}

// adoptSession swaps the in-memory thread to another stored session's
// transcript.
func (a *Assistant) adoptSession(ctx context.Context, sessionID string) {
	a.mu.Lock()
	current := a.activeSession
	a.mu.Unlock()
	if current == sessionID {
		return
	}

	rebuilt := []schemas.ChatMessage{{Role: schemas.RoleSystem, Content: model.ResponderPrompt}}
	stored, err := a.store.GetMessages(ctx, sessionID)
	if err != nil {
		a.log.Warn("Could not load session history.",
			zap.String("session", sessionID), zap.Error(err))
	}
	for _, msg := range stored {
		rebuilt = append(rebuilt, schemas.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	a.mu.Lock()
	a.activeSession = sessionID
	a.messages = rebuilt
	a.mu.Unlock()
}

// NewConversation drops the in-memory thread; the next utterance starts a
// fresh stored session.
func (a *Assistant) NewConversation() {
	a.mu.Lock()
	a.messages = []schemas.ChatMessage{{Role: schemas.RoleSystem, Content: model.ResponderPrompt}}
	a.activeSession = ""
	a.mu.Unlock()
}

// Stop halts the in-flight response at the next chunk and silences speech.
func (a *Assistant) Stop() {
	a.stopFlag.Store(true)
	if a.speech != nil {
		a.speech.Interrupt()
	}
}

// SetThink flips whether responder turns may include a reasoning phase.
// The router can still skip thinking per request even when enabled.
func (a *Assistant) SetThink(on bool) {
	a.mu.Lock()
	a.cfg.Think = on
	a.mu.Unlock()
}

// ThinkEnabled reports whether the reasoning phase is allowed.
func (a *Assistant) ThinkEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Think
}

func (a *Assistant) persist(ctx context.Context, sessionID string, role schemas.Role, content string) {
	if a.store == nil || sessionID == "" || content == "" {
		return
	}
	if err := a.store.AddMessage(ctx, sessionID, role, content); err != nil {
		a.log.Warn("Could not persist message.",
			zap.String("session", sessionID), zap.Error(err))
	}
}

func (a *Assistant) publish(eventType schemas.AssistantEventType, message string) {
	if a.sink == nil {
		return
	}
	a.sink.Publish(schemas.AssistantEvent{Type: eventType, Message: message})
}

func (a *Assistant) speak(text string) {
	if a.speech == nil || text == "" {
		return
	}
	a.speech.Enqueue(text)
}
