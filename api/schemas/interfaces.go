package schemas

import (
	"context"
	"time"
)

// This file is the contract registry for the assistant. Every seam between
// subsystems is an interface defined here; implementations live under
// internal/ and assert conformance with a compile-time check.

// -- Generation --

// GenerationOptions tune a single model call.
type GenerationOptions struct {
	// Temperature controls sampling randomness. Zero means the provider
	// default.
	Temperature float64
	// NumCtx is the context window size hint, in tokens.
	NumCtx int
	// Think requests a reasoning phase from models that support one.
	Think bool
}

// ChatChunk is one streamed fragment of a chat response. Thinking and
// Content are mutually exclusive per chunk; the channel closing marks the end
// of the response.
type ChatChunk struct {
	Thinking string
	Content  string
}

// AgentModel is the vision model surface the browser agent drives. A turn
// streams reasoning fragments as they arrive and ends with at most one
// parsed action event.
type AgentModel interface {
	// StreamTurn sends the conversation and streams the model's response.
	// The returned channel is closed when the turn completes; a turn that
	// yields no StreamAction event produced no parseable tool call.
	StreamTurn(ctx context.Context, turns []ConversationTurn) (<-chan StreamEvent, error)
}

// ChatModel is the conversational model surface used outside the agent loop.
type ChatModel interface {
	// StreamChat streams a chat response, splitting reasoning from answer
	// text. The channel is closed when the response completes.
	StreamChat(ctx context.Context, messages []ChatMessage, opts GenerationOptions) (<-chan ChatChunk, error)
	// Chat returns a complete response in one piece.
	Chat(ctx context.Context, messages []ChatMessage, opts GenerationOptions) (string, error)
	// Warmup loads the model into memory ahead of the first real request.
	Warmup(ctx context.Context) error
}

// -- Browser --

// BrowserController drives a visible browser session on behalf of the agent.
type BrowserController interface {
	// Start launches the browser and navigates to the start page.
	Start(ctx context.Context) error
	// Screenshot captures the viewport as a base64-encoded JPEG. An empty
	// string with a nil error means the page was not ready.
	Screenshot(ctx context.Context) (string, error)
	// Perform executes one validated action against the page.
	Perform(ctx context.Context, action *ActionInvocation) error
	// Navigate loads a URL, normalizing bare hosts to https.
	Navigate(ctx context.Context, rawURL string) error
	// Stop closes the browser session. Safe to call more than once.
	Stop() error
}

// -- Events --

// EventSink receives events for delivery to interface clients. Publish must
// not block the caller; slow consumers lose events rather than stalling the
// pipeline.
type EventSink interface {
	Publish(event AssistantEvent)
}

// -- Conversation Persistence --

// Session is one stored conversation.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is one persisted conversation message.
type StoredMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string    `json:"session_id" gorm:"index"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists conversations across restarts.
type HistoryStore interface {
	CreateSession(ctx context.Context, title string) (*Session, error)
	UpdateSessionTitle(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, sessionID string, role Role, content string) error
	// GetSessions returns all sessions, most recently updated first.
	GetSessions(ctx context.Context) ([]Session, error)
	// GetMessages returns a session's messages in insertion order.
	GetMessages(ctx context.Context, sessionID string) ([]StoredMessage, error)
	DeleteSession(ctx context.Context, id string) error
}

// -- Speech --

// SpeechEngine turns text into audible speech.
type SpeechEngine interface {
	// Enqueue schedules a sentence for speaking. Returns immediately.
	Enqueue(text string)
	// Interrupt drops queued sentences and stops the current utterance.
	Interrupt()
	// Close stops the engine and releases its worker.
	Close() error
}

// -- Smart Home --

// DeviceController discovers and commands smart devices on the local network.
type DeviceController interface {
	Discover(ctx context.Context) ([]DeviceInfo, error)
	TurnOn(ctx context.Context, alias string) error
	TurnOff(ctx context.Context, alias string) error
	// SetBrightness sets a dimmable device's level, 0-100.
	SetBrightness(ctx context.Context, alias string, level int) error
	// SetColor sets a color bulb's hue, saturation and value.
	SetColor(ctx context.Context, alias string, color HSV) error
}

// -- Retrieval --

// Searcher performs web searches and returns scraped page content.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// BriefingProvider assembles the news briefing.
type BriefingProvider interface {
	// Briefing returns the current stories. When curate is true the stories
	// are selected and retitled by the model; otherwise they are raw.
	Briefing(ctx context.Context, curate bool) ([]Story, error)
}
