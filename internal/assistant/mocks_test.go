package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/websearch"
)

// -- Chat Model Fake --

// fakeChat scripts the two model surfaces the assistant uses: Chat for the
// router and StreamChat for the responder. Streamed calls are recorded so
// tests can inspect the exact context window sent.
type fakeChat struct {
	chatFn   func(ctx context.Context, msgs []schemas.ChatMessage, opts schemas.GenerationOptions) (string, error)
	streamFn func(ctx context.Context, msgs []schemas.ChatMessage, opts schemas.GenerationOptions) (<-chan schemas.ChatChunk, error)

	mu         sync.Mutex
	routed     [][]schemas.ChatMessage
	streamed   [][]schemas.ChatMessage
	streamOpts []schemas.GenerationOptions
}

func (f *fakeChat) Chat(ctx context.Context, msgs []schemas.ChatMessage, opts schemas.GenerationOptions) (string, error) {
	f.mu.Lock()
	f.routed = append(f.routed, append([]schemas.ChatMessage(nil), msgs...))
	f.mu.Unlock()
	if f.chatFn == nil {
		return "", nil
	}
	return f.chatFn(ctx, msgs, opts)
}

func (f *fakeChat) StreamChat(ctx context.Context, msgs []schemas.ChatMessage, opts schemas.GenerationOptions) (<-chan schemas.ChatChunk, error) {
	f.mu.Lock()
	f.streamed = append(f.streamed, append([]schemas.ChatMessage(nil), msgs...))
	f.streamOpts = append(f.streamOpts, opts)
	f.mu.Unlock()
	if f.streamFn == nil {
		out := make(chan schemas.ChatChunk)
		close(out)
		return out, nil
	}
	return f.streamFn(ctx, msgs, opts)
}

func (f *fakeChat) Warmup(context.Context) error { return nil }

func (f *fakeChat) lastStreamed() []schemas.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streamed) == 0 {
		return nil
	}
	return f.streamed[len(f.streamed)-1]
}

func (f *fakeChat) lastOpts() schemas.GenerationOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streamOpts) == 0 {
		return schemas.GenerationOptions{}
	}
	return f.streamOpts[len(f.streamOpts)-1]
}

func (f *fakeChat) streamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streamed)
}

// routedTo scripts the router reply as a tool call for the given function.
func routedTo(function, argsJSON string) func(context.Context, []schemas.ChatMessage, schemas.GenerationOptions) (string, error) {
	reply := fmt.Sprintf(`<tool_call>{"name": %q, "arguments": %s}</tool_call>`, function, argsJSON)
	return func(context.Context, []schemas.ChatMessage, schemas.GenerationOptions) (string, error) {
		return reply, nil
	}
}

// streamOf replays the given chunks through a fresh channel, exiting early
// when the caller cancels.
func streamOf(chunks ...schemas.ChatChunk) func(context.Context, []schemas.ChatMessage, schemas.GenerationOptions) (<-chan schemas.ChatChunk, error) {
	return func(ctx context.Context, _ []schemas.ChatMessage, _ schemas.GenerationOptions) (<-chan schemas.ChatChunk, error) {
		out := make(chan schemas.ChatChunk)
		go func() {
			defer close(out)
			for _, chunk := range chunks {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}
}

// -- Event Sink Fake --

type recordingSink struct {
	mu     sync.Mutex
	events []schemas.AssistantEvent

	// onEvent, when set, runs synchronously after each publish. Used to
	// trigger Stop mid-stream.
	onEvent func(schemas.AssistantEvent)
}

func (s *recordingSink) Publish(event schemas.AssistantEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	hook := s.onEvent
	s.mu.Unlock()
	if hook != nil {
		hook(event)
	}
}

func (s *recordingSink) types() []schemas.AssistantEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.AssistantEventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

// messagesOf returns the Message field of every event of the given type,
// in publish order.
func (s *recordingSink) messagesOf(eventType schemas.AssistantEventType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		if ev.Type == eventType {
			out = append(out, ev.Message)
		}
	}
	return out
}

// -- Speech Engine Fake --

type recordingSpeech struct {
	mu         sync.Mutex
	spoken     []string
	interrupts int
}

func (s *recordingSpeech) Enqueue(text string) {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
}

func (s *recordingSpeech) Interrupt() {
	s.mu.Lock()
	s.interrupts++
	s.mu.Unlock()
}

func (s *recordingSpeech) Close() error { return nil }

func (s *recordingSpeech) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *recordingSpeech) interruptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupts
}

// -- Device Controller Fake --

// fakeDevices records commands as "action alias" strings and fails every
// call with err when set.
type fakeDevices struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDevices) record(call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, call)
	return nil
}

func (d *fakeDevices) Discover(context.Context) ([]schemas.DeviceInfo, error) { return nil, nil }

func (d *fakeDevices) TurnOn(_ context.Context, alias string) error {
	return d.record("on " + alias)
}

func (d *fakeDevices) TurnOff(_ context.Context, alias string) error {
	return d.record("off " + alias)
}

func (d *fakeDevices) SetBrightness(_ context.Context, alias string, level int) error {
	return d.record(fmt.Sprintf("brightness %s %d", alias, level))
}

func (d *fakeDevices) SetColor(_ context.Context, alias string, color schemas.HSV) error {
	return d.record(fmt.Sprintf("color %s %d,%d,%d", alias, color.Hue, color.Saturation, color.Value))
}

func (d *fakeDevices) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// -- History Store Fake --

type memStore struct {
	mu        sync.Mutex
	nextID    int
	sessions  map[string]schemas.Session
	messages  map[string][]schemas.StoredMessage
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]schemas.Session),
		messages: make(map[string][]schemas.StoredMessage),
	}
}

func (s *memStore) CreateSession(_ context.Context, title string) (*schemas.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	sess := schemas.Session{ID: fmt.Sprintf("session-%d", s.nextID), Title: title}
	s.sessions[sess.ID] = sess
	return &sess, nil
}

func (s *memStore) UpdateSessionTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("no session %q", id)
	}
	sess.Title = title
	s.sessions[id] = sess
	return nil
}

func (s *memStore) AddMessage(_ context.Context, sessionID string, role schemas.Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], schemas.StoredMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	return nil
}

func (s *memStore) GetSessions(context.Context) ([]schemas.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func (s *memStore) GetMessages(_ context.Context, sessionID string) ([]schemas.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schemas.StoredMessage(nil), s.messages[sessionID]...), nil
}

func (s *memStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *memStore) stored(sessionID string) []schemas.StoredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schemas.StoredMessage(nil), s.messages[sessionID]...)
}

// -- Search Fake --

type fakeSearch struct {
	fn func(ctx context.Context, query string, numResults int) ([]websearch.EnrichedResult, error)

	mu      sync.Mutex
	queries []string
}

func (f *fakeSearch) SearchAndScrape(ctx context.Context, query string, numResults int) ([]websearch.EnrichedResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, query, numResults)
}
