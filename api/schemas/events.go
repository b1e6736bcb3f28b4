package schemas

// -- Event Schemas --

// StreamEventType discriminates events on a model response stream.
type StreamEventType string

const (
	// StreamThinking carries a fragment of the model's reasoning text,
	// surfaced incrementally as it arrives.
	StreamThinking StreamEventType = "thinking"
	// StreamAction is the terminal event of a turn that produced a
	// parseable action.
	StreamAction StreamEventType = "action"
	// StreamError reports a transport or decode failure. The stream ends
	// after an error.
	StreamError StreamEventType = "error"
)

// StreamEvent is one event yielded while a model response streams in.
// A turn is a sequence of zero or more thinking events followed by at most
// one action event; a stream that closes without an action means the turn
// produced no parseable tool call.
type StreamEvent struct {
	Type   StreamEventType   `json:"type"`
	Text   string            `json:"text,omitempty"`
	Action *ActionInvocation `json:"action,omitempty"`
}

// AssistantEventType discriminates events published to interface clients.
type AssistantEventType string

const (
	// EventStatus is a short progress note ("Thinking...", "Searching...").
	EventStatus AssistantEventType = "status"
	// EventThinkStart and EventThinkEnd bracket a reasoning phase.
	EventThinkStart AssistantEventType = "think_start"
	EventThinkEnd   AssistantEventType = "think_end"
	// EventThoughtChunk streams reasoning text while a phase is open.
	EventThoughtChunk AssistantEventType = "thought_chunk"
	// EventResponseChunk streams answer text.
	EventResponseChunk AssistantEventType = "response_chunk"
	// EventSimpleResponse delivers a complete short answer in one piece.
	EventSimpleResponse AssistantEventType = "simple_response"
	// EventScreenshot carries a base64 JPEG of the agent's current view.
	EventScreenshot AssistantEventType = "screenshot"
	// EventAgentUpdate carries a line of agent progress text.
	EventAgentUpdate AssistantEventType = "agent_update"
	// EventError reports a failure to the client.
	EventError AssistantEventType = "error"
	// EventDone marks the end of one request/response exchange.
	EventDone AssistantEventType = "done"
)

// AssistantEvent is one message on the interface event stream. Message
// carries human-readable text; Data carries payloads such as screenshot
// bytes in base64.
type AssistantEvent struct {
	Type    AssistantEventType `json:"type"`
	Message string             `json:"message,omitempty"`
	Data    string             `json:"data,omitempty"`
}
