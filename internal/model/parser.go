package model

import (
	"regexp"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// toolCallPattern grabs the first JSON object wrapped in <tool_call> tags.
// (?s) lets the payload span lines; the lazy body stops at the first
// closing brace-tag pair so trailing prose or a second call is ignored.
var toolCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// toolCallEnvelope mirrors the documented wire form
// {"name": ..., "arguments": {...}}. Models sometimes emit the arguments
// object bare, so both fields are optional.
type toolCallEnvelope struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ParseAction extracts and validates the first computer_use invocation from
// a complete model response. It returns nil when the response carries no
// tool call, when the payload is not JSON, or when the arguments fail
// validation; callers treat all three the same way and re-prompt.
func ParseAction(response string, logger *zap.Logger) *schemas.ActionInvocation {
	match := toolCallPattern.FindStringSubmatch(response)
	if match == nil {
		return nil
	}

	raw := []byte(match[1])

	var envelope toolCallEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("Discarding unparseable tool call.", zap.Error(err))
		return nil
	}
	if len(envelope.Arguments) > 0 {
		raw = envelope.Arguments
	}

	var action schemas.ActionInvocation
	if err := json.Unmarshal(raw, &action); err != nil {
		logger.Warn("Discarding tool call with malformed arguments.", zap.Error(err))
		return nil
	}
	if err := action.Validate(); err != nil {
		logger.Warn("Discarding invalid action.",
			zap.String("action", string(action.Name)),
			zap.Error(err))
		return nil
	}

	return &action
}

// FormatToolCall renders an executed action back into the canonical
// transcript form, so the assistant turn replayed to the model next round
// matches the syntax it was asked to produce.
func FormatToolCall(action *schemas.ActionInvocation) string {
	args, err := json.Marshal(action)
	if err != nil {
		// A validated action always marshals; keep the transcript well
		// formed regardless.
		args = []byte(`{}`)
	}
	payload, err := json.Marshal(schemas.ToolCall{Name: schemas.ToolCallName, Arguments: args})
	if err != nil {
		return "<tool_call>\n{}\n</tool_call>"
	}
	return "<tool_call>\n" + string(payload) + "\n</tool_call>"
}
