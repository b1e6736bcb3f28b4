package schemas_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// TestConstants verifies that all defined constants hold their expected string
// values. The action names and event types are spelled out in the model's
// system prompt and in the client protocol, so an accidental rename breaks
// both sides of the wire.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		constant interface{} // Use interface{} to handle various constant types
		expected string
	}{
		// Action names
		{"ActionKey", schemas.ActionKey, "key"},
		{"ActionTypeText", schemas.ActionTypeText, "type"},
		{"ActionMouseMove", schemas.ActionMouseMove, "mouse_move"},
		{"ActionLeftClick", schemas.ActionLeftClick, "left_click"},
		{"ActionLeftClickDrag", schemas.ActionLeftClickDrag, "left_click_drag"},
		{"ActionRightClick", schemas.ActionRightClick, "right_click"},
		{"ActionMiddleClick", schemas.ActionMiddleClick, "middle_click"},
		{"ActionDoubleClick", schemas.ActionDoubleClick, "double_click"},
		{"ActionScroll", schemas.ActionScroll, "scroll"},
		{"ActionWait", schemas.ActionWait, "wait"},
		{"ActionTerminate", schemas.ActionTerminate, "terminate"},
		{"ActionAnswer", schemas.ActionAnswer, "answer"},

		// Terminate statuses
		{"StatusSuccess", schemas.StatusSuccess, "success"},
		{"StatusFailure", schemas.StatusFailure, "failure"},

		// Conversation roles
		{"RoleSystem", schemas.RoleSystem, "system"},
		{"RoleUser", schemas.RoleUser, "user"},
		{"RoleAssistant", schemas.RoleAssistant, "assistant"},

		// Stream event types
		{"StreamThinking", schemas.StreamThinking, "thinking"},
		{"StreamAction", schemas.StreamAction, "action"},
		{"StreamError", schemas.StreamError, "error"},

		// Assistant event types
		{"EventStatus", schemas.EventStatus, "status"},
		{"EventThinkStart", schemas.EventThinkStart, "think_start"},
		{"EventThinkEnd", schemas.EventThinkEnd, "think_end"},
		{"EventThoughtChunk", schemas.EventThoughtChunk, "thought_chunk"},
		{"EventResponseChunk", schemas.EventResponseChunk, "response_chunk"},
		{"EventSimpleResponse", schemas.EventSimpleResponse, "simple_response"},
		{"EventScreenshot", schemas.EventScreenshot, "screenshot"},
		{"EventAgentUpdate", schemas.EventAgentUpdate, "agent_update"},
		{"EventError", schemas.EventError, "error"},
		{"EventDone", schemas.EventDone, "done"},

		// Mouse events
		{"MouseMoved", schemas.MouseMoved, "mouseMoved"},
		{"MousePressed", schemas.MousePressed, "mousePressed"},
		{"MouseReleased", schemas.MouseReleased, "mouseReleased"},
		{"MouseWheel", schemas.MouseWheel, "mouseWheel"},
		{"ButtonNone", schemas.ButtonNone, "none"},
		{"ButtonLeft", schemas.ButtonLeft, "left"},
		{"ButtonRight", schemas.ButtonRight, "right"},
		{"ButtonMiddle", schemas.ButtonMiddle, "middle"},

		// Device types
		{"DevicePlug", schemas.DevicePlug, "plug"},
		{"DeviceBulb", schemas.DeviceBulb, "bulb"},
		{"DeviceUnknown", schemas.DeviceUnknown, "unknown"},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var actual string
			if stringer, ok := tt.constant.(fmt.Stringer); ok {
				actual = stringer.String()
			} else {
				actual = fmt.Sprintf("%v", tt.constant)
			}
			assert.Equal(t, tt.expected, actual)
		})
	}
}
