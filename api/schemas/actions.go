package schemas

import (
	"encoding/json"
	"fmt"
)

// -- Action Protocol Schemas --

// ActionName identifies one operation in the computer-use vocabulary the
// model is prompted with.
type ActionName string

const (
	ActionKey           ActionName = "key"             // Press the listed keys in order.
	ActionTypeText      ActionName = "type"            // Type a string on the keyboard.
	ActionMouseMove     ActionName = "mouse_move"      // Move the cursor to a grid coordinate.
	ActionLeftClick     ActionName = "left_click"      // Left click at a grid coordinate.
	ActionLeftClickDrag ActionName = "left_click_drag" // Drag to a grid coordinate (degraded to a click).
	ActionRightClick    ActionName = "right_click"     // Right click at a grid coordinate.
	ActionMiddleClick   ActionName = "middle_click"    // Middle click at a grid coordinate.
	ActionDoubleClick   ActionName = "double_click"    // Double left click at a grid coordinate.
	ActionScroll        ActionName = "scroll"          // Scroll the wheel; positive pixels scroll up.
	ActionWait          ActionName = "wait"            // Pause the loop for a number of seconds.
	ActionTerminate     ActionName = "terminate"       // End the task and report a status.
	ActionAnswer        ActionName = "answer"          // Answer a question with text.
)

// TerminateStatus is the completion status carried by a terminate action.
type TerminateStatus string

const (
	StatusSuccess TerminateStatus = "success"
	StatusFailure TerminateStatus = "failure"
)

// KeyList accepts either a single key name or an ordered array of key names
// on the wire; models emit both shapes.
type KeyList []string

// UnmarshalJSON implements the string-or-array decoding for key arguments.
func (k *KeyList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*k = KeyList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("keys must be a string or an array of strings: %w", err)
	}
	*k = KeyList(many)
	return nil
}

// ActionInvocation is one structured action extracted from a model turn.
// Parameters are typed fields rather than a loose map; validation happens at
// the parse boundary so the executor only ever sees well-formed invocations.
type ActionInvocation struct {
	// Name is the action to perform.
	Name ActionName `json:"action"`
	// Coordinate is an (x, y) pair in the logical grid. Required by the
	// pointer actions.
	Coordinate []float64 `json:"coordinate,omitempty"`
	// Text is the payload for type and answer actions.
	Text string `json:"text,omitempty"`
	// Keys lists key names pressed in order for the key action.
	Keys KeyList `json:"keys,omitempty"`
	// Pixels is the signed scroll amount. Positive scrolls up.
	Pixels float64 `json:"pixels,omitempty"`
	// Seconds is the wait duration. Zero means the default settle time.
	Seconds float64 `json:"time,omitempty"`
	// Status is the completion status for terminate.
	Status TerminateStatus `json:"status,omitempty"`
}

// RequiresCoordinate reports whether this action name needs a grid coordinate.
func (a ActionName) RequiresCoordinate() bool {
	switch a {
	case ActionMouseMove, ActionLeftClick, ActionLeftClickDrag, ActionRightClick, ActionMiddleClick, ActionDoubleClick:
		return true
	}
	return false
}

// Validate checks the invocation's parameters against the per-action schema.
// A failed validation means the invocation is malformed, which callers treat
// as a no-op rather than an error.
func (a *ActionInvocation) Validate() error {
	switch a.Name {
	case ActionKey:
		if len(a.Keys) == 0 {
			return fmt.Errorf("action %q requires keys", a.Name)
		}
	case ActionTypeText, ActionAnswer:
		if a.Text == "" {
			return fmt.Errorf("action %q requires text", a.Name)
		}
	case ActionScroll:
		if a.Pixels == 0 {
			return fmt.Errorf("action %q requires a non-zero pixels value", a.Name)
		}
	case ActionTerminate:
		if a.Status != StatusSuccess && a.Status != StatusFailure {
			return fmt.Errorf("action %q requires status success or failure, got %q", a.Name, a.Status)
		}
	case ActionWait:
		// Seconds is optional; zero falls back to the default settle time.
	case ActionMouseMove, ActionLeftClick, ActionLeftClickDrag, ActionRightClick, ActionMiddleClick, ActionDoubleClick:
		if len(a.Coordinate) != 2 {
			return fmt.Errorf("action %q requires a [x, y] coordinate", a.Name)
		}
	default:
		return fmt.Errorf("unknown action %q", a.Name)
	}
	return nil
}

// ToolCallName is the single function name the model is taught to call.
const ToolCallName = "computer_use"

// ToolCall is the wire wrapper the model emits inside the tool-call tags:
// {"name": "computer_use", "arguments": {...}}. Some models omit the wrapper
// and emit the arguments object directly; the parser accepts both.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
