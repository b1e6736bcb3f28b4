package assistant

import (
	"context"
	"errors"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/model"
)

// Function names the router can pick. Everything not matched by an action
// function falls through to passthrough chat.
const (
	functionPassthrough  = "passthrough"
	functionControlLight = "control_light"
	functionWebSearch    = "web_search"
	functionSetTimer     = "set_timer"
	functionCalendarAdd  = "create_calendar_event"
	functionCalendarRead = "read_calendar"
)

// routeDecision is the router's verdict for one utterance.
type routeDecision struct {
	Function string
	Params   map[string]any
	// Think hints a reasoning phase for passthrough turns.
	Think bool
}

var routeCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// route asks the router model to pick a function. Any failure, from
// transport to an unparseable reply, degrades to passthrough so the user
// always gets an answer.
func (a *Assistant) route(ctx context.Context, input string) routeDecision {
	fallback := routeDecision{Function: functionPassthrough}

	reply, err := a.chat.Chat(ctx, []schemas.ChatMessage{
		{Role: schemas.RoleSystem, Content: model.RouterPrompt},
		{Role: schemas.RoleUser, Content: input},
	}, schemas.GenerationOptions{})
	if err != nil {
		a.log.Warn("Router call failed, answering conversationally.", zap.Error(err))
		return fallback
	}

	decision, err := parseRoute(reply)
	if err != nil {
		a.log.Debug("Unroutable reply, answering conversationally.",
			zap.String("reply", reply), zap.Error(err))
		return fallback
	}
	a.log.Debug("Routed utterance.", zap.String("function", decision.Function))
	return decision
}

// parseRoute extracts the routed function from a model reply. The payload
// is the first <tool_call> block, or the whole reply when the model skipped
// the tags and answered with bare JSON.
func parseRoute(reply string) (routeDecision, error) {
	payload := ""
	if match := routeCallPattern.FindStringSubmatch(reply); match != nil {
		payload = match[1]
	} else if trimmed := strings.TrimSpace(reply); strings.HasPrefix(trimmed, "{") {
		payload = trimmed
	}
	if payload == "" {
		return routeDecision{}, errors.New("no tool call in reply")
	}

	var call struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		return routeDecision{}, err
	}
	if call.Name == "" {
		return routeDecision{}, errors.New("tool call without a function name")
	}

	decision := routeDecision{Function: call.Name, Params: call.Arguments}
	if call.Name == functionPassthrough {
		think, _ := call.Arguments["thinking"].(bool)
		decision.Think = think
	}
	return decision, nil
}

// paramString reads a string argument with a default, tolerating missing
// keys and non-string junk from the model.
func paramString(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// paramInt reads a numeric argument; JSON numbers arrive as float64.
func paramInt(params map[string]any, key string, fallback int) int {
	if v, ok := params[key].(float64); ok {
		return int(v)
	}
	return fallback
}
