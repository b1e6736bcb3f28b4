package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/model"
)

// -- Test Cases: Reply Parsing --

func TestParseRouteToolCallEnvelope(t *testing.T) {
	reply := `<tool_call>
{"name": "web_search", "arguments": {"query": "weather in berlin"}}
</tool_call>`

	decision, err := parseRoute(reply)
	require.NoError(t, err)
	assert.Equal(t, "web_search", decision.Function)
	assert.Equal(t, "weather in berlin", decision.Params["query"])
	assert.False(t, decision.Think)
}

func TestParseRouteBareJSONReply(t *testing.T) {
	decision, err := parseRoute(`{"name": "set_timer", "arguments": {"duration": "5 minutes"}}`)
	require.NoError(t, err)
	assert.Equal(t, "set_timer", decision.Function)
	assert.Equal(t, "5 minutes", decision.Params["duration"])
}

func TestParseRoutePassthroughThinking(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		think bool
	}{
		{
			name:  "thinking requested",
			reply: `<tool_call>{"name": "passthrough", "arguments": {"thinking": true}}</tool_call>`,
			think: true,
		},
		{
			name:  "thinking declined",
			reply: `<tool_call>{"name": "passthrough", "arguments": {"thinking": false}}</tool_call>`,
			think: false,
		},
		{
			name:  "no arguments",
			reply: `<tool_call>{"name": "passthrough"}</tool_call>`,
			think: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := parseRoute(tc.reply)
			require.NoError(t, err)
			assert.Equal(t, functionPassthrough, decision.Function)
			assert.Equal(t, tc.think, decision.Think)
		})
	}
}

func TestParseRouteRejectsPlainText(t *testing.T) {
	_, err := parseRoute("Sure, turning on the lights now!")
	require.Error(t, err)
}

func TestParseRouteRejectsMissingName(t *testing.T) {
	_, err := parseRoute(`<tool_call>{"arguments": {"query": "x"}}</tool_call>`)
	require.Error(t, err)
}

func TestParseRouteRejectsMalformedJSON(t *testing.T) {
	_, err := parseRoute(`<tool_call>{"name": }</tool_call>`)
	require.Error(t, err)
}

// -- Test Cases: Routing --

func TestRouteSendsRouterPrompt(t *testing.T) {
	f := newFixture(t, config.AssistantConfig{})
	f.chat.chatFn = routedTo("read_calendar", `{"date": "tomorrow"}`)

	decision := f.assistant.route(context.Background(), "what's on tomorrow?")
	assert.Equal(t, functionCalendarRead, decision.Function)

	require.Len(t, f.chat.routed, 1)
	msgs := f.chat.routed[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schemas.RoleSystem, msgs[0].Role)
	assert.Equal(t, model.RouterPrompt, msgs[0].Content)
	assert.Equal(t, schemas.RoleUser, msgs[1].Role)
	assert.Equal(t, "what's on tomorrow?", msgs[1].Content)
}

func TestRouteFallsBackOnModelError(t *testing.T) {
	f := newFixture(t, config.AssistantConfig{})
	f.chat.chatFn = func(context.Context, []schemas.ChatMessage, schemas.GenerationOptions) (string, error) {
		return "", errors.New("connection refused")
	}

	decision := f.assistant.route(context.Background(), "hello")
	assert.Equal(t, functionPassthrough, decision.Function)
	assert.False(t, decision.Think)
}

func TestRouteFallsBackOnUnroutableReply(t *testing.T) {
	f := newFixture(t, config.AssistantConfig{})
	f.chat.chatFn = func(context.Context, []schemas.ChatMessage, schemas.GenerationOptions) (string, error) {
		return "I am not sure what you mean.", nil
	}

	decision := f.assistant.route(context.Background(), "mumble")
	assert.Equal(t, functionPassthrough, decision.Function)
}

// -- Test Cases: Parameter Helpers --

func TestParamStringTrimsAndDefaults(t *testing.T) {
	params := map[string]any{
		"room":  "  kitchen  ",
		"blank": "   ",
		"count": 3.0,
	}
	assert.Equal(t, "kitchen", paramString(params, "room", "room"))
	assert.Equal(t, "room", paramString(params, "blank", "room"))
	assert.Equal(t, "room", paramString(params, "count", "room"))
	assert.Equal(t, "room", paramString(params, "missing", "room"))
	assert.Equal(t, "room", paramString(nil, "room", "room"))
}

func TestParamIntReadsJSONNumbers(t *testing.T) {
	params := map[string]any{
		"brightness": 42.0,
		"label":      "tea",
	}
	assert.Equal(t, 42, paramInt(params, "brightness", 30))
	assert.Equal(t, 30, paramInt(params, "label", 30))
	assert.Equal(t, 30, paramInt(params, "missing", 30))
	assert.Equal(t, 30, paramInt(nil, "brightness", 30))
}
