package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/model"
)

// -- Mocks --

// scriptedModel plays back one event script per StreamTurn call and records
// the request payloads. When the scripts run out it terminates the task so a
// misconfigured test cannot loop forever.
type scriptedModel struct {
	mu       sync.Mutex
	calls    [][]schemas.ConversationTurn
	scripts  [][]schemas.StreamEvent
	startErr error
}

func (m *scriptedModel) StreamTurn(ctx context.Context, turns []schemas.ConversationTurn) (<-chan schemas.StreamEvent, error) {
	m.mu.Lock()
	if m.startErr != nil {
		err := m.startErr
		m.mu.Unlock()
		return nil, err
	}
	m.calls = append(m.calls, turns)
	var script []schemas.StreamEvent
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		m.scripts = m.scripts[1:]
	} else {
		script = []schemas.StreamEvent{terminateEvent(schemas.StatusSuccess)}
	}
	m.mu.Unlock()

	events := make(chan schemas.StreamEvent)
	go func() {
		defer close(events)
		for _, ev := range script {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *scriptedModel) call(i int) []schemas.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

// fakeController records performed actions. Screenshots are served from a
// queue; once drained, a fixed capture is returned.
type fakeController struct {
	mu             sync.Mutex
	started        bool
	stopped        bool
	screenshots    []string
	shotCalls      int
	screenshotHook func()
	performed      []schemas.ActionInvocation
	performHook    func(*schemas.ActionInvocation)
	performErr     error
	startErr       error
}

const defaultCapture = "ZmFrZS1qcGVn"

func (c *fakeController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started = true
	return nil
}

func (c *fakeController) Screenshot(ctx context.Context) (string, error) {
	if c.screenshotHook != nil {
		c.screenshotHook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shotCalls++
	if len(c.screenshots) > 0 {
		shot := c.screenshots[0]
		c.screenshots = c.screenshots[1:]
		return shot, nil
	}
	return defaultCapture, nil
}

func (c *fakeController) Perform(ctx context.Context, action *schemas.ActionInvocation) error {
	c.mu.Lock()
	c.performed = append(c.performed, *action)
	hook := c.performHook
	err := c.performErr
	c.mu.Unlock()
	if hook != nil {
		hook(action)
	}
	return err
}

func (c *fakeController) Navigate(ctx context.Context, rawURL string) error { return nil }

func (c *fakeController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func (c *fakeController) performedActions() []schemas.ActionInvocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schemas.ActionInvocation, len(c.performed))
	copy(out, c.performed)
	return out
}

// recordingSink captures every published event.
type recordingSink struct {
	mu     sync.Mutex
	events []schemas.AssistantEvent
}

func (s *recordingSink) Publish(event schemas.AssistantEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) ofType(eventType schemas.AssistantEventType) []schemas.AssistantEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schemas.AssistantEvent
	for _, ev := range s.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSink) updates() []string {
	var out []string
	for _, ev := range s.ofType(schemas.EventAgentUpdate) {
		out = append(out, ev.Message)
	}
	return out
}

func (s *recordingSink) hasUpdate(message string) bool {
	for _, line := range s.updates() {
		if line == message {
			return true
		}
	}
	return false
}

// -- Setup --

func newTestAgent(t *testing.T, scripts ...[]schemas.StreamEvent) (*Agent, *scriptedModel, *fakeController, *recordingSink) {
	t.Helper()
	scripted := &scriptedModel{scripts: scripts}
	controller := &fakeController{}
	sink := &recordingSink{}
	cfg := config.AgentConfig{
		SettleTime:          time.Millisecond,
		ScreenshotRetryWait: time.Millisecond,
	}
	a, err := New(cfg, scripted, controller, sink, zaptest.NewLogger(t))
	require.NoError(t, err)
	return a, scripted, controller, sink
}

func thinkingEvent(text string) schemas.StreamEvent {
	return schemas.StreamEvent{Type: schemas.StreamThinking, Text: text}
}

func actionEvent(action *schemas.ActionInvocation) schemas.StreamEvent {
	return schemas.StreamEvent{Type: schemas.StreamAction, Action: action}
}

func terminateEvent(status schemas.TerminateStatus) schemas.StreamEvent {
	return actionEvent(&schemas.ActionInvocation{Name: schemas.ActionTerminate, Status: status})
}

func clickAction(x, y float64) *schemas.ActionInvocation {
	return &schemas.ActionInvocation{Name: schemas.ActionLeftClick, Coordinate: []float64{x, y}}
}

// -- Tests --

func TestNewRequiresCollaborators(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.AgentConfig{}

	_, err := New(cfg, nil, &fakeController{}, &recordingSink{}, logger)
	assert.Error(t, err)

	_, err = New(cfg, &scriptedModel{}, nil, &recordingSink{}, logger)
	assert.Error(t, err)

	_, err = New(cfg, &scriptedModel{}, &fakeController{}, nil, logger)
	assert.Error(t, err)
}

func TestRunTaskClickThenTerminate(t *testing.T) {
	defer goleak.VerifyNone(t)

	click := clickAction(500, 500)
	a, scripted, controller, sink := newTestAgent(t,
		[]schemas.StreamEvent{thinkingEvent("I will click the link."), actionEvent(click)},
		[]schemas.StreamEvent{thinkingEvent("Done."), terminateEvent(schemas.StatusSuccess)},
	)

	state, err := a.RunTask(context.Background(), "Open the first result.")

	// -- Terminal state --
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, state)
	assert.Equal(t, StateTerminated, a.State())
	assert.Equal(t, schemas.StatusSuccess, a.TerminateStatus())

	// -- Device actions: terminate never reaches the browser --
	performed := controller.performedActions()
	require.Len(t, performed, 1)
	assert.Equal(t, schemas.ActionLeftClick, performed[0].Name)

	// -- Request payloads --
	require.Equal(t, 2, scripted.callCount())
	first := scripted.call(0)
	require.Len(t, first, 2)
	assert.Equal(t, schemas.RoleSystem, first[0].Role)
	assert.Equal(t, model.ComputerUsePrompt, first[0].Text)
	assert.Equal(t, []string{defaultCapture}, first[1].Images)

	second := scripted.call(1)
	require.Len(t, second, 4)
	assert.Equal(t, actionExecutedMessage, second[3].Text)
	assert.Equal(t, []string{defaultCapture}, second[3].Images)
	for _, turn := range second[:3] {
		assert.Empty(t, turn.Images)
	}

	// -- Transcript shape --
	turns := a.History()
	require.Len(t, turns, 5)
	assert.Equal(t, "I will click the link.\n"+model.FormatToolCall(click), turns[2].Text)
	assert.Equal(t, schemas.RoleUser, turns[3].Role)
	assert.Equal(t, actionExecutedMessage, turns[3].Text)
	assert.Equal(t, schemas.RoleAssistant, turns[4].Role)
	assert.Contains(t, turns[4].Text, `"action":"terminate"`)

	// -- Events --
	assert.Len(t, sink.ofType(schemas.EventScreenshot), 2)
	assert.Len(t, sink.ofType(schemas.EventDone), 1)
	assert.True(t, sink.hasUpdate("Model Thought: I will click the link."))
	assert.True(t, sink.hasUpdate("Task Terminated: success"))
	foundAction := false
	for _, line := range sink.updates() {
		if strings.HasPrefix(line, "Action: left_click ") {
			foundAction = true
		}
	}
	assert.True(t, foundAction, "expected an Action log line for the click")
}

func TestRunTaskRepromptsOnTextWithoutAction(t *testing.T) {
	a, scripted, _, sink := newTestAgent(t,
		[]schemas.StreamEvent{thinkingEvent("The page seems to still be loading.")},
	)

	state, err := a.RunTask(context.Background(), "Check the news.")

	require.NoError(t, err)
	assert.Equal(t, StateTerminated, state)
	require.Equal(t, 2, scripted.callCount())

	second := scripted.call(1)
	require.Len(t, second, 4)
	assert.Equal(t, schemas.RoleAssistant, second[2].Role)
	assert.Equal(t, "The page seems to still be loading.", second[2].Text)
	assert.Equal(t, schemas.RoleUser, second[3].Role)
	assert.Equal(t, requestToolCallMessage, second[3].Text)

	assert.True(t, sink.hasUpdate("Model Response: The page seems to still be loading."))
}

func TestRunTaskRepromptsOnSilence(t *testing.T) {
	a, scripted, _, sink := newTestAgent(t,
		[]schemas.StreamEvent{},
	)

	state, err := a.RunTask(context.Background(), "Check the news.")

	require.NoError(t, err)
	assert.Equal(t, StateTerminated, state)
	require.Equal(t, 2, scripted.callCount())

	// No assistant turn is recorded for a silent round, only the corrective
	// user turn.
	second := scripted.call(1)
	require.Len(t, second, 3)
	assert.Equal(t, schemas.RoleUser, second[2].Role)
	assert.Equal(t, invalidToolCallMessage, second[2].Text)

	assert.True(t, sink.hasUpdate("No action parsed and no text response."))
}

func TestRunTaskExecutionErrorContinues(t *testing.T) {
	a, scripted, controller, sink := newTestAgent(t,
		[]schemas.StreamEvent{actionEvent(clickAction(100, 100))},
		[]schemas.StreamEvent{terminateEvent(schemas.StatusFailure)},
	)
	controller.performErr = errors.New("element vanished")

	state, err := a.RunTask(context.Background(), "Click it.")

	require.NoError(t, err)
	assert.Equal(t, StateTerminated, state)
	assert.Equal(t, schemas.StatusFailure, a.TerminateStatus())
	assert.Equal(t, 2, scripted.callCount())
	assert.True(t, sink.hasUpdate("Execution Error: element vanished"))

	// The loop still told the model the action ran.
	second := scripted.call(1)
	assert.Equal(t, actionExecutedMessage, second[len(second)-1].Text)
}

func TestRunTaskStreamErrorFails(t *testing.T) {
	a, _, _, sink := newTestAgent(t,
		[]schemas.StreamEvent{
			thinkingEvent("Let me look"),
			{Type: schemas.StreamError, Text: "connection reset"},
		},
	)

	state, err := a.RunTask(context.Background(), "Check the news.")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, StateFailed, state)

	errs := sink.ofType(schemas.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "connection reset", errs[0].Message)
	assert.Len(t, sink.ofType(schemas.EventDone), 1)
}

func TestRunTaskModelStartErrorFails(t *testing.T) {
	a, scripted, _, _ := newTestAgent(t)
	scripted.startErr = errors.New("connection refused")

	state, err := a.RunTask(context.Background(), "Check the news.")

	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
}

func TestRunTaskBrowserStartErrorFails(t *testing.T) {
	a, scripted, controller, sink := newTestAgent(t)
	controller.startErr = errors.New("chrome not found")

	state, err := a.RunTask(context.Background(), "Check the news.")

	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, 0, scripted.callCount())
	require.Len(t, sink.ofType(schemas.EventError), 1)
	assert.Len(t, sink.ofType(schemas.EventDone), 1)
}

func TestRunTaskRetriesEmptyScreenshot(t *testing.T) {
	a, scripted, controller, _ := newTestAgent(t,
		[]schemas.StreamEvent{terminateEvent(schemas.StatusSuccess)},
	)
	controller.screenshots = []string{"", "", defaultCapture}

	state, err := a.RunTask(context.Background(), "Wait for the page.")

	require.NoError(t, err)
	assert.Equal(t, StateTerminated, state)
	assert.Equal(t, 1, scripted.callCount())
	assert.GreaterOrEqual(t, controller.shotCalls, 3)
}

func TestRunTaskHonorsStepLimit(t *testing.T) {
	scripted := &scriptedModel{scripts: [][]schemas.StreamEvent{
		{actionEvent(clickAction(10, 10))},
		{actionEvent(clickAction(20, 20))},
		{actionEvent(clickAction(30, 30))},
	}}
	controller := &fakeController{}
	sink := &recordingSink{}
	cfg := config.AgentConfig{
		SettleTime:          time.Millisecond,
		ScreenshotRetryWait: time.Millisecond,
		MaxSteps:            2,
	}
	a, err := New(cfg, scripted, controller, sink, zaptest.NewLogger(t))
	require.NoError(t, err)

	state, err := a.RunTask(context.Background(), "Keep clicking.")

	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
	assert.Equal(t, 2, scripted.callCount())
	assert.True(t, sink.hasUpdate("Step limit reached."))
}

func TestRunTaskLongReasoningSkipsThoughtLog(t *testing.T) {
	longThought := strings.Repeat("think ", 100) // well past the log limit
	a, _, _, sink := newTestAgent(t,
		[]schemas.StreamEvent{thinkingEvent(longThought), terminateEvent(schemas.StatusSuccess)},
	)

	_, err := a.RunTask(context.Background(), "Do it.")
	require.NoError(t, err)

	for _, line := range sink.updates() {
		assert.False(t, strings.HasPrefix(line, "Model Thought:"),
			"oversized reasoning should not be echoed, got %q", line)
	}
}

func TestRunTaskAnswerSurfacedAndExecuted(t *testing.T) {
	answer := &schemas.ActionInvocation{Name: schemas.ActionAnswer, Text: "It is 21 degrees."}
	a, _, controller, sink := newTestAgent(t,
		[]schemas.StreamEvent{actionEvent(answer)},
		[]schemas.StreamEvent{terminateEvent(schemas.StatusSuccess)},
	)

	state, err := a.RunTask(context.Background(), "What is the temperature?")

	require.NoError(t, err)
	assert.Equal(t, StateTerminated, state)

	responses := sink.ofType(schemas.EventSimpleResponse)
	require.Len(t, responses, 1)
	assert.Equal(t, "It is 21 degrees.", responses[0].Message)

	// answer flows through Perform as a device no-op.
	performed := controller.performedActions()
	require.Len(t, performed, 1)
	assert.Equal(t, schemas.ActionAnswer, performed[0].Name)
}

func TestStopEndsTaskBetweenCycles(t *testing.T) {
	a, scripted, controller, _ := newTestAgent(t,
		[]schemas.StreamEvent{actionEvent(clickAction(50, 50))},
	)
	controller.performHook = func(*schemas.ActionInvocation) { a.Stop() }

	state, err := a.RunTask(context.Background(), "Click around.")

	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
	assert.Equal(t, 1, scripted.callCount())
}

func TestRunTaskRejectsConcurrentStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, _, controller, _ := newTestAgent(t,
		[]schemas.StreamEvent{actionEvent(clickAction(50, 50))},
	)

	release := make(chan struct{})
	var once sync.Once
	controller.screenshotHook = func() {
		once.Do(func() { <-release })
	}

	type result struct {
		state TaskState
		err   error
	}
	done := make(chan result, 1)
	go func() {
		state, err := a.RunTask(context.Background(), "First task.")
		done <- result{state, err}
	}()

	require.Eventually(t, func() bool { return a.State() == StateRunning },
		2*time.Second, 5*time.Millisecond)

	_, err := a.RunTask(context.Background(), "Second task.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	a.Stop()
	close(release)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, StateStopped, r.state)
	case <-time.After(5 * time.Second):
		t.Fatal("first task did not finish")
	}
}

func TestRunTaskContextCancellation(t *testing.T) {
	a, _, _, _ := newTestAgent(t,
		[]schemas.StreamEvent{actionEvent(clickAction(50, 50))},
		[]schemas.StreamEvent{actionEvent(clickAction(60, 60))},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := a.RunTask(ctx, "Doomed task.")
	require.Error(t, err)
	assert.Equal(t, StateStopped, state)
}

func TestCloseReleasesBrowser(t *testing.T) {
	a, _, controller, _ := newTestAgent(t)
	require.NoError(t, a.Close())
	assert.True(t, controller.stopped)
}

func TestRunTaskTranscriptRoundTrip(t *testing.T) {
	// The assistant turn written to history must itself parse back to the
	// same action, otherwise the transcript drifts from the output contract.
	click := clickAction(123, 456)
	a, _, _, _ := newTestAgent(t,
		[]schemas.StreamEvent{thinkingEvent("clicking"), actionEvent(click)},
		[]schemas.StreamEvent{terminateEvent(schemas.StatusSuccess)},
	)

	_, err := a.RunTask(context.Background(), "Click the thing.")
	require.NoError(t, err)

	turns := a.History()
	require.GreaterOrEqual(t, len(turns), 3)
	parsed := model.ParseAction(turns[2].Text, zaptest.NewLogger(t))
	require.NotNil(t, parsed)
	assert.Equal(t, click, parsed)
}

func TestRunTaskStartsBrowserSession(t *testing.T) {
	a, _, controller, _ := newTestAgent(t,
		[]schemas.StreamEvent{terminateEvent(schemas.StatusSuccess)},
	)

	_, err := a.RunTask(context.Background(), "Open the dashboard.")
	require.NoError(t, err)
	assert.True(t, controller.started)
	assert.False(t, controller.stopped, "browser stays open for the user after the task")
}
