package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/model"
)

// TaskState identifies where the agent is in its lifecycle.
type TaskState string

const (
	StateIdle       TaskState = "idle"
	StateRunning    TaskState = "running"
	StateTerminated TaskState = "terminated" // The model reported completion.
	StateFailed     TaskState = "failed"     // Model or transport failure.
	StateStopped    TaskState = "stopped"    // External stop, step limit, or cancellation.
)

// Corrective turns injected when the model does not produce a usable call.
const (
	actionExecutedMessage  = "Action executed. Here is the new screen."
	requestToolCallMessage = "Please output a valid <tool_call> for the next action."
	invalidToolCallMessage = "I did not see a valid tool call. Please output a computer_use action."
)

// thoughtLogLimit caps how long a reasoning trace may be and still be echoed
// as a "Model Thought" log line, in runes.
const thoughtLogLimit = 500

// Agent runs the perception-action loop: capture the screen, ask the vision
// model for the next action, execute it, and feed the result back as the next
// observation. One task at a time; a single goroutine owns the loop, the
// history and the browser session for the task's duration.
type Agent struct {
	cfg        config.AgentConfig
	model      schemas.AgentModel
	controller schemas.BrowserController
	sink       schemas.EventSink
	logger     *zap.Logger

	// running is the cooperative stop flag, polled between cycles. Stop never
	// interrupts a model stream mid-turn.
	running atomic.Bool

	mu      sync.Mutex
	state   TaskState
	status  schemas.TerminateStatus
	history *History
}

// New wires an agent from its collaborators.
func New(cfg config.AgentConfig, agentModel schemas.AgentModel, controller schemas.BrowserController, sink schemas.EventSink, logger *zap.Logger) (*Agent, error) {
	if agentModel == nil {
		return nil, fmt.Errorf("agent model must not be nil")
	}
	if controller == nil {
		return nil, fmt.Errorf("browser controller must not be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("event sink must not be nil")
	}
	return &Agent{
		cfg:        cfg,
		model:      agentModel,
		controller: controller,
		sink:       sink,
		logger:     logger.Named("Agent"),
		state:      StateIdle,
	}, nil
}

// RunTask drives one browser task to a terminal state and returns it. The
// browser session is started on entry and intentionally left open on exit so
// the user can see the final page; Close releases it.
func (a *Agent) RunTask(ctx context.Context, instruction string) (TaskState, error) {
	if !a.running.CompareAndSwap(false, true) {
		return a.State(), fmt.Errorf("a task is already running")
	}
	defer func() {
		a.running.Store(false)
		// Exactly one finished notification per task.
		a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventDone})
	}()

	a.setState(StateRunning, "")
	a.logger.Info("Agent is starting task.", zap.String("instruction", instruction))

	// 1. Bring up the browser session.
	if err := a.controller.Start(ctx); err != nil {
		a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventError, Message: err.Error()})
		a.setState(StateFailed, "")
		return StateFailed, fmt.Errorf("failed to start browser session: %w", err)
	}

	// 2. Seed the transcript: system prompt exactly once and first, then the
	// user's instruction.
	history := NewHistory()
	history.AppendSystem(model.ComputerUsePrompt)
	history.AppendUser(instruction)
	a.mu.Lock()
	a.history = history
	a.mu.Unlock()

	// 3. Run the loop to a terminal state.
	state, err := a.runLoop(ctx, history)
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.logger.Info("Task finished.", zap.String("state", string(state)))
	return state, err
}

// Stop requests a cooperative stop. The loop observes it between cycles, so
// an in-flight model turn still completes first.
func (a *Agent) Stop() {
	a.running.Store(false)
}

// State returns the lifecycle state of the current or most recent task.
func (a *Agent) State() TaskState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// TerminateStatus returns the status the model reported with its terminate
// action. Empty unless State is StateTerminated.
func (a *Agent) TerminateStatus() schemas.TerminateStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// History returns a copy of the current task transcript.
func (a *Agent) History() []schemas.ConversationTurn {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.history == nil {
		return nil
	}
	return a.history.Turns()
}

// Close releases the browser session.
func (a *Agent) Close() error {
	return a.controller.Stop()
}

func (a *Agent) runLoop(ctx context.Context, history *History) (TaskState, error) {
	steps := 0
	for a.running.Load() {
		if ctx.Err() != nil {
			return StateStopped, ctx.Err()
		}
		if a.cfg.MaxSteps > 0 && steps >= a.cfg.MaxSteps {
			a.update("Step limit reached.")
			return StateStopped, nil
		}

		// Observe. An empty capture means the page was not ready; retry until
		// it is or the task is stopped.
		shot, err := a.controller.Screenshot(ctx)
		if err != nil {
			a.logger.Warn("Screenshot failed, retrying.", zap.Error(err))
			shot = ""
		}
		if shot == "" {
			a.sleep(ctx, a.cfg.ScreenshotRetryWait)
			continue
		}
		a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventScreenshot, Data: shot})
		steps++

		// Ask the model, forwarding reasoning as it streams.
		events, err := a.model.StreamTurn(ctx, history.RequestTurns(shot))
		if err != nil {
			a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventError, Message: err.Error()})
			return StateFailed, fmt.Errorf("failed to start model turn: %w", err)
		}

		var action *schemas.ActionInvocation
		var reasoning strings.Builder
		var streamErr string
		for ev := range events {
			switch ev.Type {
			case schemas.StreamThinking:
				a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventThoughtChunk, Message: ev.Text})
				reasoning.WriteString(ev.Text)
			case schemas.StreamAction:
				action = ev.Action
			case schemas.StreamError:
				streamErr = ev.Text
			}
		}
		if streamErr != "" {
			a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventError, Message: streamErr})
			return StateFailed, fmt.Errorf("model stream failed: %s", streamErr)
		}
		responseText := reasoning.String()

		// No usable call: correct the model and go around again.
		if action == nil {
			if trimmed := strings.TrimSpace(responseText); trimmed != "" {
				a.update("Model Response: " + trimmed)
				history.AppendAssistant(responseText)
				history.AppendUser(requestToolCallMessage)
			} else {
				a.update("No action parsed and no text response.")
				history.AppendUser(invalidToolCallMessage)
			}
			continue
		}

		// Record the assistant turn the way the model was taught to phrase
		// it, so the transcript it sees next round matches its own output
		// contract.
		if responseText != "" && utf8.RuneCountInString(responseText) < thoughtLogLimit {
			thought := strings.TrimSpace(strings.SplitN(responseText, "<tool_call>", 2)[0])
			a.update("Model Thought: " + thought)
		}
		args, _ := json.Marshal(action)
		a.update(fmt.Sprintf("Action: %s %s", action.Name, args))
		history.AppendAssistant(responseText + "\n" + model.FormatToolCall(action))

		if action.Name == schemas.ActionTerminate {
			a.update("Task Terminated: " + string(action.Status))
			a.mu.Lock()
			a.status = action.Status
			a.mu.Unlock()
			a.running.Store(false)
			return StateTerminated, nil
		}
		if action.Name == schemas.ActionAnswer {
			a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventSimpleResponse, Message: action.Text})
		}

		// Act. A failed action is reported and the task continues; the model
		// sees the unchanged screen and can recover on its own.
		if err := a.controller.Perform(ctx, action); err != nil {
			a.update(fmt.Sprintf("Execution Error: %v", err))
		}

		history.AppendUser(actionExecutedMessage)
		a.sleep(ctx, a.cfg.SettleTime)
	}
	return StateStopped, nil
}

// update publishes one line of agent progress.
func (a *Agent) update(line string) {
	a.logger.Info(line)
	a.sink.Publish(schemas.AssistantEvent{Type: schemas.EventAgentUpdate, Message: line})
}

func (a *Agent) setState(state TaskState, status schemas.TerminateStatus) {
	a.mu.Lock()
	a.state = state
	a.status = status
	a.mu.Unlock()
}

func (a *Agent) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
