package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/agent"
)

// -- Chat Runner Fake --

type fakeChatRunner struct {
	utterFn func(ctx context.Context, sessionID, text string) (string, string, error)

	mu     sync.Mutex
	stops  int
	resets int
}

func (f *fakeChatRunner) HandleUtterance(ctx context.Context, sessionID, text string) (string, string, error) {
	if f.utterFn == nil {
		return sessionID, "", nil
	}
	return f.utterFn(ctx, sessionID, text)
}

func (f *fakeChatRunner) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeChatRunner) NewConversation() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeChatRunner) counts() (stops, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops, f.resets
}

// -- Task Runner Fake --

type fakeTaskRunner struct {
	// block, when non-nil, parks RunTask until closed or the context ends.
	block chan struct{}
	// started, when non-nil, receives each instruction as its task begins.
	started chan string

	mu     sync.Mutex
	runs   []string
	stops  int
	state  agent.TaskState
	status schemas.TerminateStatus
}

func (f *fakeTaskRunner) RunTask(ctx context.Context, instruction string) (agent.TaskState, error) {
	f.mu.Lock()
	f.runs = append(f.runs, instruction)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- instruction
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	return agent.StateTerminated, nil
}

func (f *fakeTaskRunner) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeTaskRunner) State() agent.TaskState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "" {
		return agent.StateIdle
	}
	return f.state
}

func (f *fakeTaskRunner) TerminateStatus() schemas.TerminateStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTaskRunner) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// -- History Store Fake --

type fakeHistory struct {
	sessionsFn func(ctx context.Context) ([]schemas.Session, error)
	messagesFn func(ctx context.Context, sessionID string) ([]schemas.StoredMessage, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (f *fakeHistory) CreateSession(context.Context, string) (*schemas.Session, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeHistory) UpdateSessionTitle(context.Context, string, string) error { return nil }

func (f *fakeHistory) AddMessage(context.Context, string, schemas.Role, string) error { return nil }

func (f *fakeHistory) GetSessions(ctx context.Context) ([]schemas.Session, error) {
	if f.sessionsFn == nil {
		return nil, nil
	}
	return f.sessionsFn(ctx)
}

func (f *fakeHistory) GetMessages(ctx context.Context, sessionID string) ([]schemas.StoredMessage, error) {
	if f.messagesFn == nil {
		return nil, nil
	}
	return f.messagesFn(ctx, sessionID)
}

func (f *fakeHistory) DeleteSession(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id)
}

// -- Briefing Fake --

type fakeBriefing struct {
	fn func(ctx context.Context, curate bool) ([]schemas.Story, error)

	mu      sync.Mutex
	curates []bool
}

func (f *fakeBriefing) Briefing(ctx context.Context, curate bool) ([]schemas.Story, error) {
	f.mu.Lock()
	f.curates = append(f.curates, curate)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, curate)
}

func (f *fakeBriefing) curateCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.curates...)
}

// -- Searcher Fake --

type fakeSearcher struct {
	fn func(ctx context.Context, query string, maxResults int) ([]schemas.SearchResult, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]schemas.SearchResult, error) {
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, query, maxResults)
}

// -- Device Controller Fake --

type fakeDevices struct {
	discoverFn func(ctx context.Context) ([]schemas.DeviceInfo, error)

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

func (d *fakeDevices) Discover(ctx context.Context) ([]schemas.DeviceInfo, error) {
	if d.discoverFn == nil {
		return nil, nil
	}
	return d.discoverFn(ctx)
}

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
