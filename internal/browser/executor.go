// File: internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// Executor is the raw input surface the action dispatcher drives. Keeping it
// behind an interface lets tests replay action sequences without a browser.
type Executor interface {
	// DispatchMouseEvent dispatches a single mouse event in viewport pixels.
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	// TypeText types a string into the focused element, rune by rune.
	TypeText(ctx context.Context, text string) error
	// PressKey presses and releases one named key, e.g. "Enter".
	PressKey(ctx context.Context, key string) error
	// Sleep pauses between input events, honoring cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}

// cdpExecutor implements Executor over the Chrome DevTools Protocol. It holds
// a reference to the owning session's RunActions method rather than the
// session itself, which keeps the dependency one-directional.
type cdpExecutor struct {
	logger         *zap.Logger
	runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error
}

var _ Executor = (*cdpExecutor)(nil)

// inputTimeout bounds a single dispatched input event. Input dispatch is
// near-instant when the page is healthy; a hang here means the tab is gone.
const inputTimeout = 10 * time.Second

func (e *cdpExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithClickCount(data.ClickCount)

	// Wheel delta only applies to mouseWheel events.
	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}

	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()

	err := e.runActionsFunc(opCtx, p)
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		e.logger.Debug("Mouse event dispatch timed out.",
			zap.String("type", string(data.Type)), zap.Duration("timeout", inputTimeout))
		return fmt.Errorf("mouse event %s timed out after %v: %w", data.Type, inputTimeout, opCtx.Err())
	}
	return err
}

func (e *cdpExecutor) TypeText(ctx context.Context, text string) error {
	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()

	err := e.runActionsFunc(opCtx, chromedp.KeyEvent(text))
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		e.logger.Debug("Typing timed out.", zap.Int("text_len", len(text)), zap.Duration("timeout", inputTimeout))
		return fmt.Errorf("typing timed out after %v: %w", inputTimeout, opCtx.Err())
	}
	return err
}

func (e *cdpExecutor) PressKey(ctx context.Context, key string) error {
	keyDown := input.DispatchKeyEvent(input.KeyDown).WithKey(key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).WithKey(key)

	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()

	if err := e.runActionsFunc(opCtx, keyDown, keyUp); err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			e.logger.Debug("Key press timed out.", zap.String("key", key), zap.Duration("timeout", inputTimeout))
			return fmt.Errorf("key press %q timed out after %v: %w", key, inputTimeout, opCtx.Err())
		}
		return fmt.Errorf("dispatching key %q: %w", key, err)
	}
	return nil
}

func (e *cdpExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return e.runActionsFunc(ctx, chromedp.Sleep(d))
}
