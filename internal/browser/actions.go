// File: internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// defaultWait is the pause for a wait action that carries no duration.
const defaultWait = time.Second

// Perform executes one validated action against the page. Invocations that
// have no browser effect (terminate, answer) return nil immediately; the
// caller owns their semantics.
func (c *Controller) Perform(ctx context.Context, action *schemas.ActionInvocation) error {
	c.mu.Lock()
	exec := c.exec
	c.mu.Unlock()
	if exec == nil {
		return ErrNotStarted
	}

	switch action.Name {
	case schemas.ActionMouseMove:
		x, y := c.pointTarget(action)
		return exec.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type: schemas.MouseMoved, X: x, Y: y, Button: schemas.ButtonNone,
		})

	case schemas.ActionLeftClick, schemas.ActionLeftClickDrag:
		// A drag carries only the destination coordinate, so it degrades
		// to a click there; the model recovers by issuing follow-up moves.
		x, y := c.pointTarget(action)
		return c.click(ctx, exec, x, y, schemas.ButtonLeft)

	case schemas.ActionRightClick:
		x, y := c.pointTarget(action)
		return c.click(ctx, exec, x, y, schemas.ButtonRight)

	case schemas.ActionMiddleClick:
		x, y := c.pointTarget(action)
		return c.click(ctx, exec, x, y, schemas.ButtonMiddle)

	case schemas.ActionDoubleClick:
		x, y := c.pointTarget(action)
		return c.doubleClick(ctx, exec, x, y)

	case schemas.ActionTypeText:
		return exec.TypeText(ctx, action.Text)

	case schemas.ActionKey:
		for _, key := range action.Keys {
			if err := exec.PressKey(ctx, normalizeKey(key)); err != nil {
				return err
			}
		}
		return nil

	case schemas.ActionScroll:
		// The model scrolls in screen terms: positive pixels move the view
		// up. Wheel deltas run the other way, so the sign flips.
		c.mu.Lock()
		x, y := c.lastX, c.lastY
		c.mu.Unlock()
		return exec.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type: schemas.MouseWheel, X: x, Y: y, Button: schemas.ButtonNone,
			DeltaY: -action.Pixels,
		})

	case schemas.ActionWait:
		d := defaultWait
		if action.Seconds > 0 {
			d = time.Duration(action.Seconds * float64(time.Second))
		}
		return exec.Sleep(ctx, d)

	case schemas.ActionTerminate, schemas.ActionAnswer:
		// Loop-level actions; nothing to do against the page.
		return nil
	}

	return fmt.Errorf("unsupported action %q", action.Name)
}

// pointTarget scales the action's grid coordinate to viewport pixels and
// records it as the cursor position for subsequent wheel events.
func (c *Controller) pointTarget(action *schemas.ActionInvocation) (float64, float64) {
	x, y := ScalePoint(action.Coordinate[0], action.Coordinate[1])
	c.mu.Lock()
	c.lastX, c.lastY = x, y
	c.mu.Unlock()
	return x, y
}

// click moves to the target and dispatches a press/release pair.
func (c *Controller) click(ctx context.Context, exec Executor, x, y float64, button schemas.MouseButton) error {
	events := []schemas.MouseEventData{
		{Type: schemas.MouseMoved, X: x, Y: y, Button: schemas.ButtonNone},
		{Type: schemas.MousePressed, X: x, Y: y, Button: button, ClickCount: 1},
		{Type: schemas.MouseReleased, X: x, Y: y, Button: button, ClickCount: 1},
	}
	for _, ev := range events {
		if err := exec.DispatchMouseEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// doubleClick dispatches the full native sequence: two press/release pairs
// with the click count rising to 2, which is what dblclick handlers expect.
func (c *Controller) doubleClick(ctx context.Context, exec Executor, x, y float64) error {
	events := []schemas.MouseEventData{
		{Type: schemas.MouseMoved, X: x, Y: y, Button: schemas.ButtonNone},
		{Type: schemas.MousePressed, X: x, Y: y, Button: schemas.ButtonLeft, ClickCount: 1},
		{Type: schemas.MouseReleased, X: x, Y: y, Button: schemas.ButtonLeft, ClickCount: 1},
		{Type: schemas.MousePressed, X: x, Y: y, Button: schemas.ButtonLeft, ClickCount: 2},
		{Type: schemas.MouseReleased, X: x, Y: y, Button: schemas.ButtonLeft, ClickCount: 2},
	}
	for _, ev := range events {
		if err := exec.DispatchMouseEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// normalizeKey maps model key names to DOM key values. Vision models trained
// on other automation stacks tend to emit "Return" for the enter key.
func normalizeKey(key string) string {
	if strings.EqualFold(key, "return") {
		return "Enter"
	}
	return key
}
