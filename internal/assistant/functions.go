package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// functionResult is what an action function hands back: a short template
// message for the interface, and success for the log.
type functionResult struct {
	message string
	success bool
}

// speechUnsafe matches everything the synthesizer should not try to
// pronounce: emoji, markdown markers, stray symbols.
var speechUnsafe = regexp.MustCompile(`[^\w\s.,!?-]`)

func sanitizeForSpeech(text string) string {
	return strings.TrimSpace(speechUnsafe.ReplaceAllString(text, ""))
}

// performFunction executes a routed action function and returns its
// template message. Light control touches real devices; timer and calendar
// functions acknowledge with their templates only.
func (a *Assistant) performFunction(ctx context.Context, decision routeDecision) functionResult {
	switch decision.Function {
	case functionControlLight:
		return a.controlLight(ctx, decision.Params)
	case functionSetTimer:
		duration := paramString(decision.Params, "duration", "")
		label := paramString(decision.Params, "label", "Timer")
		message := "⏱️ Timer set for " + duration
		if label != "" {
			message += " (" + label + ")"
		}
		return functionResult{message: message, success: true}
	case functionCalendarAdd:
		title := paramString(decision.Params, "title", "Event")
		date := paramString(decision.Params, "date", "")
		when := paramString(decision.Params, "time", "")
		message := fmt.Sprintf("📅 Created event: %s on %s", title, date)
		if when != "" {
			message += " at " + when
		}
		return functionResult{message: message, success: true}
	case functionCalendarRead:
		date := paramString(decision.Params, "date", "today")
		return functionResult{message: "📆 Checking calendar for " + date + "...", success: true}
	default:
		return functionResult{message: "Unknown function: " + decision.Function}
	}
}

// controlLight drives the smart-home controller. The reply keeps the
// original template on success; failures say what went wrong so the user
// is not told a light changed when it did not.
func (a *Assistant) controlLight(ctx context.Context, params map[string]any) functionResult {
	action := paramString(params, "action", "toggle")
	room := paramString(params, "room", "room")

	if a.devices == nil {
		return functionResult{message: "No smart home controller is configured."}
	}

	var (
		err     error
		message string
	)
	switch action {
	case "on":
		err = a.devices.TurnOn(ctx, room)
		message = fmt.Sprintf("💡 Turned on the %s lights.", room)
	case "off":
		err = a.devices.TurnOff(ctx, room)
		message = fmt.Sprintf("💡 Turned off the %s lights.", room)
	case "dim":
		err = a.devices.SetBrightness(ctx, room, paramInt(params, "brightness", 30))
		message = fmt.Sprintf("💡 Dimmed the %s lights.", room)
	default:
		return functionResult{message: fmt.Sprintf("💡 %s the %s lights.", capitalize(action), room)}
	}

	if err != nil {
		a.log.Warn("Light command failed.",
			zap.String("action", action), zap.String("room", room), zap.Error(err))
		return functionResult{message: fmt.Sprintf("Could not reach the %s lights: %v.", room, err)}
	}
	return functionResult{message: message, success: true}
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
