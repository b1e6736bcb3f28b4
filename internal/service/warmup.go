// File: internal/service/warmup.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// warmupTimeout bounds the preload request. A cold model server may need to
// page several gigabytes of weights, so the window is generous.
const warmupTimeout = 2 * time.Minute

// Warmup preloads the chat model so the first real request does not stall,
// publishing progress to the sink on the way. Meant to run in a goroutine
// right after startup; the served endpoints work before it finishes, just
// slower. A failure is reported and logged but never fatal, the model loads
// lazily on first use instead.
func (c *Components) Warmup(ctx context.Context, sink schemas.EventSink) {
	publish := func(message string) {
		if sink != nil {
			sink.Publish(schemas.AssistantEvent{Type: schemas.EventStatus, Message: message})
		}
	}

	publish("Warming up models...")

	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	if err := c.ChatModel.Warmup(warmCtx); err != nil {
		c.log.Warn("Model warmup failed, first request will be slow.", zap.Error(err))
		publish("Ready | Model not preloaded")
		return
	}

	switch {
	case c.Speech != nil && c.Speech.Enabled():
		publish("Ready | TTS Active")
	case c.Speech != nil:
		publish("Ready | TTS Failed")
	default:
		publish("Ready")
	}
}
