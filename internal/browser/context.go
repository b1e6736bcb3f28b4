// File: internal/browser/context.go
package browser

import "context"

// CombineContext derives a context from the session context that is also
// canceled when the operational context ends. chromedp reads its connection
// state from context values, so the session context must be the parent; the
// operational side only contributes its deadline.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)

	go func() {
		select {
		case <-op.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
