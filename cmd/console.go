// File: cmd/console.go
package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// ANSI escape codes for terminal styling: reasoning renders as a gray
// thought bubble, highlights in cyan.
const (
	ansiGray  = "\033[90m"
	ansiCyan  = "\033[36m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// consoleSink renders assistant events as terminal output, so the commands
// that run without the API server still stream responses live. Thinking
// tokens print in gray as they arrive; the first content token after a
// thought inserts a blank line to separate reasoning from the answer.
type consoleSink struct {
	out io.Writer

	// showProgress additionally renders status and agent step lines, wanted
	// for browser tasks but noise in a chat session.
	showProgress bool

	mu        sync.Mutex
	inThought bool
}

var _ schemas.EventSink = (*consoleSink)(nil)

func newConsoleSink(out io.Writer, showProgress bool) *consoleSink {
	return &consoleSink{out: out, showProgress: showProgress}
}

// Publish renders one event. Terminal writes complete quickly, so this
// honors the sink contract of never blocking the pipeline.
func (s *consoleSink) Publish(ev schemas.AssistantEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case schemas.EventThoughtChunk:
		fmt.Fprintf(s.out, "%s%s%s", ansiGray, ev.Message, ansiReset)
		s.inThought = true

	case schemas.EventResponseChunk:
		s.closeThought()
		fmt.Fprint(s.out, ev.Message)

	case schemas.EventThinkEnd:
		s.closeThought()

	case schemas.EventSimpleResponse:
		fmt.Fprintln(s.out, ev.Message)

	case schemas.EventStatus:
		if s.showProgress {
			fmt.Fprintf(s.out, "%s[%s]%s\n", ansiGray, ev.Message, ansiReset)
		}

	case schemas.EventAgentUpdate:
		if s.showProgress {
			fmt.Fprintf(s.out, "%s➤ %s%s\n", ansiCyan, ev.Message, ansiReset)
		}

	case schemas.EventError:
		fmt.Fprintf(s.out, "\n%sError: %s%s\n", ansiBold, ev.Message, ansiReset)

	case schemas.EventDone:
		fmt.Fprintln(s.out)

	case schemas.EventScreenshot, schemas.EventThinkStart:
		// Screenshots are for graphical clients; think start carries no text.
	}
}

// closeThought ends an open thought bubble with a blank line so the answer
// starts visually apart from the reasoning.
func (s *consoleSink) closeThought() {
	if !s.inThought {
		return
	}
	fmt.Fprint(s.out, ansiReset+"\n\n")
	s.inThought = false
}
