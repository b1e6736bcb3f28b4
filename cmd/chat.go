// File: cmd/chat.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pocketd/internal/observability"
	"github.com/xkilldash9x/pocketd/internal/service"
)

// newChatCmd creates and configures the `chat` command.
func newChatCmd() *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Long: `An interactive chat session against the local model. Responses stream as
they generate, with the reasoning phase shown in gray. The conversation
is stored so graphical clients can pick it up later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			sink := newConsoleSink(cmd.OutOrStdout(), false)
			components, err := service.Build(cfg, sink, logger, service.Options{
				WithHistory: true,
				WithSpeech:  true,
			})
			if err != nil {
				return err
			}
			defer components.Shutdown()

			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), components)
		},
	}

	return chatCmd
}

// runChat drives the read-eval-print loop until EOF, an exit command or a
// canceled context.
func runChat(ctx context.Context, in io.Reader, out io.Writer, c *service.Components) error {
	printChatBanner(out)

	// Reading stdin in a goroutine keeps Ctrl+C responsive while blocked on
	// input. The goroutine ends at EOF or when the context falls away.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sessionID := ""
	for {
		fmt.Fprint(out, chatPrompt(c))

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if strings.EqualFold(line, "/new") {
				c.Assistant.NewConversation()
				sessionID = ""
				fmt.Fprintln(out, ">> Started a new conversation.")
				continue
			}
			if handled, quit := handleChatCommand(out, c, line); quit {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			} else if handled {
				continue
			}

			fmt.Fprint(out, "AI: ")
			// Failures surface through the event sink; the session keeps
			// going either way.
			newID, _, _ := c.Assistant.HandleUtterance(ctx, sessionID, line)
			sessionID = newID
		}
	}
}

// handleChatCommand processes slash commands and the exit words. The first
// return reports whether the line was consumed, the second asks to quit.
func handleChatCommand(out io.Writer, c *service.Components, line string) (bool, bool) {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true, true

	case "/think on":
		c.Assistant.SetThink(true)
		fmt.Fprintln(out, ">> Thinking enabled. You will see the reasoning process.")

	case "/think off":
		c.Assistant.SetThink(false)
		fmt.Fprintln(out, ">> Thinking disabled.")

	case "/tts on":
		if c.Speech == nil {
			fmt.Fprintln(out, ">> Voice output is not available in this session.")
		} else if err := c.Speech.SetEnabled(true); err != nil {
			fmt.Fprintf(out, ">> Voice output unavailable: %v\n", err)
		} else {
			fmt.Fprintln(out, ">> Voice output enabled.")
		}

	case "/tts off":
		if c.Speech != nil {
			_ = c.Speech.SetEnabled(false)
		}
		fmt.Fprintln(out, ">> Voice output disabled.")

	default:
		if strings.HasPrefix(line, "/") {
			fmt.Fprintf(out, ">> Unknown command %q\n", line)
			return true, false
		}
		return false, false
	}
	return true, false
}

// chatPrompt renders the input prompt with the active modes, so it is
// always visible whether thinking or voice output is on.
func chatPrompt(c *service.Components) string {
	var modes []string
	if c.Assistant.ThinkEnabled() {
		modes = append(modes, "Thinking")
	}
	if c.Speech != nil && c.Speech.Enabled() {
		modes = append(modes, "Voice")
	}
	if len(modes) == 0 {
		return "You: "
	}
	return fmt.Sprintf("You (%s): ", strings.Join(modes, ", "))
}

func printChatBanner(out io.Writer) {
	fmt.Fprintf(out, "%sPocket AI%s\n", ansiBold, ansiReset)
	fmt.Fprintln(out, "---------------------------------------------")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintf(out, "  /think on   -> %sShow internal reasoning%s\n", ansiGray, ansiReset)
	fmt.Fprintln(out, "  /think off  -> Hide reasoning")
	fmt.Fprintf(out, "  /tts on     -> %sEnable voice output%s\n", ansiCyan, ansiReset)
	fmt.Fprintln(out, "  /tts off    -> Disable voice output")
	fmt.Fprintln(out, "  /new        -> Start a fresh conversation")
	fmt.Fprintln(out, "  exit        -> Quit")
	fmt.Fprintln(out, "---------------------------------------------")
}
