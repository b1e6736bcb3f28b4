// File: cmd/briefing.go
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/observability"
	"github.com/xkilldash9x/pocketd/internal/service"
)

// newBriefingCmd creates and configures the `briefing` command.
func newBriefingCmd() *cobra.Command {
	var raw bool

	briefingCmd := &cobra.Command{
		Use:   "briefing",
		Short: "Print a curated news briefing",
		Long: `Fetches current stories across the briefing categories and, unless --raw
is given, asks the model to curate them down to the ones worth your time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			components, err := service.Build(cfg, nil, logger, service.Options{})
			if err != nil {
				return err
			}
			defer components.Shutdown()

			stories, err := components.Briefing.Briefing(ctx, !raw)
			if err != nil {
				return fmt.Errorf("fetching briefing: %w", err)
			}

			printStories(cmd.OutOrStdout(), stories)
			return nil
		},
	}

	briefingCmd.Flags().BoolVar(&raw, "raw", false, "Skip model curation and print every fetched story.")

	return briefingCmd
}

func printStories(out io.Writer, stories []schemas.Story) {
	if len(stories) == 0 {
		fmt.Fprintln(out, "No stories right now.")
		return
	}

	for _, story := range stories {
		fmt.Fprintf(out, "%s[%s]%s %s%s%s\n", ansiCyan, story.Category, ansiReset, ansiBold, story.Title, ansiReset)
		if story.Body != "" {
			fmt.Fprintf(out, "  %s\n", story.Body)
		}
		fmt.Fprintf(out, "  %s%s · %s · %s%s\n\n", ansiGray, story.Source, story.Date, story.URL, ansiReset)
	}
}
