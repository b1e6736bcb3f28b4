// File: cmd/run.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/agent"
	"github.com/xkilldash9x/pocketd/internal/observability"
	"github.com/xkilldash9x/pocketd/internal/service"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		startURL string
		maxSteps int
		headless bool
	)

	runCmd := &cobra.Command{
		Use:   "run [instruction...]",
		Short: "Give the browser agent one task and watch it work",
		Long: `Opens a browser session and hands the instruction to the vision agent,
which looks at the page, decides an action, performs it and repeats until
the task is done. Progress streams to the terminal; the browser stays
visible unless --headless is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("start-url") {
				cfg.Agent.StartURL = startURL
			}
			if cmd.Flags().Changed("max-steps") {
				cfg.Agent.MaxSteps = maxSteps
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}

			instruction := strings.Join(args, " ")
			logger.Info("Starting browser task.", zap.String("instruction", instruction))

			sink := newConsoleSink(cmd.OutOrStdout(), true)
			components, err := service.Build(cfg, sink, logger, service.Options{WithBrowser: true})
			if err != nil {
				return err
			}
			defer components.Shutdown()

			state, err := components.Agent.RunTask(ctx, instruction)
			if err != nil {
				return err
			}

			switch state {
			case agent.StateTerminated:
				if components.Agent.TerminateStatus() == schemas.StatusFailure {
					return fmt.Errorf("the agent gave up on the task")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "\nTask complete.")
			case agent.StateStopped:
				fmt.Fprintln(cmd.OutOrStdout(), "\nTask stopped before completion.")
			}
			return nil
		},
	}

	runCmd.Flags().StringVar(&startURL, "start-url", "", "Page the browser opens first. (Overrides config/env)")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Stop after this many agent steps, 0 means unlimited. (Overrides config/env)")
	runCmd.Flags().BoolVar(&headless, "headless", false, "Run the browser without a window. (Overrides config/env)")

	return runCmd
}
