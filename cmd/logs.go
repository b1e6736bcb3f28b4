// File: cmd/logs.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// newLogsCmd creates and configures the `logs` command.
func newLogsCmd() *cobra.Command {
	var follow bool

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the application log",
		Long: `Prints the rotating log file the other commands write to. With --follow
the command keeps the file open and streams new lines as they arrive,
surviving log rotation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Logger.LogFile == "" {
				return errors.New("logger.log_file is not configured")
			}
			return tailLogs(cmd.Context(), cmd.OutOrStdout(), cfg.Logger.LogFile, follow)
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new lines as they are written.")

	return logsCmd
}

// tailLogs copies the log file to out. Without follow it stops at the end
// of the file; with follow it starts at the end and streams until the
// context is canceled, reopening the file across rotations.
func tailLogs(ctx context.Context, out io.Writer, path string, follow bool) error {
	tailCfg := tail.Config{
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	}
	if follow {
		tailCfg.Follow = true
		tailCfg.ReOpen = true
		tailCfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(path, tailCfg)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return fmt.Errorf("reading log file: %w", line.Err)
			}
			fmt.Fprintln(out, line.Text)
		}
	}
}
