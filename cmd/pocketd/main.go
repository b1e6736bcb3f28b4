// File: cmd/pocketd/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/pocketd/cmd"
	"github.com/xkilldash9x/pocketd/internal/observability"
)

// osExit is swappable so tests can observe the exit path.
var osExit = os.Exit

func main() {
	// A context that ends on Ctrl+C or SIGTERM gives every component a
	// chance to shut down cleanly before the process goes away.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cmd.Execute(ctx)

	stop()
	observability.Sync()
	osExit(exitCode(err))
}

// exitCode maps the command error to a process exit code. A run cut short
// by a signal counts as a clean exit, not a failure.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}
