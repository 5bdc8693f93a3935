// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/failcase/repro-cli/cmd"
	"github.com/failcase/repro-cli/internal/observability"
)

// main is the entry point for repro-cli. It installs the signal-aware
// context so an interrupted run still shuts the browser down and writes its
// truncated report before the process exits.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
