// Command tipctl is the command line companion to the aurafeed server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"aurafeed/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
