// Command flat10 regrids and reduces CESM2 FLAT10 history output.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.ngs.io/flat10/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.New().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
