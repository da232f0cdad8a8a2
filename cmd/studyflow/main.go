package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"studyflow/internal/apperr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout, os.Stderr).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", apperr.KindOf(err), err)
		os.Exit(1)
	}
}
