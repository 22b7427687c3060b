package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pgvault/logger"
	"pgvault/pkg/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cmd.New()
	err := root.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
