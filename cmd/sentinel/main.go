package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/govsentinel/sentinel/app/sentinel"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := sentinel.Initialize(ctx)
	app.Start(ctx)
}
