package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tanpawarit/chinook-concierge/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
