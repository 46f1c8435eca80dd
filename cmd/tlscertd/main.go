// Command tlscertd is the API role entrypoint: it serves the certificate
// lifecycle HTTP contract, the ACME HTTP-01 challenge endpoint
// , and emits events for the worker role to consume.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nfxvault/tlscertd/internal/di"
	"github.com/nfxvault/tlscertd/internal/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	app, err := di.InitializeAPIApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize API application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		app.Logger.Error(ctx, err, "failed to start API application")
		os.Exit(1)
	}

	app.Logger.Info(ctx, "tlscertd API role is running",
		observability.String("pid", fmt.Sprintf("%d", os.Getpid())),
	)

	<-sigChan
	app.Logger.Info(ctx, "shutdown signal received, stopping API role...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.Config.Server.GracefulTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		app.Logger.Error(ctx, err, "error during API role shutdown")
		os.Exit(1)
	}

	app.Logger.Info(ctx, "tlscertd API role stopped successfully")
}
