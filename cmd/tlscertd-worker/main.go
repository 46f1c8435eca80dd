// Command tlscertd-worker is the worker role entrypoint: it consumes the
// event bus, reconciling the filesystem pool with the certificate
// store, parsing manually-added PEMs, exporting issued certificates back
// to the pool, and deleting pool folders/files -- and runs the weekly
// pool-import and daily auto-renewal cron jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nfxvault/tlscertd/internal/di"
	"github.com/nfxvault/tlscertd/internal/observability"
)

const defaultWorkerShutdownTimeout = 30 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	app, err := di.InitializeWorkerApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize worker application: %v\n", err)
		os.Exit(1)
	}

	go func() {
		<-sigChan
		app.Logger.Info(context.Background(), "shutdown signal received, stopping worker role...")
		cancel()
	}()

	app.Logger.Info(ctx, "tlscertd worker role is running",
		observability.String("pid", fmt.Sprintf("%d", os.Getpid())),
	)

	runErr := app.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), defaultWorkerShutdownTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		app.Logger.Error(context.Background(), err, "error during worker role shutdown")
		os.Exit(1)
	}

	if runErr != nil {
		app.Logger.Error(context.Background(), runErr, "worker role exited with error")
		os.Exit(1)
	}

	app.Logger.Info(context.Background(), "tlscertd worker role stopped successfully")
}
