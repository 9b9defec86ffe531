package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/majorgraph-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(":" + application.Cfg.Port)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			application.Log.Error("Server failed", "error", err)
		}
	case s := <-sig:
		application.Log.Info("Shutting down", "signal", s.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), application.Cfg.ShutdownTimeout)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		application.Log.Warn("Shutdown incomplete", "error", err)
	}
}
