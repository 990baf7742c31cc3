package chatlogcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contenox/chatlog/apiframework"
	"github.com/contenox/chatlog/serverapi"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func runServe(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	nodeInstanceID := uuid.NewString()[0:8]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbInstance, err := openDatabase(ctx, config)
	if err != nil {
		return err
	}
	defer dbInstance.Close()

	pubsub, err := openPubSub(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to initialize pubsub: %w", err)
	}
	defer pubsub.Close()

	mux := http.NewServeMux()
	cleanup, err := serverapi.New(ctx, mux, nodeInstanceID, config, dbInstance, pubsub)
	if err != nil {
		return fmt.Errorf("failed to assemble server: %w", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("cleanup failed", "error", err)
		}
	}()

	handler := apiframework.RequestIDMiddleware(apiframework.TracingMiddleware(mux))
	port := config.Port
	if port == "" {
		port = "8080"
	}
	addr := net.JoinHostPort(config.Addr, port)
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "node_instance_id", nodeInstanceID)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}
