package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/BrownNPC/CallRelay/internal/config"
	"github.com/BrownNPC/CallRelay/signaling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	cmd := &cobra.Command{
		Use:   "callrelay",
		Short: "Signaling relay for peer-to-peer call setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "Host to listen on")
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Port to listen on")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, cmd); err != nil {
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then closes every connection and drains the HTTP server.
func run(ctx context.Context, cfg config.Config) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	registry := signaling.NewRegistry(log)
	srv := signaling.NewWebsocketSignalingServer(log, registry, cfg.Server(), websocket.AcceptOptions{
		OriginPatterns: cfg.OriginPatterns,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("callrelay listening", "addr", cfg.Addr())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http shutdown failed", "error", err)
	}
	// hijacked websockets are not tracked by http.Server.
	srv.CloseAll("server shutting down")
	return nil
}
