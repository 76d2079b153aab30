package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sarisari/tindahan/api"
	"github.com/spf13/cobra"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the JSON API and the overdue sweeper.

On SIGINT/SIGTERM the server stops accepting connections, waits for active
requests (TINDAHAN_SHUTDOWN_TIMEOUT), stops the sweeper and closes the
database.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides TINDAHAN_HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if flagAddr != "" {
		cfg.HTTPAddr = flagAddr
	}

	handler := api.NewHandler(a.svc, a.store, a.metrics, a.log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		WriteRateLimit: cfg.WriteRateLimit,
	})

	sweeper := api.NewOverdueSweeper(a.svc, a.metrics, a.log)
	sweeper.Schedule = cfg.SweepSchedule
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", cfg.HTTPAddr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			a.log.WithError(err).Error("server failed")
			return err
		}
	case sig := <-quit:
		a.log.WithField("signal", sig.String()).Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("server forced to shutdown")
		return err
	}

	a.log.Info("server stopped")
	return nil
}
