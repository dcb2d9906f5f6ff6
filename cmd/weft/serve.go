package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tessellate-io/weft"
	"github.com/tessellate-io/weft/internal/config"
	"github.com/tessellate-io/weft/internal/logging"
)

const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workflow HTTP server",
	Long:  `Loads the workflow document, selects the session store, and serves the boundary API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides WEFT_ADDR)")
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("workflow"); path != "" {
		cfg.WorkflowPath = path
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ListenAddr = addr
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)

	store, closeStore, err := config.SelectStore(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt, err := weft.Load(cfg.WorkflowPath,
		weft.WithLogger(logger),
		weft.WithStore(store),
		weft.WithMetricsRegistry(registry),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", cfg.ListenAddr,
			"workflow", cfg.WorkflowPath,
			"app", rt.Document().Info.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	for {
		select {
		case err := <-serverErrors:
			return err
		case <-reload:
			if err := rt.ReloadFile(cfg.WorkflowPath); err != nil {
				logger.Error("reload failed, keeping current document", "path", cfg.WorkflowPath, "err", err)
			}
		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete, closing", "err", err)
				return srv.Close()
			}
			logger.Info("server stopped")
			return nil
		}
	}
}
