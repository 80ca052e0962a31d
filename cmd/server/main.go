package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/flashgest/internal/api"
	"github.com/dgallion1/flashgest/internal/config"
	"github.com/dgallion1/flashgest/internal/generate"
	"github.com/dgallion1/flashgest/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err != nil {
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize generator.
	stats := generate.NewLLMStats(time.Hour)
	gen, err := pipeline.GeneratorFromConfig(cfg, stats)
	if err != nil {
		log.Error("generator setup failed", "error", err)
		os.Exit(1)
	}
	defaults, err := pipeline.DefaultsFromConfig(cfg)
	if err != nil {
		log.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(pipeline.SettingsFromConfig(cfg), defaults, gen, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	var srvStats *generate.LLMStats
	if gen != nil {
		srvStats = stats
	}
	srv := api.NewServer(orch, srvStats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting requests before the queue closes.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()

		if c, ok := gen.(*generate.ClaudeClient); ok {
			c.Close()
		}
	}()

	model := "manual"
	if gen != nil {
		model = gen.Model()
	}
	log.Info("starting flashgest", "port", cfg.Port, "generator", cfg.Generator, "model", model, "tokenizer", cfg.Tokenizer)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
