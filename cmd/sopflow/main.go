package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/procdoc/sop-flow/internal/analyzer"
	"github.com/procdoc/sop-flow/internal/config"
	"github.com/procdoc/sop-flow/internal/docbuilder"
	"github.com/procdoc/sop-flow/internal/drive"
	"github.com/procdoc/sop-flow/internal/gemini"
	"github.com/procdoc/sop-flow/internal/generator"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/media"
	"github.com/procdoc/sop-flow/internal/processor"
	"github.com/procdoc/sop-flow/internal/server"
	"github.com/procdoc/sop-flow/internal/session"
	"github.com/procdoc/sop-flow/internal/transcribe"
	"github.com/procdoc/sop-flow/internal/watcher"
	"github.com/procdoc/sop-flow/pkg/executor"
	"github.com/procdoc/sop-flow/pkg/retry"
)

func main() {
	ctx := context.Background()

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info(ctx, "========================================")
	log.Info(ctx, "SOP Flow: screen recording to SOP document")
	log.Info(ctx, "========================================")
	log.Info(ctx, "Transcriber: %s", cfg.AI.Transcriber)
	log.Info(ctx, "Drive upload: %v", cfg.Drive.Enabled())

	if err := ensureDirectories(cfg); err != nil {
		log.Error(ctx, "Failed to create directories: %v", err)
		os.Exit(1)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		Jitter:      0.2,
	}

	exec := executor.New()
	med := media.New(exec, log, cfg.Performance.MaxConcurrentFrames)
	gem := gemini.New(cfg.AI.Gemini.APIKeys, cfg.AI.Gemini.Model, policy, log)
	transcriber := transcribe.New(cfg, gem, policy, log)
	moments := analyzer.New(gem, log)
	docs := generator.New(gem, log)
	builder := docbuilder.New(log)
	uploader := drive.New(cfg.Drive, log)

	store, err := session.NewStore(cfg.Paths.Data, time.Duration(cfg.Performance.SessionTTLMinutes)*time.Minute, log)
	if err != nil {
		log.Error(ctx, "Failed to initialize session store: %v", err)
		os.Exit(1)
	}

	proc := processor.New(cfg, med, transcriber, moments, docs, builder, uploader, store, log)
	srv := server.New(cfg, proc, store, uploader, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go store.Janitor(ctx)

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	// Drop-folder mode is optional: any video placed in the watch dir runs
	// through the whole pipeline unattended.
	if cfg.Paths.Watch != "" {
		w, err := watcher.New(cfg.Paths.Watch, proc.Process, log, 1)
		if err != nil {
			log.Error(ctx, "Failed to create drop folder watcher: %v", err)
			os.Exit(1)
		}
		defer w.Stop()
		go func() {
			if err := w.Start(ctx); err != nil && err != context.Canceled {
				errChan <- err
			}
		}()
		log.Info(ctx, "Watching drop folder: %s", cfg.Paths.Watch)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info(ctx, "Ready on %s. Press Ctrl+C to stop", cfg.Server.Addr)

	select {
	case <-sigChan:
		log.Info(ctx, "Shutdown signal received")
	case err := <-errChan:
		log.Error(ctx, "Fatal: %v", err)
	}

	log.Info(ctx, "Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "HTTP shutdown: %v", err)
	}

	store.DestroyAll(shutdownCtx)
	log.Info(ctx, "Stopped")
}

// ensureDirectories creates the data dir and the optional watch dir.
func ensureDirectories(cfg *config.Config) error {
	dirs := []string{cfg.Paths.Data}
	if cfg.Paths.Watch != "" {
		dirs = append(dirs, cfg.Paths.Watch)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Clean(dir), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
