package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/voicerag/config"
	"github.com/room4-2/voicerag/demotools"
	"github.com/room4-2/voicerag/logging"
	"github.com/room4-2/voicerag/rag"
	"github.com/room4-2/voicerag/relay"
	"github.com/room4-2/voicerag/search"
	"github.com/room4-2/voicerag/server"
	"github.com/room4-2/voicerag/tool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Instructions == "" {
		cfg.Instructions = relay.DefaultSystemPrompt
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		logger.Fatal("tool registration failed", zap.Error(err))
	}
	logger.Info("tool registry ready", zap.Int("tools", registry.Len()))

	dialer := relay.NewDialer(
		cfg.UpstreamEndpoint,
		cfg.UpstreamDeployment,
		cfg.UpstreamAPIVersion,
		relay.APIKey(cfg.UpstreamAPIKey),
		logger,
	)
	dialer.MaxAttempts = cfg.ConnectMaxAttempts
	dialer.Backoff = cfg.ConnectBackoff

	manager := relay.NewManager(cfg, registry, dialer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.StartCleanupRoutine(ctx)

	srv := server.New(cfg, manager, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

// buildRegistry attaches all tool providers. The registry is immutable once
// the first session configuration is sent.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	if cfg.SearchConfigured() {
		searchClient := search.NewClient(cfg.SearchEndpoint, cfg.SearchIndex, cfg.SearchAPIKey)
		if err := rag.NewProvider(searchClient, logger).Attach(registry); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("search collaborator not configured, rag tools disabled")
	}

	if err := demotools.NewProvider(logger).Attach(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
