// Package main provides the entry point for the texmtlx MCP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/raphaelgruber/texmtlx/internal/config"
	"github.com/raphaelgruber/texmtlx/internal/db"
	"github.com/raphaelgruber/texmtlx/internal/graph"
	"github.com/raphaelgruber/texmtlx/internal/server"
	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
	"github.com/raphaelgruber/texmtlx/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so logs go to stderr and the log file
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()
	slog.SetDefault(logger)

	logger.Info("texmtlx-mcp starting",
		"version", version,
		"sink", cfg.Sink,
		"library", cfg.Library,
		"job_root", cfg.JobRoot,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	tax, err := taxonomy.LoadFile(cfg.TaxonomyFile)
	if err != nil {
		logger.Error("failed to load taxonomy", "error", err)
		os.Exit(1)
	}

	lib, closeSink, err := openSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open material library", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}
	defer closeSink()

	srv := server.New(version, logger)

	deps := &tools.Dependencies{
		Tax: tax,
		FS:  osfs.New("/"),
		Synthesis: graph.Options{
			CacheExt: cfg.CacheExt,
			JobRoot:  cfg.JobRoot,
		},
		Sink:    lib,
		Library: cfg.Library,
		Logger:  logger,
	}
	tools.RegisterAll(srv.MCPServer(), deps)
	logger.Info("server ready, awaiting connections")

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// openSink connects the configured material library and registers its root.
func openSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (sink.Sink, func(), error) {
	switch cfg.Sink {
	case config.SinkSQLite:
		s, err := sink.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := s.AddLibrary(ctx, cfg.Library); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.SinkSurreal:
		lib, err := db.OpenLibrary(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, cfg.Library, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open surreal library: %w", err)
		}
		return lib, func() { _ = lib.Close(context.Background()) }, nil

	default:
		return sink.NewMemory(cfg.Library), func() {}, nil
	}
}
