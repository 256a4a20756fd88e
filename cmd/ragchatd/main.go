package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/comigor/ragchat-go/internal/backend"
	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/history"
	"github.com/comigor/ragchat-go/internal/library"
	"github.com/comigor/ragchat-go/internal/llm"
	"github.com/comigor/ragchat-go/internal/logger"
	"github.com/comigor/ragchat-go/internal/responder"
	"github.com/comigor/ragchat-go/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath, logLevel, addr string

	cmd := &cobra.Command{
		Use:           "ragchatd",
		Short:         "Reference RAG chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if logLevel == "" {
				logLevel = cfg.Log.Level
			}
			logger.SetLevel(logLevel)
			if addr == "" {
				addr = net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
			}
			return run(cmd.Context(), cfg, addr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ./config.yaml or ~/.ragchat/config.yaml)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.host:server.port)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.L.Error("ragchatd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, addr string) error {
	db, err := storage.OpenSQLite(ctx, cfg.Storage.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	lib, err := library.Open(ctx, db, cfg.Storage)
	if err != nil {
		return err
	}
	defer lib.Close()

	r, closeResponder := newResponder(ctx, cfg, lib)
	defer closeResponder()

	var opts []backend.Option
	if cfg.Storage.MaxFileSize > 0 {
		// room for the multipart envelope; the library reports oversize files itself
		opts = append(opts, backend.WithBodyLimit(cfg.Storage.MaxFileSize+1<<20))
	}
	srv := backend.New(lib, history.New(ctx, db), r, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.L.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// newResponder picks the LLM agent when an API key is configured and the
// offline rules otherwise.
func newResponder(ctx context.Context, cfg *config.Config, lib *library.Library) (responder.Responder, func()) {
	client, err := llm.NewClient(cfg.LLM)
	if errors.Is(err, llm.ErrNotConfigured) {
		logger.L.Info("no LLM api key configured; using rule-based replies")
		return responder.Rules{}, func() {}
	}
	if err != nil {
		logger.L.Error("LLM client setup failed; using rule-based replies", "error", err)
		return responder.Rules{}, func() {}
	}

	tools := responder.Connect(ctx, cfg.MCPServers)
	agent := responder.NewAgent(client, cfg.LLM,
		responder.WithTools(responder.SearchTool(lib)),
		responder.WithTools(tools.Tools...),
		responder.WithSystemPrompts(tools.Prompts...),
	)
	logger.L.Info("LLM replies enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "tools", len(tools.Tools)+1)
	return agent, func() {
		if err := tools.Close(); err != nil {
			logger.L.Warn("MCP client close error", "error", err)
		}
	}
}
