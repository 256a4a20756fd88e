package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/logger"
)

var version = "dev"

// app carries the flags and the facade shared by every command.
type app struct {
	configPath string
	apiURL     string
	logLevel   string

	cfg    *config.Config
	client *api.Client
}

func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger.SetLevel(cfg.Log.Level)
	a.cfg = cfg
	a.client = api.NewClient(cfg.API)
	logger.L.Debug("client configured", "base_url", a.client.BaseURL())
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var conversation string

	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with your documents through a RAG backend",
		Long: `ragchat talks to a RAG backend over HTTP.

Run without arguments to open the terminal UI.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd, conversation)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./config.yaml or ~/.ragchat/config.yaml)")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "backend base URL (default "+config.DefaultBaseURL+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	root.Flags().StringVar(&conversation, "conversation", "", "resume a conversation by id")

	root.AddCommand(
		a.chatCmd(),
		a.askCmd(),
		a.historyCmd(),
		a.docsCmd(),
		a.healthCmd(),
		a.watchCmd(),
		a.mcpCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
