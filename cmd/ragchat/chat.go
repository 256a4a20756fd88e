package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/chat"
	"github.com/comigor/ragchat-go/internal/documents"
	"github.com/comigor/ragchat-go/internal/logger"
	"github.com/comigor/ragchat-go/internal/tui"
)

func (a *app) chatCmd() *cobra.Command {
	var conversation string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd, conversation)
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "resume a conversation by id")
	return cmd
}

// runChat owns the terminal, so logs go to log.file or nowhere.
func (a *app) runChat(cmd *cobra.Command, conversation string) error {
	closer, err := logger.OpenFile(a.cfg.Log.File, a.cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()

	ctx := cmd.Context()
	chatCtl := chat.New(a.client)
	defer chatCtl.Close()
	docsCtl := documents.New(a.client, documents.WithQuota(a.cfg.API.StorageQuota))
	defer docsCtl.Close()

	if conversation != "" {
		if err := chatCtl.Resume(ctx, conversation); err != nil {
			return err
		}
	}

	p := tea.NewProgram(tui.New(ctx, chatCtl, docsCtl), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (a *app) askCmd() *cobra.Command {
	var conversation string
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.SendMessage(cmd.Context(), strings.Join(args, " "), conversation)
			if err != nil {
				return fmt.Errorf("send message: %s", api.ErrorMessage(err))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Content)
			if len(resp.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range resp.Sources {
					fmt.Fprintf(out, "  - %s (%.2f)\n", s.Filename, s.RelevanceScore)
				}
			}
			fmt.Fprintf(out, "\nconversation: %s\n", resp.ConversationID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "continue a conversation by id")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var wipe bool
	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Print or clear the stored messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			if wipe {
				if err := a.client.ClearHistory(ctx, args[0]); err != nil {
					return fmt.Errorf("clear history: %s", api.ErrorMessage(err))
				}
				fmt.Fprintf(out, "Conversation %s cleared\n", args[0])
				return nil
			}
			h, err := a.client.History(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load history: %s", api.ErrorMessage(err))
			}
			if len(h.Messages) == 0 {
				fmt.Fprintln(out, "No messages.")
				return nil
			}
			for _, m := range h.Messages {
				when := ""
				if !m.Timestamp.IsZero() {
					when = " · " + humanize.Time(m.Timestamp.Time)
				}
				fmt.Fprintf(out, "[%s%s]\n%s\n\n", m.Role, when, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete the conversation instead of printing it")
	return cmd
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend %s unreachable: %s", a.client.BaseURL(), api.ErrorMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (version %s)\n", a.client.BaseURL(), h.Status, h.Version)
			return nil
		},
	}
}
