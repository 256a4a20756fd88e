package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comigor/ragchat-go/internal/documents"
	"github.com/comigor/ragchat-go/internal/logger"
	"github.com/comigor/ragchat-go/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var dir string
	var initial bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Upload documents dropped into a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = a.cfg.Watch.Dir
			}
			if dir == "" {
				return errors.New("no directory: pass --dir or set watch.dir")
			}
			return a.runWatch(cmd.Context(), dir, initial)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch (default watch.dir)")
	cmd.Flags().BoolVar(&initial, "initial", false, "upload the documents already in the directory first")
	return cmd
}

func (a *app) runWatch(ctx context.Context, dir string, initial bool) error {
	docs := documents.New(a.client, documents.WithQuota(a.cfg.API.StorageQuota))
	defer docs.Close()

	if initial {
		paths, err := watch.Scan(dir, a.cfg.Watch.Extensions)
		if err != nil {
			return err
		}
		for _, p := range paths {
			docs.Upload(ctx, p)
			if msg := docs.Snapshot().Error; msg != "" {
				logger.L.Error("initial upload failed", "path", p, "error", msg)
				docs.DismissError()
			}
		}
		logger.L.Info("initial upload finished", "files", len(paths), "documents", len(docs.Snapshot().Documents))
	}

	w, err := watch.New(a.cfg.Watch.Extensions)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()
	if err := w.Run(ctx, dir, docs); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
