package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/comigor/ragchat-go/internal/api"
)

func (a *app) docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage uploaded documents",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List uploaded documents",
			Args:  cobra.NoArgs,
			RunE:  a.docsList,
		},
		&cobra.Command{
			Use:   "show [id]",
			Short: "Show one document",
			Args:  cobra.ExactArgs(1),
			RunE:  a.docsShow,
		},
		&cobra.Command{
			Use:   "upload [path...]",
			Short: "Upload local files",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.docsUpload,
		},
		&cobra.Command{
			Use:   "delete [id...]",
			Short: "Delete documents by id",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.docsDelete,
		},
	)
	return cmd
}

func (a *app) docsList(cmd *cobra.Command, _ []string) error {
	docs, err := a.client.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("list documents: %s", api.ErrorMessage(err))
	}
	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents uploaded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPLOADED\tSTATUS")
	var total int64
	for _, d := range docs {
		total += d.Size
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Filename, humanize.Bytes(uint64(max(d.Size, 0))), uploaded(d), d.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d documents, %s of %s\n", len(docs),
		humanize.Bytes(uint64(max(total, 0))), humanize.Bytes(uint64(max(a.cfg.API.StorageQuota, 0))))
	return nil
}

func uploaded(d api.Document) string {
	if d.UploadTime.IsZero() {
		return "-"
	}
	return humanize.Time(d.UploadTime.Time)
}

func (a *app) docsShow(cmd *cobra.Command, args []string) error {
	d, err := a.client.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get document: %s", api.ErrorMessage(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id:       %s\nname:     %s\ntype:     %s\nsize:     %s\nuploaded: %s\nstatus:   %s\n",
		d.ID, d.Filename, d.Type, humanize.Bytes(uint64(max(d.Size, 0))), uploaded(*d), d.Status)
	return nil
}

// docsUpload tries every path and reports the failures together.
func (a *app) docsUpload(cmd *cobra.Command, args []string) error {
	var errs []error
	for _, p := range args {
		res, err := a.client.UploadFile(cmd.Context(), p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s", p, api.ErrorMessage(err)))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.ID, res.Filename)
	}
	return errors.Join(errs...)
}

func (a *app) docsDelete(cmd *cobra.Command, args []string) error {
	var errs []error
	for _, id := range args {
		if err := a.client.DeleteDocument(cmd.Context(), id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %s", id, api.ErrorMessage(err)))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	}
	return errors.Join(errs...)
}
