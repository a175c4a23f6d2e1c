package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/naveenspark/rlsnotes/internal/notes"
	"github.com/naveenspark/rlsnotes/pkg/domain"
)

const noTitle = "(no title)"

func (c *cli) newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List and add notes visible to the signed-in user",
	}
	cmd.AddCommand(c.newNotesListCmd())
	cmd.AddCommand(c.newNotesAddCmd())
	return cmd
}

func (c *cli) newNotesListCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			_, svc, err := c.services()
			if err != nil {
				return err
			}
			return c.listNotes(cmd.Context(), svc, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func (c *cli) newNotesAddCmd() *cobra.Command {
	var title, content, output string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert a note, then reload the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			_, svc, err := c.services()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := svc.Create(ctx, domain.NoteDraft{Title: title, Content: content}); err != nil {
				c.logger.Warn("insert failed", "err", err)
				return alertf("Insert", err)
			}
			c.printf("Note added.\n")
			return c.listNotes(ctx, svc, output)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "note title")
	cmd.Flags().StringVar(&content, "content", "", "note content")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format for the reloaded list: table, json or yaml")
	return cmd
}

func (c *cli) listNotes(ctx context.Context, svc *notes.Service, output string) error {
	list, err := svc.List(ctx)
	if err != nil {
		c.logger.Warn("read failed", "err", err)
		return alertf("Read", err)
	}
	return writeNotes(c.out, list, output)
}

// oneLine collapses newlines, tabs and runs of spaces so a note stays on
// its table row.
func oneLine(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func checkOutput(output string) error {
	switch output {
	case "table", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
}

func writeNotes(w io.Writer, list []domain.Note, output string) error {
	if list == nil {
		list = []domain.Note{}
	}
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return err
		}
		return enc.Close()
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No notes.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER_ID\tTITLE\tCONTENT")
	for _, n := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, n.UserID, oneLine(n.TitleOr(noTitle)), oneLine(n.ContentOr("")))
	}
	return tw.Flush()
}
