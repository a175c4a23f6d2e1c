package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func printBanner(w io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4ade80")).
		Bold(true).
		Render("R L S   N O T E S")

	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render("Every row has an owner. You only see yours.")

	fmt.Fprintf(w, "\n  %s\n\n  %s\n\n", title, quote)
}

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		// No config needed to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			printBanner(c.out)
			dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
			c.printf("  %s %s\n\n", dim.Render("version"), version)
		},
	}
}
