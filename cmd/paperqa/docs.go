package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List the documents in the collection",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

func init() {
	docsCmd.Flags().String("format", "table", "output format: table, json or yaml")

	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	ctx := cmd.Context()
	return withSession(ctx, func(s *session) error {
		previews := s.docs.Previews()
		out := cmd.OutOrStdout()
		if format != "table" {
			return writeFormatted(out, format, previews)
		}
		if len(previews) == 0 {
			fmt.Fprintln(out, "The collection is empty.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tCHUNKS\tCITATION")
		for _, p := range previews {
			citation := p.Citation
			if len(citation) > 80 {
				citation = citation[:77] + "..."
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Key, p.Chunks, citation)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d documents\n", len(previews))
		return nil
	})
}
