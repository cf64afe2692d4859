package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperqa/internal/docs"
)

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a document to the collection",
	Long: `Add chunks a PDF, text or markdown file, embeds the chunks and stores them
in the collection under a citation key. Without --citation the summary
model writes one from the first pages; without --key the key is derived
from the citation (e.g. Smith2020). Taken keys get a letter suffix.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().String("citation", "", "citation text (default: generated)")
	addCmd.Flags().String("key", "", "citation key (default: derived from the citation)")
	addCmd.Flags().Bool("no-text-check", false, "skip the check that the extracted text is readable")
	addCmd.Flags().Int("chunk-chars", 0, "chunk size in characters (default from config)")
	addCmd.Flags().Int("overlap", 0, "characters shared by neighbouring chunks")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	citation, _ := cmd.Flags().GetString("citation")
	key, _ := cmd.Flags().GetString("key")
	noCheck, _ := cmd.Flags().GetBool("no-text-check")
	chunkChars, _ := cmd.Flags().GetInt("chunk-chars")
	overlap, _ := cmd.Flags().GetInt("overlap")

	ctx := cmd.Context()
	return withSession(ctx, func(s *session) error {
		got, err := s.docs.Add(ctx, docs.AddRequest{
			Path:             args[0],
			Citation:         citation,
			Key:              key,
			DisableTextCheck: noCheck,
			ChunkChars:       chunkChars,
			Overlap:          overlap,
		})
		if err != nil {
			return err
		}
		if err := s.save(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s as %s\n", args[0], got)
		return nil
	})
}
