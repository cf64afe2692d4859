package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperqa/internal/docs"
	"github.com/pdiddy/paperqa/pkg/types"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence <question>",
	Short: "Show the evidence the collection holds for a question",
	Long: `Evidence runs retrieval and per-chunk summarization for a question without
writing an answer. Each accepted chunk is printed with its key, score and
summary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvidence,
}

func init() {
	addQueryFlags(evidenceCmd)
	evidenceCmd.Flags().String("format", "text", "output format: text, json or yaml")

	rootCmd.AddCommand(evidenceCmd)
}

func runEvidence(cmd *cobra.Command, args []string) error {
	req := requestFromFlags(cmd, strings.Join(args, " "))
	format, _ := cmd.Flags().GetString("format")

	ctx := cmd.Context()
	return withSession(ctx, func(s *session) error {
		ans, err := s.docs.GetEvidence(ctx, &types.Answer{Question: req.Question}, docs.EvidenceOptions{
			K:          req.K,
			MaxSources: req.MaxSources,
			Diversity:  req.Diversity,
			KeyFilter:  req.KeyFilter,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format != "text" {
			return writeFormatted(out, format, ans.Contexts)
		}
		if len(ans.Contexts) == 0 {
			fmt.Fprintln(out, "No relevant evidence found.")
			return nil
		}
		for _, c := range ans.Contexts {
			fmt.Fprintf(out, "%s (score %.3f)\n  %s\n  %s\n\n", c.Key, c.Score, c.Citation, c.Summary)
		}
		return nil
	})
}
