package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperqa/internal/docs"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the collection with citations",
	Long: `Ask retrieves the chunks closest to the question, has the summary model
judge and summarize each one, and asks the answer model to write an answer
from the accepted evidence. The answer cites sources by key and ends with a
reference list.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	addQueryFlags(askCmd)
	askCmd.Flags().String("length", "", `answer length hint (default "about 100 words")`)
	askCmd.Flags().Bool("vector-only", false, "stop after gathering evidence")
	askCmd.Flags().String("format", "text", "output format: text, json or yaml")

	rootCmd.AddCommand(askCmd)
}

// addQueryFlags registers the retrieval flags shared by ask and evidence.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().Int("k", 0, "number of chunks retrieved (default from config)")
	cmd.Flags().Int("max-sources", 0, "maximum evidence pieces used (default from config)")
	cmd.Flags().Bool("no-diversity", false, "plain similarity search instead of marginal relevance")
	cmd.Flags().StringSlice("key", nil, "restrict evidence to these document keys")
}

// requestFromFlags applies the retrieval flags over the configured defaults.
func requestFromFlags(cmd *cobra.Command, question string) docs.QueryRequest {
	req := queryRequest(loadConfig().Query, question)
	if k, _ := cmd.Flags().GetInt("k"); k > 0 {
		req.K = k
	}
	if n, _ := cmd.Flags().GetInt("max-sources"); n > 0 {
		req.MaxSources = n
	}
	if noDiv, _ := cmd.Flags().GetBool("no-diversity"); noDiv {
		req.Diversity = false
	}
	req.KeyFilter, _ = cmd.Flags().GetStringSlice("key")
	if f := cmd.Flags().Lookup("length"); f != nil && f.Value.String() != "" {
		req.LengthHint = f.Value.String()
	}
	return req
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := requestFromFlags(cmd, strings.Join(args, " "))
	req.VectorSearchOnly, _ = cmd.Flags().GetBool("vector-only")
	format, _ := cmd.Flags().GetString("format")

	ctx := cmd.Context()
	return withSession(ctx, func(s *session) error {
		ans, err := s.docs.Query(ctx, req)
		if err != nil {
			return err
		}
		// Persist an index built by this query.
		if err := s.save(ctx); err != nil {
			logger.Warn("collection not saved", "error", err)
		}

		out := cmd.OutOrStdout()
		if format != "text" {
			return writeFormatted(out, format, ans)
		}
		fmt.Fprint(out, ans.FormattedAnswer)
		u := s.docs.Usage()
		logger.Info("answered", "sources", len(ans.Contexts), "prompt_tokens", u.PromptTokens, "completion_tokens", u.CompletionTokens)
		return nil
	})
}
