package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperqa/internal/search"
	"github.com/pdiddy/paperqa/internal/secrets"
	"github.com/pdiddy/paperqa/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Search academic APIs for candidate papers",
	Long: `Search queries academic APIs (arXiv, Semantic Scholar) for papers matching
a research question or structured query parameters. Results are deduplicated
across sources and queries and ranked by relevance.

With --from-question the summary model turns the question into several
keyword searches first. With --add-abstracts each result's abstract is
embedded and added to the collection as a document of its own.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("author", "", "filter by author name")
	searchCmd.Flags().String("keywords", "", "filter by keywords (comma-separated)")
	searchCmd.Flags().String("from", "", "publication date range start (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "publication date range end (YYYY-MM-DD)")
	searchCmd.Flags().Int("max-results", 0, "maximum number of results to return (default from config)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("recency-bias", false, "boost recently published papers")
	searchCmd.Flags().StringSlice("backends", []string{"arxiv", "semantic_scholar"}, "backends to query")
	searchCmd.Flags().Int("from-question", 0, "generate this many keyword searches from the question")
	searchCmd.Flags().Bool("add-abstracts", false, "add result abstracts to the collection")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	q, err := queryFromFlags(cmd, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("max-results"); n > 0 {
		cfg.Search.MaxResults = n
	}
	names, _ := cmd.Flags().GetStringSlice("backends")
	backends, err := buildBackends(names, cfg.Search, cfg.AI.MaxRetries)
	if err != nil {
		return err
	}
	recency, _ := cmd.Flags().GetBool("recency-bias")
	asJSON, _ := cmd.Flags().GetBool("json")
	generate, _ := cmd.Flags().GetInt("from-question")
	addAbstracts, _ := cmd.Flags().GetBool("add-abstracts")

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	warn := cmd.ErrOrStderr()
	req := search.Request{
		Queries:     []search.Query{q},
		Backends:    backends,
		RecencyBias: recency,
	}

	if generate == 0 && !addAbstracts {
		res, err := search.Search(ctx, req, cfg.Search, warn)
		if err != nil {
			return err
		}
		return printResults(out, res, asJSON)
	}

	return withSession(ctx, func(s *session) error {
		if generate > 0 {
			if q.FreeText == "" {
				return fmt.Errorf("--from-question needs a question")
			}
			texts, err := s.docs.SearchQueries(ctx, q.FreeText, generate)
			if err != nil {
				return err
			}
			logger.Info("generated searches", "queries", texts)
			req.Queries = req.Queries[:0]
			for _, t := range texts {
				gq := q
				gq.FreeText = t
				req.Queries = append(req.Queries, gq)
			}
		}
		req.Held = s.docs.Has

		res, err := search.Search(ctx, req, cfg.Search, warn)
		if err != nil {
			return err
		}
		if err := printResults(out, res, asJSON); err != nil {
			return err
		}
		if !addAbstracts {
			return nil
		}
		added, err := addAbstractDocs(ctx, s, res.Results)
		if err != nil {
			return err
		}
		fmt.Fprintf(warn, "added %d abstracts to the collection\n", added)
		if added == 0 {
			return nil
		}
		return s.save(ctx)
	})
}

// queryFromFlags builds a search query from the question and filter flags.
func queryFromFlags(cmd *cobra.Command, question string) (search.Query, error) {
	q := search.Query{FreeText: question}
	q.Author, _ = cmd.Flags().GetString("author")
	if kw, _ := cmd.Flags().GetString("keywords"); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				q.Keywords = append(q.Keywords, k)
			}
		}
	}
	for flag, dst := range map[string]*time.Time{"from": &q.DateFrom, "to": &q.DateTo} {
		v, _ := cmd.Flags().GetString(flag)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return q, fmt.Errorf("invalid --%s date %q: use YYYY-MM-DD", flag, v)
		}
		*dst = t
	}
	return q, nil
}

// buildBackends returns the named backends. The Semantic Scholar key is
// optional; requests without one share a public rate limit.
func buildBackends(names []string, cfg types.SearchConfig, maxRetries int) ([]search.Backend, error) {
	client := httpClient(cfg.HTTPConfig)
	var backends []search.Backend
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "arxiv":
			backends = append(backends, &search.ArxivBackend{Client: client, MaxRetries: maxRetries})
		case "semantic_scholar", "s2":
			backends = append(backends, &search.SemanticScholarBackend{
				Client:     client,
				APIKey:     secrets.Lookup(loadedSecrets, secrets.SemanticScholarKey),
				MaxRetries: maxRetries,
			})
		default:
			return nil, fmt.Errorf("unknown search backend %q: use arxiv or semantic_scholar", name)
		}
	}
	return backends, nil
}

// addAbstractDocs embeds the abstracts of results not InCollection and adds
// each as a one-chunk document.
func addAbstractDocs(ctx context.Context, s *session, results []types.SearchResult) (int, error) {
	type pending struct {
		source string
		text   string
		meta   types.Metadata
	}
	var todo []pending
	for _, r := range results {
		if r.InCollection {
			continue
		}
		source, text, meta, ok := search.AbstractDocument(r)
		if !ok {
			continue
		}
		todo = append(todo, pending{source, text, meta})
	}
	if len(todo) == 0 {
		return 0, nil
	}

	texts := make([]string, len(todo))
	for i, p := range todo {
		texts[i] = p.text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding abstracts: %w", err)
	}

	added := 0
	for i, p := range todo {
		key, err := s.docs.AddFromEmbeddings(ctx, p.source, []string{p.text}, [][]float32{vectors[i]}, []types.Metadata{p.meta})
		if err != nil {
			logger.Warn("abstract not added", "source", p.source, "error", err)
			continue
		}
		logger.Debug("added abstract", "source", p.source, "key", key)
		added++
	}
	return added, nil
}

func printResults(w io.Writer, res search.SearchOutput, asJSON bool) error {
	if asJSON {
		return search.FormatJSON(res, w)
	}
	search.FormatTable(res, w)
	return nil
}
