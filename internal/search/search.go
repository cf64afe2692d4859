// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search finds candidate papers for a collection. Every query of a
// request runs against every backend concurrently; results are merged
// across queries and backends, ranked, and carry enough metadata to cite
// them and to embed their abstracts as documents.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/paperqa/internal/fanout"
	"github.com/pdiddy/paperqa/pkg/types"
)

// Backend searches a single academic API.
type Backend interface {
	Name() string
	Search(ctx context.Context, query Query, cfg types.SearchConfig) ([]types.SearchResult, error)
}

// Query holds the search parameters.
type Query struct {
	FreeText string
	Author   string
	Keywords []string
	DateFrom time.Time
	DateTo   time.Time
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return q.FreeText == "" && q.Author == "" && len(q.Keywords) == 0
}

// Request is one search run.
type Request struct {
	// Queries run against every backend. Empty queries are skipped.
	Queries  []Query
	Backends []Backend

	// RecencyBias boosts papers inside cfg.RecencyBiasWindow.
	RecencyBias bool

	// Held, when set, reports whether a collection holds a source. Results
	// whose AbstractSource it holds are marked InCollection.
	Held func(source string) bool
}

// SearchOutput holds the results and dedup statistics.
type SearchOutput struct {
	Results       []types.SearchResult
	DupsRemoved   int
	BackendErrors []string
}

// Held counts results already in the collection.
func (o SearchOutput) Held() int {
	n := 0
	for _, r := range o.Results {
		if r.InCollection {
			n++
		}
	}
	return n
}

var (
	errEmptyQuery = errors.New("query is empty: provide a research question or structured parameters")
	errNoBackends = errors.New("no search backends configured")
)

// call is one query sent to one backend.
type call struct {
	query   Query
	backend Backend
}

// Search sends every query to every backend, merges duplicate papers,
// ranks them and returns the top cfg.MaxResults. A failing call is
// reported on w and in BackendErrors; the others still contribute.
func Search(ctx context.Context, req Request, cfg types.SearchConfig, w io.Writer) (SearchOutput, error) {
	if len(req.Backends) == 0 {
		return SearchOutput{}, errNoBackends
	}
	var calls []call
	for _, q := range req.Queries {
		if q.IsEmpty() {
			continue
		}
		for _, b := range req.Backends {
			calls = append(calls, call{query: q, backend: b})
		}
	}
	if len(calls) == 0 {
		return SearchOutput{}, errEmptyQuery
	}

	results := fanout.Map(ctx, calls, fanout.Options{}, func(ctx context.Context, _ int, c call) ([]types.SearchResult, error) {
		return c.backend.Search(ctx, c.query, cfg)
	})

	var (
		merged   collector
		failures []string
	)
	for i, r := range results {
		if !r.OK() {
			name := calls[i].backend.Name()
			failures = append(failures, fmt.Sprintf("%s: %v", name, r.Err))
			fmt.Fprintf(w, "warning: backend %s failed: %v\n", name, r.Err)
			continue
		}
		for _, res := range r.Value {
			merged.add(res)
		}
	}
	if err := ctx.Err(); err != nil {
		return SearchOutput{}, err
	}

	ranked := merged.results
	if req.RecencyBias && cfg.RecencyBiasWindow > 0 {
		applyRecencyBias(ranked, cfg.RecencyBiasWindow)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	if cfg.MaxResults > 0 && len(ranked) > cfg.MaxResults {
		ranked = ranked[:cfg.MaxResults]
	}
	if req.Held != nil {
		for i := range ranked {
			ranked[i].InCollection = req.Held(AbstractSource(ranked[i]))
		}
	}

	return SearchOutput{
		Results:       ranked,
		DupsRemoved:   merged.removed,
		BackendErrors: failures,
	}, nil
}

// collector merges results describing the same paper. Two results match
// when they share an identifier, an acquisition identifier or a
// normalized title.
type collector struct {
	results []types.SearchResult
	byKey   map[string]int
	removed int
}

func (c *collector) add(r types.SearchResult) {
	if c.byKey == nil {
		c.byKey = make(map[string]int)
	}
	keys := matchKeys(r)
	for _, k := range keys {
		idx, ok := c.byKey[k]
		if !ok {
			continue
		}
		mergeInto(&c.results[idx], r)
		c.removed++
		for _, k := range matchKeys(c.results[idx]) {
			c.byKey[k] = idx
		}
		return
	}
	idx := len(c.results)
	c.results = append(c.results, r)
	for _, k := range keys {
		c.byKey[k] = idx
	}
}

func matchKeys(r types.SearchResult) []string {
	var keys []string
	if r.Identifier != "" {
		keys = append(keys, "id:"+r.Identifier)
	}
	if r.PreferredAcquisitionID != "" && r.PreferredAcquisitionID != r.Identifier {
		keys = append(keys, "id:"+r.PreferredAcquisitionID)
	}
	if t := normalizeTitle(r.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
// An arXiv acquisition identifier wins because arXiv PDFs are always
// downloadable.
func mergeInto(dst *types.SearchResult, src types.SearchResult) {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.Title, src.Title)
	fill(&dst.Abstract, src.Abstract)
	fill(&dst.URL, src.URL)
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Date.IsZero() {
		dst.Date = src.Date
	}
	dst.RelevanceScore = math.Max(dst.RelevanceScore, src.RelevanceScore)
	if isArxivID(src.PreferredAcquisitionID) && !isArxivID(dst.PreferredAcquisitionID) {
		dst.PreferredAcquisitionID = src.PreferredAcquisitionID
	}
	if src.Source != "" && !strings.Contains(dst.Source, src.Source) {
		if dst.Source == "" {
			dst.Source = src.Source
		} else {
			dst.Source += "," + src.Source
		}
	}
}

// isArxivID reports whether s looks like a new-style arXiv ID (e.g. "2301.07041").
func isArxivID(s string) bool {
	return len(s) >= 9 && s[4] == '.' && s[0] >= '0' && s[0] <= '9'
}

// normalizeTitle lowercases the title and drops punctuation.
func normalizeTitle(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(title))
	return strings.Join(strings.Fields(cleaned), " ")
}

// applyRecencyBias adds up to 0.2 to papers published within window,
// scaled by how recent they are, capped at 1.
func applyRecencyBias(results []types.SearchResult, window time.Duration) {
	now := time.Now()
	for i := range results {
		r := &results[i]
		if r.Date.IsZero() {
			continue
		}
		if age := now.Sub(r.Date); age <= window {
			r.RelevanceScore = math.Min(1, r.RelevanceScore+0.2*(1-float64(age)/float64(window)))
		}
	}
}

// FormatTable writes results as a human-readable table to w. Papers the
// collection holds are marked with *.
func FormatTable(out SearchOutput, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-1s  %-60s  %-20s  %-4s  %-6s  %-14s  %s\n",
		"Rank", "", "Title", "Authors", "Year", "Score", "Key", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 129))

	for i, r := range out.Results {
		held := ""
		if r.InCollection {
			held = "*"
		}
		year := ""
		if !r.Date.IsZero() {
			year = fmt.Sprint(r.Date.Year())
		}
		fmt.Fprintf(w, "%-4d  %-1s  %-60s  %-20s  %-4s  %-6.2f  %-14s  %s\n",
			i+1, held, truncate(r.Title, 60), formatAuthors(r.Authors), year, r.RelevanceScore, Key(r), r.Source)
	}

	fmt.Fprintf(w, "\n%d results", len(out.Results))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	if n := out.Held(); n > 0 {
		fmt.Fprintf(w, ", %d already in the collection (*)", n)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes results as indented JSON to w.
func FormatJSON(out SearchOutput, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Results)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
