// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperqa/internal/httputil"
	"github.com/pdiddy/paperqa/pkg/types"
)

type stubBackend struct {
	name    string
	results []types.SearchResult
	err     error
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Search(_ context.Context, _ Query, _ types.SearchConfig) ([]types.SearchResult, error) {
	return s.results, s.err
}

func testCfg() types.SearchConfig {
	return types.SearchConfig{
		HTTPConfig:        types.HTTPConfig{Timeout: 10 * time.Second, UserAgent: "paperqa-test/0.1"},
		MaxResults:        20,
		RecencyBiasWindow: 2 * 365 * 24 * time.Hour,
	}
}

func TestQuery_IsEmpty(t *testing.T) {
	assert.True(t, Query{}.IsEmpty())
	assert.True(t, Query{DateFrom: time.Now()}.IsEmpty())
	assert.False(t, Query{FreeText: "protein folding"}.IsEmpty())
	assert.False(t, Query{Author: "Jumper"}.IsEmpty())
	assert.False(t, Query{Keywords: []string{"alphafold"}}.IsEmpty())
}

func TestCollector_MergesByIdentifierAndTitle(t *testing.T) {
	results := []types.SearchResult{
		{Identifier: "2107.03374", Title: "Evaluating Large Language Models Trained on Code", Source: "arxiv", RelevanceScore: 0.7},
		{Identifier: "2107.03374", Title: "Evaluating LLMs on Code", Source: "semantic_scholar", RelevanceScore: 0.9, URL: "https://example.org/codex"},
		{Identifier: "10.1/xyz", Title: "evaluating large language models trained on code!", Source: "semantic_scholar"},
		{Identifier: "1706.03762", Title: "Attention Is All You Need", Source: "arxiv"},
	}

	var c collector
	for _, r := range results {
		c.add(r)
	}
	assert.Equal(t, 2, c.removed)
	require.Len(t, c.results, 2)
	assert.Equal(t, 0.9, c.results[0].RelevanceScore)
	assert.Equal(t, "arxiv,semantic_scholar", c.results[0].Source)
	assert.Equal(t, "https://example.org/codex", c.results[0].URL)
}

func TestCollector_MatchesAcquisitionIdentifier(t *testing.T) {
	var c collector
	c.add(types.SearchResult{Identifier: "1706.03762", PreferredAcquisitionID: "1706.03762", Title: "Attention Is All You Need", Source: "arxiv"})
	c.add(types.SearchResult{Identifier: "204e30", PreferredAcquisitionID: "1706.03762", Title: "Attention is all you need (v5)", Source: "semantic_scholar"})

	assert.Equal(t, 1, c.removed)
	require.Len(t, c.results, 1)
	assert.Equal(t, "arxiv,semantic_scholar", c.results[0].Source)
}

func TestMergeInto_PrefersArxivAcquisition(t *testing.T) {
	dst := types.SearchResult{Identifier: "10.1/abc", PreferredAcquisitionID: "10.1/abc", Source: "semantic_scholar"}
	src := types.SearchResult{
		Identifier:             "10.1/abc",
		PreferredAcquisitionID: "2301.07041",
		Authors:                []string{"Ada Lovelace"},
		Abstract:               "An abstract.",
		Date:                   time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
		Source:                 "arxiv",
	}
	mergeInto(&dst, src)

	assert.Equal(t, "2301.07041", dst.PreferredAcquisitionID)
	assert.Equal(t, []string{"Ada Lovelace"}, dst.Authors)
	assert.Equal(t, "An abstract.", dst.Abstract)
	assert.Equal(t, 2023, dst.Date.Year())
}

func TestApplyRecencyBias(t *testing.T) {
	window := 2 * 365 * 24 * time.Hour
	results := []types.SearchResult{
		{Title: "recent", Date: time.Now().Add(-30 * 24 * time.Hour), RelevanceScore: 0.5},
		{Title: "old", Date: time.Now().Add(-5 * 365 * 24 * time.Hour), RelevanceScore: 0.5},
		{Title: "undated", RelevanceScore: 0.5},
		{Title: "capped", Date: time.Now(), RelevanceScore: 0.95},
	}
	applyRecencyBias(results, window)

	assert.Greater(t, results[0].RelevanceScore, 0.5)
	assert.Equal(t, 0.5, results[1].RelevanceScore)
	assert.Equal(t, 0.5, results[2].RelevanceScore)
	assert.LessOrEqual(t, results[3].RelevanceScore, 1.0)
}

func TestSearch_Validation(t *testing.T) {
	var buf bytes.Buffer
	stub := []Backend{&stubBackend{name: "stub"}}
	_, err := Search(context.Background(), Request{Queries: []Query{{}}, Backends: stub}, testCfg(), &buf)
	assert.ErrorContains(t, err, "empty")

	_, err = Search(context.Background(), Request{Backends: stub}, testCfg(), &buf)
	assert.ErrorContains(t, err, "empty")

	_, err = Search(context.Background(), Request{Queries: []Query{{FreeText: "x"}}}, testCfg(), &buf)
	assert.ErrorContains(t, err, "no search backends")
}

func TestSearch_BackendFailureIsReported(t *testing.T) {
	failing := &stubBackend{name: "failing", err: errors.New("connection refused")}
	working := &stubBackend{name: "working", results: []types.SearchResult{
		{Identifier: "2301.07041", Title: "Paper A", Source: "working", RelevanceScore: 0.9},
	}}

	var buf bytes.Buffer
	req := Request{Queries: []Query{{FreeText: "x"}}, Backends: []Backend{failing, working}}
	out, err := Search(context.Background(), req, testCfg(), &buf)
	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
	assert.Equal(t, []string{"failing: connection refused"}, out.BackendErrors)
	assert.Contains(t, buf.String(), "warning: backend failing failed")
}

func TestSearch_RanksAndTruncates(t *testing.T) {
	var many []types.SearchResult
	for i := range 30 {
		many = append(many, types.SearchResult{
			Identifier:     fmt.Sprintf("id-%d", i),
			Title:          fmt.Sprintf("Paper %d", i),
			Source:         "stub",
			RelevanceScore: float64(i) / 30,
		})
	}
	cfg := testCfg()
	cfg.MaxResults = 10

	var buf bytes.Buffer
	req := Request{Queries: []Query{{FreeText: "x"}}, Backends: []Backend{&stubBackend{name: "stub", results: many}}}
	out, err := Search(context.Background(), req, cfg, &buf)
	require.NoError(t, err)
	require.Len(t, out.Results, 10)
	assert.Equal(t, "Paper 29", out.Results[0].Title)
	for i := 1; i < len(out.Results); i++ {
		assert.GreaterOrEqual(t, out.Results[i-1].RelevanceScore, out.Results[i].RelevanceScore)
	}
}

// queryBackend answers each free-text query from a fixed table.
type queryBackend struct {
	name    string
	answers map[string][]types.SearchResult
}

func (b *queryBackend) Name() string { return b.name }

func (b *queryBackend) Search(_ context.Context, q Query, _ types.SearchConfig) ([]types.SearchResult, error) {
	return b.answers[q.FreeText], nil
}

func TestSearch_MergesAcrossQueries(t *testing.T) {
	attention := types.SearchResult{Identifier: "1706.03762", PreferredAcquisitionID: "1706.03762", Title: "Attention Is All You Need", Source: "arxiv", RelevanceScore: 0.6}
	bert := types.SearchResult{Identifier: "1810.04805", PreferredAcquisitionID: "1810.04805", Title: "BERT", Source: "arxiv", RelevanceScore: 0.5}
	rescored := attention
	rescored.RelevanceScore = 0.8

	b := &queryBackend{name: "arxiv", answers: map[string][]types.SearchResult{
		"transformers":       {attention, bert},
		"attention networks": {rescored},
	}}
	req := Request{
		Queries:  []Query{{FreeText: "transformers"}, {}, {FreeText: "attention networks"}},
		Backends: []Backend{b},
	}
	out, err := Search(context.Background(), req, testCfg(), &bytes.Buffer{})
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	assert.Equal(t, 1, out.DupsRemoved)
	assert.Equal(t, "Attention Is All You Need", out.Results[0].Title)
	assert.Equal(t, 0.8, out.Results[0].RelevanceScore)
}

func TestSearch_MarksHeldResults(t *testing.T) {
	b := &stubBackend{name: "arxiv", results: []types.SearchResult{
		{Identifier: "1706.03762", PreferredAcquisitionID: "1706.03762", Title: "Attention Is All You Need", Source: "arxiv", RelevanceScore: 0.9},
		{Identifier: "1810.04805", PreferredAcquisitionID: "1810.04805", Title: "BERT", Source: "arxiv", RelevanceScore: 0.5},
	}}
	var asked []string
	req := Request{
		Queries:  []Query{{FreeText: "x"}},
		Backends: []Backend{b},
		Held: func(source string) bool {
			asked = append(asked, source)
			return source == "abstract:1706.03762"
		},
	}
	out, err := Search(context.Background(), req, testCfg(), &bytes.Buffer{})
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].InCollection)
	assert.False(t, out.Results[1].InCollection)
	assert.Equal(t, 1, out.Held())
	assert.ElementsMatch(t, []string{"abstract:1706.03762", "abstract:1810.04805"}, asked)

	var buf bytes.Buffer
	FormatTable(out, &buf)
	assert.Contains(t, buf.String(), "1 already in the collection")
}

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v5</id>
    <title>Attention Is All
      You Need</title>
    <summary>We propose a new architecture based solely on attention mechanisms.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <title>BERT</title>
    <summary>We introduce BERT.</summary>
    <published>2018-10-11T00:00:00Z</published>
    <author><name>Jacob Devlin</name></author>
  </entry>
</feed>`

func TestArxivBackend_Search(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "paperqa-test/0.1", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeedXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	b := &ArxivBackend{Client: ts.Client()}
	results, err := b.Search(context.Background(), Query{FreeText: "attention"}, testCfg())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, gotQuery, "search_query=all:attention")

	r := results[0]
	assert.Equal(t, "1706.03762", r.Identifier)
	assert.Equal(t, "Attention Is All You Need", r.Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, r.Authors)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762", r.URL)
	assert.Equal(t, "1706.03762", r.PreferredAcquisitionID)
	assert.Equal(t, 1.0, r.RelevanceScore)
	assert.Less(t, results[1].RelevanceScore, r.RelevanceScore)
}

func TestArxivBackend_RetriesRateLimit(t *testing.T) {
	oldDelay := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	defer func() { httputil.RetryBaseDelay = oldDelay }()

	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, arxivFeedXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	results, err := (&ArxivBackend{Client: ts.Client(), MaxRetries: 2}).Search(context.Background(), Query{FreeText: "bert"}, testCfg())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, calls)
}

func TestArxivBackend_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	_, err := (&ArxivBackend{Client: ts.Client()}).Search(context.Background(), Query{FreeText: "x"}, testCfg())
	assert.ErrorContains(t, err, "400")
}

func TestExtractArxivID(t *testing.T) {
	tests := map[string]string{
		"http://arxiv.org/abs/2301.07041v1":  "2301.07041",
		"https://arxiv.org/abs/1706.03762v5": "1706.03762",
		"http://arxiv.org/abs/2301.12345":    "2301.12345",
		"not a url":                          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractArxivID(in), in)
	}
}

func TestBuildArxivQuery(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"free text", Query{FreeText: "attention mechanisms"}, "all:attention+mechanisms"},
		{"author", Query{Author: "Vaswani"}, "au:Vaswani"},
		{"combined", Query{FreeText: "attention", Author: "Vaswani"}, "all:attention+AND+au:Vaswani"},
		{"keywords", Query{Keywords: []string{"transformers", "nlp"}}, "all:transformers+AND+all:nlp"},
		{"escaped", Query{FreeText: "C++ & rust"}, "all:C%2B%2B+%26+rust"},
		{"empty", Query{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildArxivQuery(tt.query))
		})
	}
}

func TestFormatTable(t *testing.T) {
	out := SearchOutput{
		Results: []types.SearchResult{
			{Title: "Paper A", Authors: []string{"Jane Smith"}, Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Source: "arxiv", RelevanceScore: 0.95},
			{Title: "Paper B", Authors: []string{"Al Jones", "Bo Doe"}, Date: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), Source: "semantic_scholar", RelevanceScore: 0.80},
		},
		DupsRemoved: 1,
	}
	var buf bytes.Buffer
	FormatTable(out, &buf)

	s := buf.String()
	assert.Contains(t, s, "Paper A")
	assert.Contains(t, s, "Smith2023")
	assert.Contains(t, s, "Al Jones et al.")
	assert.Contains(t, s, "1 duplicates removed")

	buf.Reset()
	FormatTable(SearchOutput{}, &buf)
	assert.Contains(t, buf.String(), "No results")
}

func TestFormatJSON(t *testing.T) {
	out := SearchOutput{Results: []types.SearchResult{{Identifier: "2301.07041", Title: "Paper A", Source: "arxiv"}}}
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(out, &buf))

	var parsed []types.SearchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed, 1)
	assert.Equal(t, "2301.07041", parsed[0].Identifier)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "attention is all you need", normalizeTitle("Attention Is All You Need!"))
	assert.Equal(t, "bert pretraining", normalizeTitle("  BERT:  Pre-training  "))
	assert.Equal(t, "", normalizeTitle(""))
}

func TestIsArxivID(t *testing.T) {
	assert.True(t, isArxivID("2301.07041"))
	assert.False(t, isArxivID("10.1234/foo"))
	assert.False(t, isArxivID("short"))
}
