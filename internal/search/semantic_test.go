// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperqa/internal/httputil"
	"github.com/pdiddy/paperqa/pkg/types"
)

// serveSemantic points the backend at a test server answering body and
// returns the query parameters and headers of the last request.
func serveSemantic(t *testing.T, status int, body string) (*SemanticScholarBackend, func() (url.Values, http.Header)) {
	t.Helper()
	var (
		params  url.Values
		headers http.Header
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params = r.URL.Query()
		headers = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	t.Cleanup(func() { semanticAPIBase = old })

	return &SemanticScholarBackend{Client: ts.Client(), MaxRetries: 1},
		func() (url.Values, http.Header) { return params, headers }
}

func semanticBody(papers ...string) string {
	return fmt.Sprintf(`{"total":%d,"offset":0,"data":[%s]}`, len(papers), strings.Join(papers, ","))
}

func TestSemanticScholar_RequestParams(t *testing.T) {
	b, last := serveSemantic(t, http.StatusOK, semanticBody())
	b.APIKey = "s2-key"
	cfg := testCfg()
	cfg.MaxResults = 15

	_, err := b.Search(context.Background(), Query{
		FreeText: "attention",
		Author:   "Vaswani",
		Keywords: []string{"transformers"},
		DateFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
	}, cfg)
	require.NoError(t, err)

	params, headers := last()
	assert.Equal(t, "attention Vaswani transformers", params.Get("query"))
	assert.Equal(t, "15", params.Get("limit"))
	assert.Equal(t, "2020-2023", params.Get("year"))
	assert.Contains(t, params.Get("fields"), "openAccessPdf")
	assert.Equal(t, "s2-key", headers.Get("x-api-key"))
	assert.Equal(t, "paperqa-test/0.1", headers.Get("User-Agent"))
}

func TestSemanticScholar_DefaultLimitAndNoKey(t *testing.T) {
	b, last := serveSemantic(t, http.StatusOK, semanticBody())
	cfg := testCfg()
	cfg.MaxResults = 0

	_, err := b.Search(context.Background(), Query{FreeText: "x"}, cfg)
	require.NoError(t, err)

	params, headers := last()
	assert.Equal(t, "20", params.Get("limit"))
	assert.Empty(t, params.Get("year"))
	assert.Empty(t, headers.Get("x-api-key"))
}

func TestSemanticScholar_ParsesPapers(t *testing.T) {
	b, _ := serveSemantic(t, http.StatusOK, semanticBody(
		`{"paperId":"abc","title":"Attention Is All You Need","abstract":"We propose a new architecture.",
		  "year":2017,"publicationDate":"2017-06-12","url":"https://www.semanticscholar.org/paper/abc",
		  "openAccessPdf":{"url":"https://arxiv.org/pdf/1706.03762"},
		  "authors":[{"authorId":"1","name":"Ashish Vaswani"},{"authorId":"2","name":"Noam Shazeer"}],
		  "externalIds":{"ArXiv":"1706.03762","DOI":"10.5555/3295222.3295349"}}`,
		`{"paperId":"def","title":"GPT-4 Technical Report","year":2023,
		  "url":"https://www.semanticscholar.org/paper/def",
		  "authors":[{"authorId":"3","name":"OpenAI"}],"externalIds":{"DOI":"10.48550/arXiv.2303.08774"}}`,
		`{"paperId":"ghi","title":"Untracked","authors":[],"externalIds":{}}`,
	))

	results, err := b.Search(context.Background(), Query{FreeText: "attention"}, testCfg())
	require.NoError(t, err)
	require.Len(t, results, 3)

	r0 := results[0]
	assert.Equal(t, "1706.03762", r0.Identifier)
	assert.Equal(t, "1706.03762", r0.PreferredAcquisitionID)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, r0.Authors)
	assert.Equal(t, time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC), r0.Date)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762", r0.URL)
	assert.Equal(t, "semantic_scholar", r0.Source)
	assert.Equal(t, 1.0, r0.RelevanceScore)

	r1 := results[1]
	assert.Equal(t, "10.48550/arXiv.2303.08774", r1.Identifier)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), r1.Date)
	assert.Equal(t, "https://www.semanticscholar.org/paper/def", r1.URL)

	assert.Equal(t, "ghi", results[2].Identifier)
	assert.InDelta(t, 0.1, results[2].RelevanceScore, 1e-9)
}

func TestSemanticScholar_Errors(t *testing.T) {
	oldDelay := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	defer func() { httputil.RetryBaseDelay = oldDelay }()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"rate limited", http.StatusTooManyRequests, "", "HTTP 429"},
		{"server error", http.StatusInternalServerError, "", "HTTP 500"},
		{"malformed", http.StatusOK, "{invalid", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := serveSemantic(t, tt.status, tt.body)
			_, err := b.Search(context.Background(), Query{FreeText: "x"}, testCfg())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := (&SemanticScholarBackend{}).Search(context.Background(), Query{}, types.SearchConfig{})
	assert.ErrorContains(t, err, "empty")
}

func TestBuildYearRange(t *testing.T) {
	y := func(year int) time.Time { return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, "2020-2023", buildYearRange(y(2020), y(2023)))
	assert.Equal(t, "2020-", buildYearRange(y(2020), time.Time{}))
	assert.Equal(t, "-2023", buildYearRange(time.Time{}, y(2023)))
	assert.Equal(t, "", buildYearRange(time.Time{}, time.Time{}))
}
