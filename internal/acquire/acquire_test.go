// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperqa/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType IdentifierType
		wantNorm string
	}{
		{"arxiv bare", "2301.07041", TypeArxiv, "2301.07041"},
		{"arxiv prefixed", "arXiv:2301.07041", TypeArxiv, "2301.07041"},
		{"arxiv versioned", "2301.07041v2", TypeArxiv, "2301.07041v2"},
		{"arxiv five digit", "2301.12345", TypeArxiv, "2301.12345"},
		{"doi simple", "10.1145/1234567.1234568", TypeDOI, "10.1145/1234567.1234568"},
		{"doi prefixed", "doi:10.1038/s41586-024-07487-w", TypeDOI, "10.1038/s41586-024-07487-w"},
		{"doi resolver url", "https://doi.org/10.1038/nature14539", TypeDOI, "10.1038/nature14539"},
		{"url https", "https://example.com/paper.pdf", TypeURL, "https://example.com/paper.pdf"},
		{"unknown bare word", "not-an-id", TypeUnknown, "not-an-id"},
		{"unknown empty", "", TypeUnknown, ""},
		{"whitespace trimmed", "  2301.07041  ", TypeArxiv, "2301.07041"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.input)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantNorm, gotNorm)
		})
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "2301.07041", Slug(TypeArxiv, "2301.07041"))
	assert.Equal(t, "10.1145-1234567.1234568", Slug(TypeDOI, "10.1145/1234567.1234568"))
	assert.Equal(t, "my-paper", Slug(TypeURL, "https://example.com/my-paper.pdf"))
	assert.Equal(t, urlHashSlug("https://example.com/"), Slug(TypeURL, "https://example.com/"))
	assert.True(t, strings.HasPrefix(urlHashSlug("x"), "url-"))
}

func TestPDFURL(t *testing.T) {
	assert.Equal(t, arxivPDFBase+"2301.07041", PDFURL(TypeArxiv, "2301.07041"))
	assert.Equal(t, doiBase+"10.1145/1234567", PDFURL(TypeDOI, "10.1145/1234567"))
	assert.Equal(t, "https://example.com/paper.pdf", PDFURL(TypeURL, "https://example.com/paper.pdf"))
	assert.Empty(t, PDFURL(TypeUnknown, "foo"))
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "/papers/2301.07041.yaml", SidecarPath("/papers/2301.07041.pdf"))
	assert.Equal(t, "notes.yaml", SidecarPath("notes.txt"))
}

const sampleArxivXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Test Paper
      Title</title>
    <summary>This is the abstract of the test paper.</summary>
    <published>2023-01-17T18:58:28Z</published>
    <author><name>Alice Smith</name></author>
    <author><name>Bob Jones</name></author>
  </entry>
</feed>`

const sampleCrossRefJSON = `{
  "status": "ok",
  "message": {
    "title": ["CrossRef Paper Title"],
    "abstract": "Abstract from CrossRef.",
    "author": [
      {"given": "Carol", "family": "White"},
      {"given": "Dave", "family": "Brown"}
    ],
    "created": {"date-parts": [[2023, 6, 15]]}
  }
}`

const fakePDFContent = "%PDF-1.4 fake"

// newTestServer serves fake PDFs, arXiv metadata and CrossRef metadata by
// path and points the package base URLs at itself.
func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var downloads atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/pdf/"), strings.HasPrefix(r.URL.Path, "/doi/"):
			downloads.Add(1)
			assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, fakePDFContent)
		case r.URL.Path == "/api/query":
			fmt.Fprint(w, sampleArxivXML)
		case strings.HasPrefix(r.URL.Path, "/works/"):
			fmt.Fprint(w, sampleCrossRefJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	origPDF, origAPI, origDOI, origCR := arxivPDFBase, arxivAPIBase, doiBase, crossrefAPIBase
	arxivPDFBase = ts.URL + "/pdf/"
	arxivAPIBase = ts.URL + "/api/query"
	doiBase = ts.URL + "/doi/"
	crossrefAPIBase = ts.URL + "/works/"
	t.Cleanup(func() {
		arxivPDFBase, arxivAPIBase, doiBase, crossrefAPIBase = origPDF, origAPI, origDOI, origCR
	})
	return ts, &downloads
}

func testConfig(dir string) types.AcquisitionConfig {
	return types.AcquisitionConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Second, UserAgent: "paperqa-test/0.1"},
		PapersDir:  dir,
	}
}

func TestAcquirePaper_Arxiv(t *testing.T) {
	ts, _ := newTestServer(t)
	dir := t.TempDir()
	var buf bytes.Buffer

	paper, skipped, err := AcquirePaper(context.Background(), ts.Client(), "arXiv:2301.07041", testConfig(dir), &buf)
	require.NoError(t, err)
	assert.False(t, skipped)

	pdfPath := filepath.Join(dir, "2301.07041.pdf")
	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, fakePDFContent, string(data))

	assert.Equal(t, pdfPath, paper.PDFPath)
	assert.Equal(t, "arxiv", paper.Source)
	assert.Equal(t, "Test Paper Title", paper.Title)
	assert.Equal(t, []string{"Alice Smith", "Bob Jones"}, paper.Authors)
	assert.Equal(t, "Smith2023", paper.Key)
	assert.Contains(t, paper.Citation, "Alice Smith, Bob Jones. Test Paper Title. arXiv. 2301.07041. Jan., 2023.")
	assert.Contains(t, buf.String(), "downloading: 2301.07041 (arxiv)")

	sidecar, err := ReadSidecar(filepath.Join(dir, "2301.07041.yaml"))
	require.NoError(t, err)
	assert.Equal(t, paper.Citation, sidecar.Citation)
	assert.Equal(t, "Smith2023", sidecar.Key)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestAcquirePaper_DOI(t *testing.T) {
	ts, _ := newTestServer(t)
	dir := t.TempDir()

	paper, _, err := AcquirePaper(context.Background(), ts.Client(), "10.1145/1234567.1234568", testConfig(dir), &bytes.Buffer{})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "10.1145-1234567.1234568.pdf"))
	assert.Equal(t, "CrossRef Paper Title", paper.Title)
	assert.Equal(t, "White2023", paper.Key)
	assert.Equal(t, "doi", paper.Source)
}

func TestAcquirePaper_URLHasNoCitation(t *testing.T) {
	ts, _ := newTestServer(t)
	dir := t.TempDir()

	paper, _, err := AcquirePaper(context.Background(), ts.Client(), ts.URL+"/pdf/direct.pdf", testConfig(dir), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "direct", paper.ID)
	assert.Empty(t, paper.Citation)
	assert.Empty(t, paper.Key)
}

func TestAcquirePaper_SkipsExisting(t *testing.T) {
	ts, downloads := newTestServer(t)
	dir := t.TempDir()
	cfg := testConfig(dir)

	_, _, err := AcquirePaper(context.Background(), ts.Client(), "2301.07041", cfg, &bytes.Buffer{})
	require.NoError(t, err)

	var buf bytes.Buffer
	paper, skipped, err := AcquirePaper(context.Background(), ts.Client(), "2301.07041", cfg, &buf)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, int32(1), downloads.Load())
	assert.Equal(t, "Test Paper Title", paper.Title, "metadata read back from the sidecar")
	assert.Contains(t, buf.String(), "skipped: 2301.07041")
}

func TestAcquirePaper_Errors(t *testing.T) {
	ts, _ := newTestServer(t)
	cfg := testConfig(t.TempDir())

	_, _, err := AcquirePaper(context.Background(), ts.Client(), "not-a-valid-id", cfg, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unrecognized identifier")

	_, _, err = AcquirePaper(context.Background(), ts.Client(), ts.URL+"/missing.pdf", cfg, &bytes.Buffer{})
	assert.ErrorContains(t, err, "HTTP 404")
	assert.NoFileExists(t, filepath.Join(cfg.PapersDir, "missing.pdf"))
}

func TestAcquireBatch(t *testing.T) {
	ts, _ := newTestServer(t)
	var buf bytes.Buffer

	result := AcquireBatch(context.Background(), ts.Client(), []string{
		"2301.07041",
		"bad-identifier",
		ts.URL + "/pdf/direct.pdf",
	}, testConfig(t.TempDir()), &buf)

	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Total())
	assert.True(t, result.HasFailures())
	assert.Len(t, result.Papers, 2)
	assert.Contains(t, buf.String(), "Batch summary: 2 downloaded, 0 skipped, 1 failed (total: 3)")
}

func TestAcquireBatch_Cancelled(t *testing.T) {
	ts, downloads := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	result := AcquireBatch(ctx, ts.Client(), []string{"2301.07041", "2301.07042"}, testConfig(t.TempDir()), &buf)
	assert.Equal(t, 0, result.Total())
	assert.Equal(t, int32(0), downloads.Load())
	assert.Contains(t, buf.String(), "cancelled: 2 identifiers not processed")
}

func TestSidecarRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2301.07041.yaml")
	paper := &types.Paper{
		ID:        "2301.07041",
		SourceURL: "https://arxiv.org/pdf/2301.07041",
		PDFPath:   "/papers/2301.07041.pdf",
		Title:     "Test Paper",
		Authors:   []string{"Alice", "Bob"},
		Date:      time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC),
		Citation:  "Alice, Bob. Test Paper. 2023.",
		Key:       "Alice2023",
	}
	require.NoError(t, WriteSidecar(paper, path))

	got, err := ReadSidecar(path)
	require.NoError(t, err)
	assert.Equal(t, paper, got)

	require.NoError(t, os.WriteFile(path, []byte("title: [unterminated"), 0o644))
	_, err = ReadSidecar(path)
	assert.Error(t, err)
}
