// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads papers into a papers directory. Each PDF gets
// a YAML metadata sidecar with the same stem holding the title, authors,
// citation and key, so adding the PDF to a collection needs no model call
// to cite it.
package acquire

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperqa/internal/httputil"
	"github.com/pdiddy/paperqa/internal/search"
	"github.com/pdiddy/paperqa/pkg/types"
)

// SidecarExt is the extension of metadata sidecars.
const SidecarExt = ".yaml"

// BatchResult holds the outcome of a batch acquisition run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Papers     []*types.Paper
}

// Total returns the total number of identifiers processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any papers failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// SidecarPath returns the metadata sidecar path for a document path.
func SidecarPath(docPath string) string {
	return strings.TrimSuffix(docPath, filepath.Ext(docPath)) + SidecarExt
}

// AcquirePaper resolves a single identifier, downloads the PDF into
// cfg.PapersDir and writes its sidecar. An existing PDF is not downloaded
// again; skipped reports that case.
func AcquirePaper(ctx context.Context, client *http.Client, identifier string, cfg types.AcquisitionConfig, w io.Writer) (paper *types.Paper, skipped bool, err error) {
	idType, normalized := Classify(identifier)
	if idType == TypeUnknown {
		return nil, false, fmt.Errorf("unrecognized identifier format: %q", identifier)
	}

	slug := Slug(idType, normalized)
	pdfPath := filepath.Join(cfg.PapersDir, slug+".pdf")
	metaPath := SidecarPath(pdfPath)

	if _, err := os.Stat(pdfPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", slug)
		p, readErr := ReadSidecar(metaPath)
		if readErr != nil {
			p = &types.Paper{ID: slug, PDFPath: pdfPath}
		}
		return p, true, nil
	}

	pdfURL := PDFURL(idType, normalized)
	if err := os.MkdirAll(cfg.PapersDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("creating directory %s: %w", cfg.PapersDir, err)
	}

	fmt.Fprintf(w, "downloading: %s (%s)\n", slug, idType)
	if err := downloadFile(ctx, client, pdfURL, pdfPath, cfg); err != nil {
		return nil, false, fmt.Errorf("downloading %s: %w", slug, err)
	}

	p := &types.Paper{
		ID:        slug,
		SourceURL: pdfURL,
		PDFPath:   pdfPath,
		Source:    idType.String(),
	}

	switch idType {
	case TypeArxiv:
		if err := fetchArxivMetadata(ctx, client, normalized, p, cfg); err != nil {
			fmt.Fprintf(w, "  warning: arXiv metadata fetch failed: %v\n", err)
		}
	case TypeDOI:
		if err := fetchCrossRefMetadata(ctx, client, normalized, p, cfg); err != nil {
			fmt.Fprintf(w, "  warning: CrossRef metadata fetch failed: %v\n", err)
		}
	}
	cite(p, normalized)

	if err := WriteSidecar(p, metaPath); err != nil {
		return nil, false, fmt.Errorf("writing metadata for %s: %w", slug, err)
	}
	return p, false, nil
}

// cite fills Citation and Key from the fetched metadata. Papers without
// authors keep both empty so the collection falls back to asking a model.
func cite(p *types.Paper, identifier string) {
	if len(p.Authors) == 0 || p.Title == "" {
		return
	}
	r := types.SearchResult{
		Identifier: identifier,
		Title:      p.Title,
		Authors:    p.Authors,
		Date:       p.Date,
		Source:     p.Source,
		URL:        p.SourceURL,
	}
	p.Citation = search.Citation(r)
	p.Key = search.Key(r)
}

// AcquireBatch processes identifiers in order, printing per-item status
// and returning a summary. It continues after individual failures and
// waits cfg.DownloadDelay between consecutive downloads. Cancelling ctx
// stops the batch; the identifiers not yet tried are not counted.
func AcquireBatch(ctx context.Context, client *http.Client, identifiers []string, cfg types.AcquisitionConfig, w io.Writer) BatchResult {
	var result BatchResult
	for i, id := range identifiers {
		if i > 0 && cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.DownloadDelay):
			}
		}
		if ctx.Err() != nil {
			fmt.Fprintf(w, "cancelled: %d identifiers not processed\n", len(identifiers)-i)
			break
		}
		paper, wasSkipped, err := AcquirePaper(ctx, client, id, cfg, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			result.Failed++
			continue
		}
		if wasSkipped {
			result.Skipped++
		} else {
			result.Downloaded++
		}
		result.Papers = append(result.Papers, paper)
	}
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result
}

// get issues a GET with the configured User-Agent, retrying on rate limits.
func get(ctx context.Context, client *http.Client, url, accept string, cfg types.AcquisitionConfig) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return httputil.DoWithRetry(ctx, client, req, 0)
}

// downloadFile fetches url to destPath through a temporary file in the
// same directory so a failed download never leaves a partial PDF.
func downloadFile(ctx context.Context, client *http.Client, url, destPath string, cfg types.AcquisitionConfig) error {
	resp, err := get(ctx, client, url, "application/pdf", cfg)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

func fetchArxivMetadata(ctx context.Context, client *http.Client, arxivID string, paper *types.Paper, cfg types.AcquisitionConfig) error {
	resp, err := get(ctx, client, fmt.Sprintf("%s?id_list=%s", arxivAPIBase, arxivID), "", cfg)
	if err != nil {
		return fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return fmt.Errorf("no entries found for arXiv ID %s", arxivID)
	}

	entry := feed.Entries[0]
	paper.Title = strings.Join(strings.Fields(entry.Title), " ")
	paper.Abstract = strings.TrimSpace(entry.Summary)
	for _, a := range entry.Authors {
		paper.Authors = append(paper.Authors, strings.TrimSpace(a.Name))
	}
	if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
		paper.Date = t
	}
	return nil
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title    []string         `json:"title"`
	Abstract string           `json:"abstract"`
	Author   []crossrefAuthor `json:"author"`
	Created  crossrefDate     `json:"created"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func fetchCrossRefMetadata(ctx context.Context, client *http.Client, doi string, paper *types.Paper, cfg types.AcquisitionConfig) error {
	resp, err := get(ctx, client, crossrefAPIBase+doi, "application/json", cfg)
	if err != nil {
		return fmt.Errorf("CrossRef API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("CrossRef API returned HTTP %d", resp.StatusCode)
	}

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return fmt.Errorf("parsing CrossRef response: %w", err)
	}

	if len(cr.Message.Title) > 0 {
		paper.Title = cr.Message.Title[0]
	}
	paper.Abstract = cr.Message.Abstract
	for _, a := range cr.Message.Author {
		paper.Authors = append(paper.Authors, strings.TrimSpace(a.Given+" "+a.Family))
	}
	if len(cr.Message.Created.DateParts) > 0 && len(cr.Message.Created.DateParts[0]) >= 3 {
		parts := cr.Message.Created.DateParts[0]
		paper.Date = time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	}
	return nil
}

// WriteSidecar writes a Paper record to a YAML file.
func WriteSidecar(paper *types.Paper, path string) error {
	data, err := yaml.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSidecar reads a Paper record from a YAML file.
func ReadSidecar(path string) (*types.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var paper types.Paper
	if err := yaml.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &paper, nil
}
