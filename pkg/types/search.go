// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for paperqa: search results,
// acquired papers, collection documents and chunks, answers, and the
// configuration structs for each component.
package types

import "time"

// SearchResult represents a candidate paper returned by an academic API query.
type SearchResult struct {
	// Identifier is the canonical ID from the source (arXiv ID, DOI, or URL).
	Identifier string `json:"identifier" yaml:"identifier"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Date is the publication or preprint date.
	Date time.Time `json:"date" yaml:"date"`

	// Source identifies which backend found this result (e.g. "arxiv").
	Source string `json:"source" yaml:"source"`

	// URL is the landing page of the paper.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// RelevanceScore is a value between 0.0 and 1.0 indicating relevance to the query.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// PreferredAcquisitionID is the identifier to download this paper with:
	// arXiv ID if available, then DOI, then URL.
	PreferredAcquisitionID string `json:"preferred_acquisition_id" yaml:"preferred_acquisition_id"`

	// InCollection reports that the collection already holds this paper's
	// abstract.
	InCollection bool `json:"in_collection,omitempty" yaml:"in_collection,omitempty"`
}
