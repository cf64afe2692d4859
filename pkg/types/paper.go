// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Paper holds metadata and file paths for an acquired paper. It is written
// as a YAML sidecar next to the PDF and read back when the PDF is added to
// a collection, so the citation does not have to be guessed by a model.
type Paper struct {
	// ID is a slug derived from the paper identifier (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// SourceURL is the URL from which the paper was downloaded.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// PDFPath is the local filesystem path to the downloaded PDF.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Date is the publication or preprint date.
	Date time.Time `json:"date" yaml:"date"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Source identifies how the PDF was obtained (e.g. "arxiv", "doi", "url").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Citation is the formatted citation used when the paper is added.
	Citation string `json:"citation,omitempty" yaml:"citation,omitempty"`

	// Key is the citation key used when the paper is added (e.g. "Vaswani2017").
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
}
