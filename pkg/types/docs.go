// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Metadata travels with every chunk into the vector index and back out of
// search results.
type Metadata struct {
	// UniqueID identifies the chunk across the collection.
	UniqueID string `json:"unique_id" yaml:"unique_id"`

	// DocKey is the key of the owning document (e.g. "Smith2020a").
	DocKey string `json:"dockey" yaml:"dockey"`

	// Key is the short per-chunk key shown to the model
	// (e.g. "Smith2020a pages 3-4").
	Key string `json:"key" yaml:"key"`

	// Citation is the owning document's citation text.
	Citation string `json:"citation" yaml:"citation"`
}

// Chunk is a bounded span of a document's extracted text.
type Chunk struct {
	Text     string   `json:"text" yaml:"text"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Document is one source added to a collection.
type Document struct {
	// Source is the path or identifier the document was added from.
	Source string `json:"source" yaml:"source"`

	// Key is the unique citation key allocated on add.
	Key string `json:"key" yaml:"key"`

	// Citation is the free-text citation.
	Citation string `json:"citation" yaml:"citation"`

	// Chunks holds the document text in order.
	Chunks []Chunk `json:"chunks,omitempty" yaml:"chunks,omitempty"`

	// AddedAt is when the document entered the collection.
	AddedAt time.Time `json:"added_at" yaml:"added_at"`
}

// DocPreview summarizes a document without its text.
type DocPreview struct {
	Chunks   int    `json:"chunks" yaml:"chunks"`
	Key      string `json:"key" yaml:"key"`
	Citation string `json:"citation" yaml:"citation"`
	Source   string `json:"source" yaml:"source"`
}

// Context is one piece of accepted evidence.
type Context struct {
	// ID is the chunk unique id.
	ID string `json:"id" yaml:"id"`

	// Key is the short chunk key; DocKey the owning document key.
	Key    string `json:"key" yaml:"key"`
	DocKey string `json:"dockey" yaml:"dockey"`

	Citation string `json:"citation" yaml:"citation"`

	// Summary is the model's relevance summary of Text.
	Summary string `json:"summary" yaml:"summary"`

	// Text is the raw chunk text.
	Text string `json:"text" yaml:"text"`

	// Score is the retrieval similarity.
	Score float64 `json:"score" yaml:"score"`
}

// Answer is the per-query result. The evidence selector fills Contexts and
// ContextString; the answer composer fills the rest.
type Answer struct {
	Question string `json:"question" yaml:"question"`

	// Embedding is the question vector, computed once and reused.
	Embedding []float32 `json:"-" yaml:"-"`

	// FromEmbedding reports that the caller supplied Embedding.
	FromEmbedding bool `json:"from_embedding" yaml:"from_embedding"`

	// Contexts holds accepted evidence in retrieval order.
	Contexts []Context `json:"contexts" yaml:"contexts"`

	// ContextString is the evidence handed to the answer model.
	ContextString string `json:"context" yaml:"context"`

	// Answer is the model's answer text.
	Answer string `json:"answer" yaml:"answer"`

	// FormattedAnswer is the answer with question and reference list.
	FormattedAnswer string `json:"formatted_answer" yaml:"formatted_answer"`

	// References is the numbered reference list.
	References string `json:"references" yaml:"references"`

	// Bibliography maps cited document keys to citations in citation order.
	Bibliography []BibEntry `json:"bibliography,omitempty" yaml:"bibliography,omitempty"`

	// Passages maps cited chunk keys to their raw text.
	Passages map[string]string `json:"passages,omitempty" yaml:"passages,omitempty"`

	// Tokens is the total model usage for this query.
	Tokens int `json:"tokens" yaml:"tokens"`
}

// BibEntry is one cited source.
type BibEntry struct {
	Key      string `json:"key" yaml:"key"`
	Citation string `json:"citation" yaml:"citation"`
}

// Context returns the accepted context with the given chunk id.
func (a *Answer) Context(id string) (Context, bool) {
	for _, c := range a.Contexts {
		if c.ID == id {
			return c, true
		}
	}
	return Context{}, false
}

// String returns the formatted answer.
func (a *Answer) String() string {
	return a.FormattedAnswer
}
