// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns questions and chunk text into dense vectors. Every
// Embedder maps questions and documents into the same space.
package embed

import (
	"context"
	"fmt"

	"github.com/pdiddy/paperqa/pkg/types"
)

// Embedder computes embeddings.
type Embedder interface {
	// Name identifies the model.
	Name() string

	// Dimensions is the vector size, or 0 if unknown until the first call.
	Dimensions() int

	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// New returns the embedder selected by cfg.
func New(cfg types.EmbeddingConfig) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		e = NewOpenAI(model, cfg)
	case types.ProviderHashing:
		e = NewHashing(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q: use openai or hashing", cfg.Provider)
	}

	if cfg.QueryInstruction != "" || cfg.DocumentInstruction != "" {
		e = WithInstructions(e, cfg.QueryInstruction, cfg.DocumentInstruction)
	}
	return e, nil
}

// Instruction prefixes for instructor-style models.
const (
	ScientificQueryInstruction     = "Represent the scientific query for retrieving supporting documents; Input: "
	ScientificParagraphInstruction = "Represent the scientific paragraph for retrieval; Input: "
)

type instructed struct {
	Embedder
	query, document string
}

// WithInstructions prefixes queries and documents before embedding them.
func WithInstructions(e Embedder, query, document string) Embedder {
	return &instructed{Embedder: e, query: query, document: document}
}

func (e *instructed) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.document + t
	}
	return e.Embedder.EmbedDocuments(ctx, prefixed)
}

func (e *instructed) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.Embedder.EmbedQuery(ctx, e.query+text)
}
