// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the language models used for citations, chunk
// summaries, and answers. A Model names either a model identifier that a
// Factory turns into a Client, or a Client supplied by the caller; it is
// resolved once when a collection is constructed.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/paperqa/pkg/types"
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Usage counts tokens consumed by a call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// Add accumulates o into u.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
}

// Response is a completion.
type Response struct {
	Text  string
	Usage Usage

	// Cached reports that the response came from a Cache and cost nothing.
	Cached bool
}

// Client completes prompts.
type Client interface {
	// Name identifies the model, and is part of the cache key.
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// Factory builds a Client for a model identifier.
type Factory func(model string) (Client, error)

// Model selects a client: NamedModel or CustomClient.
type Model struct {
	name   string
	client Client
}

// NamedModel selects a model by identifier.
func NamedModel(id string) Model { return Model{name: id} }

// CustomClient selects a caller-built client.
func CustomClient(c Client) Model { return Model{client: c} }

// IsZero reports whether neither variant was set.
func (m Model) IsZero() bool { return m.name == "" && m.client == nil }

func (m Model) String() string {
	if m.client != nil {
		return m.client.Name()
	}
	return m.name
}

// Resolve returns the Client for m, calling f for named models.
func (m Model) Resolve(f Factory) (Client, error) {
	switch {
	case m.client != nil:
		return m.client, nil
	case m.name == "":
		return nil, fmt.Errorf("no model configured")
	case f == nil:
		return nil, fmt.Errorf("model %q: no client factory", m.name)
	}
	c, err := f(m.name)
	if err != nil {
		return nil, fmt.Errorf("creating client for %s: %w", m.name, err)
	}
	return c, nil
}

// NewFactory returns a Factory for the provider in cfg.
func NewFactory(cfg types.AIConfig, httpClient *http.Client) Factory {
	return func(model string) (Client, error) {
		switch cfg.Provider {
		case types.ProviderOpenAI, "":
			return NewOpenAI(model, cfg), nil
		case types.ProviderAnthropic:
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("anthropic provider requires an API key")
			}
			return &Anthropic{
				APIKey:     cfg.APIKey,
				Model:      model,
				Client:     httpClient,
				MaxRetries: cfg.MaxRetries,
			}, nil
		default:
			return nil, fmt.Errorf("unsupported provider %q: use openai or anthropic", cfg.Provider)
		}
	}
}
