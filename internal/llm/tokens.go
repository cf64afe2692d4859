// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with the cl100k_base encoding. The zero value
// and nil counter count nothing.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding: %w", err)
	}
	return &TokenCounter{encoding: enc}, nil
}

// Count returns the number of tokens in text.
func (t *TokenCounter) Count(text string) int {
	if t == nil || t.encoding == nil {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Truncate returns the longest prefix of text within maxTokens tokens.
func (t *TokenCounter) Truncate(text string, maxTokens int) string {
	if t == nil || t.encoding == nil || maxTokens <= 0 {
		return text
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.encoding.Decode(tokens[:maxTokens])
}

type estimatingClient struct {
	Client
	counter *TokenCounter
}

// WithUsageEstimate wraps c so responses that report no usage get a
// tiktoken estimate. Cached responses stay at zero.
func WithUsageEstimate(c Client, counter *TokenCounter) Client {
	if counter == nil {
		return c
	}
	return &estimatingClient{Client: c, counter: counter}
}

func (c *estimatingClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.Client.Complete(ctx, req)
	if err != nil || resp.Cached || resp.Usage.Total() > 0 {
		return resp, err
	}
	resp.Usage = Usage{
		PromptTokens:     c.counter.Count(req.System) + c.counter.Count(req.Prompt),
		CompletionTokens: c.counter.Count(resp.Text),
	}
	return resp, nil
}
