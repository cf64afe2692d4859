// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/paperqa/internal/fanout"
	"github.com/pdiddy/paperqa/internal/llm"
	"github.com/pdiddy/paperqa/internal/vectorindex"
	"github.com/pdiddy/paperqa/pkg/types"
)

// keyFilterFactor widens retrieval when results are filtered by key.
const keyFilterFactor = 10

// fetchFactor sizes the MMR candidate pool relative to k.
const fetchFactor = 5

// EvidenceOptions controls evidence selection.
type EvidenceOptions struct {
	// K is the number of chunks retrieved.
	K int

	// MaxSources caps accepted contexts.
	MaxSources int

	// Diversity selects marginal-relevance retrieval over plain similarity.
	Diversity bool

	// KeyFilter, when non-empty, restricts evidence to these document keys.
	KeyFilter []string
}

type summaryResult struct {
	text  string
	usage llm.Usage
}

// GetEvidence retrieves chunks for ans.Question, summarizes each against the
// question and records the relevant ones in ans.Contexts and
// ans.ContextString. ans.Embedding is computed when nil and kept for reuse.
func (d *Docs) GetEvidence(ctx context.Context, ans *types.Answer, opts EvidenceOptions) (*types.Answer, error) {
	if opts.K <= 0 || opts.MaxSources <= 0 {
		return nil, fmt.Errorf("%w: k and max sources must be positive", ErrInvalidParameter)
	}

	store, err := d.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	k := opts.K
	if len(opts.KeyFilter) > 0 {
		k *= keyFilterFactor
	}

	if ans.Embedding == nil {
		if ans.Embedding, err = d.embedder.EmbedQuery(ctx, ans.Question); err != nil {
			return nil, fmt.Errorf("embedding question: %w", err)
		}
	}

	var hits []vectorindex.Hit
	if opts.Diversity {
		hits, err = store.MaxMarginalRelevanceSearch(ctx, ans.Embedding, k, fetchFactor*k, vectorindex.DefaultLambda)
	} else {
		hits, err = store.SimilaritySearch(ctx, ans.Embedding, k)
	}
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}

	d.logger.Debug("summarizing candidates", "question", ans.Question, "candidates", len(hits))
	results := fanout.Map(ctx, hits, fanout.Options{Concurrency: d.width, Limiter: d.limiter},
		func(ctx context.Context, _ int, h vectorindex.Hit) (summaryResult, error) {
			return d.summarize(ctx, ans.Question, h)
		})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var usage llm.Usage
	summaries := make([]string, len(hits))
	for i, r := range results {
		usage.Add(r.Value.usage)
		if !r.OK() {
			d.logger.Debug("summary failed", "key", hits[i].Metadata.Key, "error", r.Err)
			summaries[i] = notApplicable
			continue
		}
		summaries[i] = r.Value.text
	}
	if errs := fanout.Errors(results); len(errs) > 0 {
		d.logger.Warn("summaries failed, treating chunks as not applicable",
			"failed", len(errs), "candidates", len(hits), "error", errs[0])
	}
	ans.Tokens += usage.Total()

	allowed := make(map[string]bool, len(opts.KeyFilter))
	for _, key := range opts.KeyFilter {
		allowed[key] = true
	}

	for i, h := range hits {
		if len(ans.Contexts) >= opts.MaxSources {
			break
		}
		if len(allowed) > 0 && !allowed[h.Metadata.DocKey] {
			continue
		}
		if strings.Contains(summaries[i], notApplicable) {
			continue
		}
		if _, dup := ans.Context(h.Metadata.UniqueID); dup {
			continue
		}
		ans.Contexts = append(ans.Contexts, types.Context{
			ID:       h.Metadata.UniqueID,
			Key:      h.Metadata.Key,
			DocKey:   h.Metadata.DocKey,
			Citation: h.Metadata.Citation,
			Summary:  summaries[i],
			Text:     h.Text,
			Score:    h.Score,
		})
	}

	ans.ContextString = contextString(ans.Contexts)
	return ans, nil
}

func (d *Docs) summarize(ctx context.Context, question string, h vectorindex.Hit) (summaryResult, error) {
	prompt, err := render(summaryPromptTmpl, summaryInput{Question: question, Text: h.Text, Citation: h.Metadata.Citation})
	if err != nil {
		return summaryResult{}, err
	}
	resp, err := d.summary.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return summaryResult{}, err
	}
	d.addUsage(resp.Usage)
	return summaryResult{text: strings.TrimSpace(resp.Text), usage: resp.Usage}, nil
}

// contextString renders accepted evidence for the answer prompt.
func contextString(contexts []types.Context) string {
	if len(contexts) == 0 {
		return ""
	}
	parts := make([]string, len(contexts))
	keys := make([]string, len(contexts))
	for i, c := range contexts {
		parts[i] = c.Key + ": " + c.Summary
		keys[i] = c.Key
	}
	return strings.Join(parts, "\n\n") + "\n\nValid keys: " + strings.Join(keys, ", ")
}
