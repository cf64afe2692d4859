// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/paperqa/internal/llm"
	"github.com/pdiddy/paperqa/pkg/types"
)

// DefaultLengthHint is the answer length requested when none is given.
const DefaultLengthHint = "about 100 words"

// minContextChars is the shortest context string worth answering from.
const minContextChars = 10

// listMarker matches a leading "1.", "2)", "-" or "*".
var listMarker = regexp.MustCompile(`^\s*(\d+[.)]|[-*])\s+`)

// QueryRequest is a question with its retrieval settings.
type QueryRequest struct {
	Question string

	// K is the number of chunks retrieved; it must be at least MaxSources.
	K          int
	MaxSources int

	// LengthHint is inserted into the answer prompt.
	LengthHint string

	// Diversity selects marginal-relevance retrieval.
	Diversity bool

	// Embedding, when set, is used instead of embedding Question.
	Embedding []float32

	// VectorSearchOnly stops after evidence selection.
	VectorSearchOnly bool

	// KeyFilter restricts evidence to these document keys.
	KeyFilter []string
}

// DefaultQuery returns a request with the usual settings: ten candidates,
// five sources, marginal-relevance retrieval.
func DefaultQuery(question string) QueryRequest {
	return QueryRequest{
		Question:   question,
		K:          10,
		MaxSources: 5,
		LengthHint: DefaultLengthHint,
		Diversity:  true,
	}
}

// Query answers a question from the collection. When no evidence is
// accepted the answer says so without calling the answer model.
func (d *Docs) Query(ctx context.Context, req QueryRequest) (*types.Answer, error) {
	if req.K < req.MaxSources {
		return nil, fmt.Errorf("%w: k (%d) must be at least max sources (%d)", ErrInvalidParameter, req.K, req.MaxSources)
	}
	if req.LengthHint == "" {
		req.LengthHint = DefaultLengthHint
	}

	ans := &types.Answer{Question: req.Question}
	if req.Embedding != nil {
		ans.Embedding = req.Embedding
		ans.FromEmbedding = true
	}

	ans, err := d.GetEvidence(ctx, ans, EvidenceOptions{
		K:          req.K,
		MaxSources: req.MaxSources,
		Diversity:  req.Diversity,
		KeyFilter:  req.KeyFilter,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case len(ans.ContextString) < minContextChars:
		ans.Answer = insufficientAnswer
	case req.VectorSearchOnly:
		ans.FormattedAnswer = fmt.Sprintf("Question: %s\n\n%s\n", req.Question, ans.ContextString)
		return ans, nil
	default:
		text, err := d.answer(ctx, ans, req.LengthHint)
		if err != nil {
			return nil, err
		}
		ans.Answer = strings.TrimSpace(strings.ReplaceAll(text, exampleCitation, ""))
	}

	ans.Bibliography, ans.Passages = bibliography(ans.Answer, ans.Contexts)
	ans.References = formatReferences(ans.Bibliography)
	ans.FormattedAnswer = fmt.Sprintf("Question: %s\n\n%s\n", req.Question, ans.Answer)
	if ans.References != "" {
		ans.FormattedAnswer += "\nReferences\n\n" + ans.References + "\n"
	}
	return ans, nil
}

func (d *Docs) answer(ctx context.Context, ans *types.Answer, length string) (string, error) {
	prompt, err := render(answerPromptTmpl, answerInput{Question: ans.Question, Context: ans.ContextString, Length: length})
	if err != nil {
		return "", err
	}
	resp, err := d.answerer.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	d.addUsage(resp.Usage)
	ans.Tokens += resp.Usage.Total()
	return resp.Text, nil
}

// SearchQueries asks the summary model for n keyword searches that would
// find papers relevant to question.
func (d *Docs) SearchQueries(ctx context.Context, question string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	prompt, err := render(searchPromptTmpl, searchInput{Question: question, N: n})
	if err != nil {
		return nil, err
	}
	resp, err := d.summary.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("generating search queries: %w", err)
	}
	d.addUsage(resp.Usage)

	var queries []string
	for _, line := range strings.Split(resp.Text, "\n") {
		line = strings.Trim(strings.TrimSpace(listMarker.ReplaceAllString(line, "")), `"`)
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) == n {
			break
		}
	}
	return queries, nil
}
