// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/paperqa/pkg/types"
)

// citationPattern matches inline citations: (Key), [Key], (Key1; Key2),
// (Key pages 3-4, Key2).
var citationPattern = regexp.MustCompile(`\(([^()]+)\)|\[([^\[\]]+)\]`)

// citedKeys returns the first word of every comma or semicolon separated
// item inside parentheses or brackets in text.
func citedKeys(text string) map[string]bool {
	cited := make(map[string]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		inner := m[1] + m[2]
		for _, part := range strings.FieldsFunc(inner, func(r rune) bool { return r == ';' || r == ',' }) {
			if fields := strings.Fields(part); len(fields) > 0 {
				cited[fields[0]] = true
			}
		}
	}
	return cited
}

// bibliography collects the contexts the answer cites, by document key or
// by the leading word of the chunk key (e.g. abstract_Smith2020).
// Entries keep the order of first appearance in contexts.
func bibliography(answer string, contexts []types.Context) ([]types.BibEntry, map[string]string) {
	cited := citedKeys(answer)
	var bib []types.BibEntry
	seen := make(map[string]bool)
	passages := make(map[string]string)
	for _, c := range contexts {
		chunkKey, _, _ := strings.Cut(c.Key, " ")
		docKey := c.DocKey
		if docKey == "" {
			docKey = chunkKey
		}
		if !cited[docKey] && !cited[chunkKey] {
			continue
		}
		passages[c.Key] = c.Text
		if !seen[docKey] {
			seen[docKey] = true
			bib = append(bib, types.BibEntry{Key: docKey, Citation: c.Citation})
		}
	}
	if len(passages) == 0 {
		passages = nil
	}
	return bib, passages
}

// formatReferences renders "1. (Key): citation" entries separated by blank
// lines.
func formatReferences(bib []types.BibEntry) string {
	refs := make([]string, len(bib))
	for i, b := range bib {
		refs[i] = fmt.Sprintf("%d. (%s): %s", i+1, b.Key, b.Citation)
	}
	return strings.Join(refs, "\n\n")
}
