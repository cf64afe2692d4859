// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/paperqa/pkg/types"
)

// mlaMonths abbreviates month names the MLA way.
var mlaMonths = [...]string{
	"Jan.", "Feb.", "Mar.", "Apr.", "May", "June",
	"July", "Aug.", "Sept.", "Oct.", "Nov.", "Dec.",
}

// Key returns the citation key for a result: the surname of the first
// author followed by the publication year, e.g. "Vaswani2017". Non-letters
// are dropped from the surname. Results without authors use "Anon".
func Key(r types.SearchResult) string {
	surname := "Anon"
	if len(r.Authors) > 0 {
		if fields := strings.Fields(r.Authors[0]); len(fields) > 0 {
			surname = strings.Map(func(c rune) rune {
				if unicode.IsLetter(c) {
					return c
				}
				return -1
			}, fields[len(fields)-1])
		}
	}
	if surname == "" {
		surname = "Anon"
	}
	if r.Date.IsZero() {
		return surname
	}
	return fmt.Sprintf("%s%d", surname, r.Date.Year())
}

// Citation renders an MLA-style citation for a result:
//
//	Authors. Title. Venue. Identifier. Month, Year. URL
//
// Missing parts are left out.
func Citation(r types.SearchResult) string {
	var parts []string
	if len(r.Authors) > 0 {
		parts = append(parts, strings.Join(r.Authors, ", "))
	}
	if r.Title != "" {
		parts = append(parts, strings.TrimSuffix(r.Title, "."))
	}
	if venue := venue(r.Source); venue != "" {
		parts = append(parts, venue)
	}
	if r.Identifier != "" {
		parts = append(parts, r.Identifier)
	}
	if !r.Date.IsZero() {
		parts = append(parts, mlaDate(r.Date))
	}
	if r.URL != "" {
		parts = append(parts, r.URL)
	}
	return strings.Join(parts, ". ")
}

func venue(source string) string {
	first, _, _ := strings.Cut(source, ",")
	switch first {
	case "arxiv":
		return "arXiv"
	case "semantic_scholar":
		return "Semantic Scholar"
	default:
		return ""
	}
}

func mlaDate(t time.Time) string {
	return fmt.Sprintf("%s, %d", mlaMonths[t.Month()-1], t.Year())
}

// AbstractSource names the document a result's abstract becomes. It
// depends only on the paper, so the same paper found by another backend
// or another query maps to the same source.
func AbstractSource(r types.SearchResult) string {
	id := r.PreferredAcquisitionID
	if id == "" {
		id = r.Identifier
	}
	if id == "" {
		id = normalizeTitle(r.Title)
	}
	return "abstract:" + id
}

// AbstractDocument returns the pieces needed to add a result's abstract to
// a collection as a single-chunk document: its AbstractSource, the text,
// and its chunk metadata. ok is false when the result has no abstract.
func AbstractDocument(r types.SearchResult) (source, text string, meta types.Metadata, ok bool) {
	text = strings.TrimSpace(r.Abstract)
	if text == "" {
		return "", "", types.Metadata{}, false
	}
	key := Key(r)
	return AbstractSource(r), text, types.Metadata{
		DocKey:   key,
		Key:      "abstract_" + key,
		Citation: Citation(r),
	}, true
}
