// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	authorPattern = regexp.MustCompile(`[A-Z][a-z]+`)
	yearPattern   = regexp.MustCompile(`\d{4}`)
)

// DeriveKey builds a key from the first capitalized word and the first
// four-digit number of citation, e.g. "Smith2020". The year may be absent.
func DeriveKey(citation string) (string, error) {
	author := authorPattern.FindString(citation)
	if author == "" {
		return "", fmt.Errorf("%w: no author in citation %q; pass a key explicitly", ErrKeyDerivation, citation)
	}
	return author + yearPattern.FindString(citation), nil
}

// allocateKey returns the first of base, base+"a", ..., base+"z" not in
// taken.
func allocateKey(taken map[string]bool, base string) (string, error) {
	if !taken[base] {
		return base, nil
	}
	for suffix := 'a'; suffix <= 'z'; suffix++ {
		key := base + string(suffix)
		if !taken[key] {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: all suffixes of %q are taken", ErrKeyDerivation, base)
}

// usableCitation reports whether a generated citation is worth keeping.
func usableCitation(c string) bool {
	return len(c) >= 3 && !strings.Contains(c, "Unknown") && !strings.Contains(c, "insufficient")
}

func fallbackCitation(path string, now time.Time) string {
	return fmt.Sprintf("Unknown, %s, %d", filepath.Base(path), now.Year())
}
