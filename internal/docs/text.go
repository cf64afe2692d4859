// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"math"
	"strings"
)

const (
	minTextChars     = 10
	entropyThreshold = 2.5
)

// printable is the ASCII printable set: digits, letters, punctuation and
// whitespace.
const printable = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ \t\n\r\x0b\x0c"

// MaybeIsText reports whether s looks like natural-language text: the
// Shannon entropy of its printable characters, measured against the full
// length, must exceed 2.5 bits per character.
func MaybeIsText(s string) bool {
	if len(s) == 0 {
		return false
	}
	counts := make(map[rune]int, len(printable))
	var total int
	for _, r := range s {
		total++
		if strings.ContainsRune(printable, r) {
			counts[r]++
		}
	}

	n := float64(total)
	var entropy float64
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy > entropyThreshold
}
