// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		citation string
		want     string
		wantErr  bool
	}{
		{"Smith, John. \"Cells.\" Nature 12 (2020): 1-9.", "Smith2020", false},
		{"van der Berg, Anna and Jones. Title. 1999", "Berg1999", false},
		{"Kim, H. Untitled manuscript.", "Kim", false},
		{"2020 report by nobody", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.citation, func(t *testing.T) {
			got, err := DeriveKey(tt.citation)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrKeyDerivation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocateKey_SuffixOrder(t *testing.T) {
	taken := map[string]bool{}
	var got []string
	for i := 0; i < 4; i++ {
		key, err := allocateKey(taken, "Smith2020")
		require.NoError(t, err)
		taken[key] = true
		got = append(got, key)
	}
	assert.Equal(t, []string{"Smith2020", "Smith2020a", "Smith2020b", "Smith2020c"}, got)
}

func TestAllocateKey_FillsGaps(t *testing.T) {
	key, err := allocateKey(map[string]bool{"K": true, "Ka": true, "Kc": true}, "K")
	require.NoError(t, err)
	assert.Equal(t, "Kb", key)
}

func TestAllocateKey_Exhausted(t *testing.T) {
	taken := map[string]bool{"K": true}
	for c := 'a'; c <= 'z'; c++ {
		taken["K"+string(c)] = true
	}
	_, err := allocateKey(taken, "K")
	assert.ErrorIs(t, err, ErrKeyDerivation)
}

func TestUsableCitation(t *testing.T) {
	assert.True(t, usableCitation("Smith, J. 2020."))
	assert.False(t, usableCitation("ab"))
	assert.False(t, usableCitation("Unknown author"))
	assert.False(t, usableCitation("There is insufficient information."))
	assert.Equal(t, "Unknown, paper.pdf, 2024",
		fallbackCitation("/data/papers/paper.pdf", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMaybeIsText(t *testing.T) {
	assert.True(t, MaybeIsText(cellsText))
	assert.False(t, MaybeIsText(""))
	assert.False(t, MaybeIsText(strings.Repeat("a", 100)))
	assert.False(t, MaybeIsText(strings.Repeat("abab", 25)))
	// Non-printable bytes carry no entropy.
	assert.False(t, MaybeIsText(strings.Repeat("\x00\x01\x02\x03\x04\x05\x06\x07", 10)))
	assert.False(t, MaybeIsText(strings.Repeat("αβγδεζηθ", 10)))
}
