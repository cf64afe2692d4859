// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vectorindex

import "math"

// MMR selects up to k hits from candidates, which must be sorted best
// first and carry their relevance in Score. Each step picks the candidate
// maximizing lambda*relevance - (1-lambda)*max similarity to the picks so
// far. The first pick is always the most relevant candidate.
func MMR(candidates []Hit, k int, lambda float64) []Hit {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	norms := make([]float64, len(candidates))
	for i, c := range candidates {
		norms[i] = norm(c.Vector)
	}

	selected := []int{0}
	// maxSim[i] is the highest similarity of candidate i to any selected hit.
	maxSim := make([]float64, len(candidates))
	used := make([]bool, len(candidates))
	used[0] = true
	for i := range candidates {
		maxSim[i] = cosineWithNorms(candidates[i].Vector, candidates[0].Vector, norms[i], norms[0])
	}

	for len(selected) < k && len(selected) < len(candidates) {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			score := lambda*c.Score - (1-lambda)*maxSim[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, best)
		for i := range candidates {
			if used[i] {
				continue
			}
			sim := cosineWithNorms(candidates[i].Vector, candidates[best].Vector, norms[i], norms[best])
			if sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	out := make([]Hit, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero.
func Cosine(a, b []float32) float64 {
	return cosineWithNorms(a, b, norm(a), norm(b))
}

func cosineWithNorms(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
