package retrieve

import "sort"

// rrfConstant is the fixed RRF denominator constant c from the fusion
// formula.
const rrfConstant = 60.0

// branchResult is one ranked hit from a single retrieval branch.
type branchResult struct {
	ChunkID string
	Score   float64 // native similarity/rank score for this branch, higher better
}

// Fused is one chunk's fused ranking across the vector and lexical branches.
type Fused struct {
	ChunkID  string
	Score    float64
	VecRank  int // 1-based; 0 if absent from the vector branch
	LexRank  int // 1-based; 0 if absent from the lexical branch
}

// FuseRRF combines vector and lexical branch results with reciprocal rank
// fusion: rrf(chunk) = alpha * 1/(c + rank_v) + (1-alpha) * 1/(c + rank_l),
// using a zero contribution for a branch a chunk is absent from. The
// returned slice is sorted by descending fused score, ties broken by
// chunk id for determinism.
func FuseRRF(vec, lex []branchResult, alpha float64) []Fused {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	vecRank := make(map[string]int, len(vec))
	for i, r := range vec {
		vecRank[r.ChunkID] = i + 1
	}
	lexRank := make(map[string]int, len(lex))
	for i, r := range lex {
		lexRank[r.ChunkID] = i + 1
	}

	seen := make(map[string]struct{}, len(vec)+len(lex))
	ids := make([]string, 0, len(vec)+len(lex))
	for _, r := range vec {
		if _, ok := seen[r.ChunkID]; !ok {
			seen[r.ChunkID] = struct{}{}
			ids = append(ids, r.ChunkID)
		}
	}
	for _, r := range lex {
		if _, ok := seen[r.ChunkID]; !ok {
			seen[r.ChunkID] = struct{}{}
			ids = append(ids, r.ChunkID)
		}
	}

	out := make([]Fused, 0, len(ids))
	for _, id := range ids {
		vr := vecRank[id]
		lr := lexRank[id]
		var vContrib, lContrib float64
		if vr > 0 {
			vContrib = 1.0 / (rrfConstant + float64(vr))
		}
		if lr > 0 {
			lContrib = 1.0 / (rrfConstant + float64(lr))
		}
		out = append(out, Fused{
			ChunkID: id,
			Score:   alpha*vContrib + (1-alpha)*lContrib,
			VecRank: vr,
			LexRank: lr,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// branchK returns the per-branch candidate count min(4k, 100) used to widen
// recall before fusion.
func branchK(k, multiplier, cap int) int {
	kv := k * multiplier
	if kv > cap {
		kv = cap
	}
	if kv < k {
		kv = k
	}
	return kv
}
