package retrieve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuseRRFAlphaOneUsesOnlyVector(t *testing.T) {
	vec := []branchResult{{ChunkID: "a", Score: 0.9}, {ChunkID: "b", Score: 0.1}}
	lex := []branchResult{{ChunkID: "b", Score: 0.99}}

	fused := FuseRRF(vec, lex, 1.0)
	require.Equal(t, "a", fused[0].ChunkID)
}

func TestFuseRRFAlphaZeroUsesOnlyLexical(t *testing.T) {
	vec := []branchResult{{ChunkID: "a", Score: 0.9}}
	lex := []branchResult{{ChunkID: "b", Score: 0.99}, {ChunkID: "a", Score: 0.01}}

	fused := FuseRRF(vec, lex, 0.0)
	require.Equal(t, "b", fused[0].ChunkID)
}

func TestFuseRRFChunkInBothBranchesRanksHigher(t *testing.T) {
	vec := []branchResult{{ChunkID: "shared", Score: 1}, {ChunkID: "vec-only", Score: 0.9}}
	lex := []branchResult{{ChunkID: "shared", Score: 1}, {ChunkID: "lex-only", Score: 0.9}}

	fused := FuseRRF(vec, lex, 0.5)
	require.Equal(t, "shared", fused[0].ChunkID)
	require.Len(t, fused, 3)
}

func TestFuseRRFDeterministicTieBreakByID(t *testing.T) {
	vec := []branchResult{{ChunkID: "z", Score: 1}}
	lex := []branchResult{{ChunkID: "a", Score: 1}}
	fused := FuseRRF(vec, lex, 0.5)
	require.Equal(t, "a", fused[0].ChunkID)
	require.Equal(t, "z", fused[1].ChunkID)
}

func TestBranchKRespectsCapAndMultiplier(t *testing.T) {
	require.Equal(t, 20, branchK(5, 4, 100))
	require.Equal(t, 100, branchK(30, 4, 100))
	require.Equal(t, 5, branchK(5, 0, 100))
}
