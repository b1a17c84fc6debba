package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexCand(id int64, seq int, score float64) Candidate {
	return Candidate{ID: id, SequenceID: seq, Text: "t", Score: score}
}

func TestFuseLexicalOnly(t *testing.T) {
	lexical := []Candidate{
		lexCand(1, 0, 0.9),
		lexCand(2, 1, 0.5),
		lexCand(3, 2, 0.1),
	}
	vector := []Candidate{
		lexCand(3, 2, 0.99),
		lexCand(2, 1, 0.5),
	}
	hits := Fuse(lexical, vector, 0, 10)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].SequenceID, hits[1].SequenceID, hits[2].SequenceID})
}

func TestFuseVectorOnly(t *testing.T) {
	lexical := []Candidate{
		lexCand(1, 0, 0.9),
	}
	vector := []Candidate{
		lexCand(3, 2, 0.99),
		lexCand(2, 1, 0.4),
		lexCand(1, 0, 0.1),
	}
	hits := Fuse(lexical, vector, 1, 10)
	require.Len(t, hits, 3)
	assert.Equal(t, 2, hits[0].SequenceID)
	assert.Equal(t, 1, hits[1].SequenceID)
	assert.Equal(t, 0, hits[2].SequenceID)
}

func TestFuseMonotoneInVectorScore(t *testing.T) {
	lexical := []Candidate{
		lexCand(1, 0, 0.6),
		lexCand(2, 1, 0.6),
	}
	base := []Candidate{
		lexCand(1, 0, 0.3),
		lexCand(2, 1, 0.2),
		lexCand(3, 2, 0.1),
	}
	before := Fuse(lexical, base, 0.5, 10)
	boosted := []Candidate{
		lexCand(1, 0, 0.3),
		lexCand(2, 1, 0.9),
		lexCand(3, 2, 0.1),
	}
	after := Fuse(lexical, boosted, 0.5, 10)
	posBefore, posAfter := -1, -1
	for i, h := range before {
		if h.SequenceID == 1 {
			posBefore = i
		}
	}
	for i, h := range after {
		if h.SequenceID == 1 {
			posAfter = i
		}
	}
	assert.LessOrEqual(t, posAfter, posBefore)
}

func TestFuseMissingSignalScoresZero(t *testing.T) {
	lexical := []Candidate{
		lexCand(1, 0, 0.9),
		lexCand(2, 1, 0.1),
	}
	vector := []Candidate{
		lexCand(3, 5, 0.99),
		lexCand(4, 6, 0.2),
	}
	hits := Fuse(lexical, vector, 0.5, 10)
	require.Len(t, hits, 4)
	// each top candidate normalizes to 1 in its own list, worth 0.5 fused
	assert.InDelta(t, 0.5, hits[0].Score, 1e-9)
	last := hits[len(hits)-1]
	assert.InDelta(t, 0, last.Score, 1e-9)
}

func TestFuseTieBreaks(t *testing.T) {
	// both ids absent from the lexical list, equal vector scores, so the
	// fused and raw lexical scores tie and sequence id decides
	vector := []Candidate{
		lexCand(7, 9, 0.5),
		lexCand(8, 3, 0.5),
	}
	hits := Fuse(nil, vector, 1, 10)
	require.Len(t, hits, 2)
	assert.Equal(t, 3, hits[0].SequenceID)
	assert.Equal(t, 9, hits[1].SequenceID)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, 2, hits[1].Rank)
}

func TestFuseTieBreakIsTotal(t *testing.T) {
	// same fused score, no lexical signal, same sequence id across
	// different sources: source then row id must settle the order
	vector := []Candidate{
		{ID: 12, Source: "b.txt", SequenceID: 4, Text: "t", Score: 0.5},
		{ID: 11, Source: "a.txt", SequenceID: 4, Text: "t", Score: 0.5},
		{ID: 13, Source: "a.txt", SequenceID: 4, Text: "t", Score: 0.5},
	}
	for i := 0; i < 20; i++ {
		hits := Fuse(nil, vector, 1, 10)
		require.Len(t, hits, 3)
		assert.Equal(t, "a.txt", hits[0].Source)
		assert.Equal(t, "a.txt", hits[1].Source)
		assert.Equal(t, "b.txt", hits[2].Source)
	}
}

func TestFuseTopK(t *testing.T) {
	vector := []Candidate{
		lexCand(1, 0, 0.9),
		lexCand(2, 1, 0.8),
		lexCand(3, 2, 0.7),
	}
	hits := Fuse(nil, vector, 1, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].SequenceID)
	assert.Equal(t, 1, hits[1].SequenceID)
}
