package store

import (
	"sort"

	"github.com/xxxsen/ragserver/internal/model"
)

// Candidate is one row from a single-signal candidate query, before the
// lexical and vector lists are merged.
type Candidate struct {
	ID         int64
	Source     string
	SequenceID int
	Text       string
	TokenCount int
	Score      float64
}

type fusedHit struct {
	Candidate
	lexRaw float64
	fused  float64
}

// normalize rescales scores into [0, 1] relative to the list itself. A
// list with a single score level maps to 1 so that list membership still
// counts for something.
func normalize(cands []Candidate) map[int64]float64 {
	out := make(map[int64]float64, len(cands))
	if len(cands) == 0 {
		return out
	}
	minScore, maxScore := cands[0].Score, cands[0].Score
	for _, c := range cands[1:] {
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	span := maxScore - minScore
	for _, c := range cands {
		if span == 0 {
			out[c.ID] = 1
			continue
		}
		out[c.ID] = (c.Score - minScore) / span
	}
	return out
}

// Fuse combines lexical and vector candidate lists with relative-score
// fusion: fused = (1-alpha)*lexical + alpha*vector over per-list
// normalized scores, with an absent signal contributing zero. Raising a
// candidate's raw score on either signal never lowers its fused score.
// Ties break on raw lexical score, then sequence id, then source, then
// row id, so the ordering is total and identical across runs.
func Fuse(lexical, vector []Candidate, alpha float64, topK int) []model.RetrievedHit {
	lexNorm := normalize(lexical)
	vecNorm := normalize(vector)
	byID := make(map[int64]*fusedHit, len(lexical)+len(vector))
	add := func(c Candidate) *fusedHit {
		if h, ok := byID[c.ID]; ok {
			return h
		}
		h := &fusedHit{Candidate: c}
		byID[c.ID] = h
		return h
	}
	for _, c := range lexical {
		h := add(c)
		h.lexRaw = c.Score
	}
	for _, c := range vector {
		add(c)
	}
	merged := make([]*fusedHit, 0, len(byID))
	for id, h := range byID {
		h.fused = (1-alpha)*lexNorm[id] + alpha*vecNorm[id]
		merged = append(merged, h)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.fused != b.fused {
			return a.fused > b.fused
		}
		if a.lexRaw != b.lexRaw {
			return a.lexRaw > b.lexRaw
		}
		if a.SequenceID != b.SequenceID {
			return a.SequenceID < b.SequenceID
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	})
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	hits := make([]model.RetrievedHit, 0, len(merged))
	for i, h := range merged {
		hits = append(hits, model.RetrievedHit{
			Text:       h.Text,
			Source:     h.Source,
			SequenceID: h.SequenceID,
			TokenCount: h.TokenCount,
			Score:      h.fused,
			Rank:       i + 1,
		})
	}
	return hits
}
