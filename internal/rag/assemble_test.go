package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragserver/internal/model"
)

func hit(seq, tokens int, text string) model.RetrievedHit {
	return model.RetrievedHit{Text: text, Source: "doc.txt", SequenceID: seq, TokenCount: tokens}
}

func TestAssembleRespectsBudget(t *testing.T) {
	hits := []model.RetrievedHit{
		hit(0, 100, "first"),
		hit(1, 900, "second"),
		hit(2, 50, "third"),
	}
	block, used := Assemble(hits, 10, 200)
	require.Len(t, used, 2)
	assert.Equal(t, 0, used[0].SequenceID)
	assert.Equal(t, 2, used[1].SequenceID)
	assert.Contains(t, block, "first")
	assert.NotContains(t, block, "second")
	total := 0
	for _, u := range used {
		total += u.TokenCount
	}
	assert.LessOrEqual(t, total, 200)
}

func TestAssembleRespectsMaxChunks(t *testing.T) {
	hits := []model.RetrievedHit{
		hit(0, 10, "a"), hit(1, 10, "b"), hit(2, 10, "c"),
	}
	_, used := Assemble(hits, 2, 1000)
	assert.Len(t, used, 2)
}

func TestAssembleNothingFits(t *testing.T) {
	hits := []model.RetrievedHit{hit(0, 500, "huge")}
	block, used := Assemble(hits, 5, 100)
	assert.Empty(t, block)
	assert.Empty(t, used)
}

func TestAssembleCitations(t *testing.T) {
	hits := []model.RetrievedHit{
		hit(3, 10, "cats are mammals"),
		hit(7, 10, "dogs are mammals"),
	}
	block, used := Assemble(hits, 5, 100)
	require.Len(t, used, 2)
	assert.Contains(t, block, "[Source: doc.txt #chunk 3]\ncats are mammals")
	assert.Contains(t, block, "[Source: doc.txt #chunk 7]\ndogs are mammals")
	assert.Equal(t, 2, strings.Count(block, "[Source:"))
	assert.Contains(t, block, contextSeparator)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("what are cats", "[Source: a #chunk 0]\ncats are mammals")
	assert.True(t, strings.HasPrefix(prompt, "You are a helpful assistant"))
	assert.Contains(t, prompt, "Context:\n[Source: a #chunk 0]")
	assert.Contains(t, prompt, "Question: what are cats")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestBuildPromptNoContext(t *testing.T) {
	prompt := BuildPrompt("what are cats", "")
	assert.Contains(t, prompt, "NO CONTEXT AVAILABLE")
}
