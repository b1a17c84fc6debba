package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "ascii words", text: "cats are mammals", want: 3},
		{name: "whitespace only counts one", text: "   ", want: 1},
		{name: "cjk per rune", text: "你好", want: 3}, // 2 runes + 1 field
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Estimate(tt.text))
		})
	}
}

func TestEstimateSplit_BoundsPieceSize(t *testing.T) {
	text := strings.Repeat("word ", 50)
	pieces := estimateSplit(strings.TrimSpace(text), 8)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		require.LessOrEqual(t, Estimate(p), 8)
	}
	require.Equal(t, strings.TrimSpace(text), strings.Join(pieces, " "))
}

func TestCodecWithoutBPEFallsBackToEstimate(t *testing.T) {
	c := &Codec{}
	require.Equal(t, Estimate("one two three"), c.Count("one two three"))
	pieces := c.Split("one two three four", 2)
	require.Len(t, pieces, 2)
}
