package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// Codec counts and splits text with the tokenizer of a given model. When no
// BPE data can be loaded (unknown model and no encoding data available) it
// degrades to a word/rune estimator so the pipeline keeps functioning with
// approximate budgets.
type Codec struct {
	enc *tiktoken.Tiktoken
}

var (
	codecMu    sync.Mutex
	codecCache = map[string]*Codec{}
)

// ForModel returns a cached codec for the model's tokenizer, falling back to
// cl100k_base for unknown models.
func ForModel(model string) *Codec {
	codecMu.Lock()
	defer codecMu.Unlock()
	if c, ok := codecCache[model]; ok {
		return c
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	c := &Codec{}
	if err == nil {
		c.enc = enc
	}
	codecCache[model] = c
	return c
}

// Count returns the token count of text.
func (c *Codec) Count(text string) int {
	if c == nil || c.enc == nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Split cuts text into pieces of at most maxTokens tokens each, at token
// boundaries. Used as the hard-split fallback for oversized sentences.
func (c *Codec) Split(text string, maxTokens int) []string {
	if maxTokens < 1 {
		return []string{text}
	}
	if c == nil || c.enc == nil {
		return estimateSplit(text, maxTokens)
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return []string{text}
	}
	pieces := make([]string, 0, (len(tokens)+maxTokens-1)/maxTokens)
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		pieces = append(pieces, c.enc.Decode(tokens[start:end]))
	}
	return pieces
}

// Estimate approximates a token count without BPE data: one token per word
// for ASCII text plus one per non-ASCII rune (CJK-heavy text tokenizes close
// to per-character).
func Estimate(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func estimateSplit(text string, maxTokens int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}
	var pieces []string
	var cur []string
	curTokens := 0
	for _, w := range words {
		t := Estimate(w)
		if len(cur) > 0 && curTokens+t > maxTokens {
			pieces = append(pieces, strings.Join(cur, " "))
			cur = cur[:0]
			curTokens = 0
		}
		cur = append(cur, w)
		curTokens += t
	}
	if len(cur) > 0 {
		pieces = append(pieces, strings.Join(cur, " "))
	}
	return pieces
}
