package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xxxsen/ragserver/internal/model"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

// Tokenizer is the token-counting dependency. Chunking itself is pure
// computation and never blocks.
type Tokenizer interface {
	Count(text string) int
	Split(text string, maxTokens int) []string
}

type Chunker struct {
	tk Tokenizer
}

func New(tk Tokenizer) *Chunker {
	return &Chunker{tk: tk}
}

type unit struct {
	text   string
	tokens int
	hard   bool
}

// Chunk splits text into overlapping, sentence-respecting segments of at
// most targetTokens tokens. Sequence ids run 0..N-1 in document order. A
// sentence that alone exceeds targetTokens is hard-split at token
// boundaries and the resulting chunks are flagged, never dropped.
func (c *Chunker) Chunk(text string, targetTokens, overlapTokens int) ([]model.Chunk, error) {
	if targetTokens < 1 {
		return nil, errs.Configurationf("target_tokens must be >= 1, got %d", targetTokens)
	}
	if overlapTokens < 0 {
		return nil, errs.Configurationf("overlap_tokens must be >= 0, got %d", overlapTokens)
	}
	if overlapTokens >= targetTokens {
		return nil, errs.Configurationf("overlap_tokens (%d) must be smaller than target_tokens (%d)", overlapTokens, targetTokens)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var units []unit
	for _, s := range SplitSentences(text) {
		toks := c.tk.Count(s)
		if toks > targetTokens {
			for _, piece := range c.tk.Split(s, targetTokens) {
				units = append(units, unit{text: piece, tokens: c.tk.Count(piece), hard: true})
			}
			continue
		}
		units = append(units, unit{text: s, tokens: toks})
	}

	var chunks []model.Chunk
	var cur []unit
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		texts := make([]string, 0, len(cur))
		hard := false
		for _, u := range cur {
			texts = append(texts, u.text)
			hard = hard || u.hard
		}
		joined := strings.Join(texts, " ")
		chunks = append(chunks, model.Chunk{
			Text:       joined,
			SequenceID: len(chunks),
			TokenCount: c.tk.Count(joined),
			HardSplit:  hard,
		})
	}

	for _, u := range units {
		if len(cur) > 0 && curTokens+u.tokens > targetTokens {
			prev := cur
			flush()
			cur, curTokens = c.seedOverlap(prev, overlapTokens, targetTokens-u.tokens)
		}
		cur = append(cur, u)
		curTokens += u.tokens
	}
	flush()
	return chunks, nil
}

// seedOverlap picks the trailing units of the previous chunk whose
// cumulative token count stays within overlapTokens, additionally bounded by
// the room left for the incoming unit so no chunk exceeds the target.
func (c *Chunker) seedOverlap(prev []unit, overlapTokens, room int) ([]unit, int) {
	if overlapTokens <= 0 || room <= 0 {
		return nil, 0
	}
	budget := overlapTokens
	if room < budget {
		budget = room
	}
	var carry []unit
	toks := 0
	for i := len(prev) - 1; i >= 0; i-- {
		t := prev[i].tokens
		if toks+t > budget {
			break
		}
		carry = append([]unit{prev[i]}, carry...)
		toks += t
	}
	return carry, toks
}

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

// SplitSentences splits text into sentence units: paragraph breaks first,
// then sentence-ending punctuation followed by whitespace and an uppercase
// letter. Text with no boundaries comes back as a single unit.
func SplitSentences(text string) []string {
	var parts []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		parts = append(parts, splitParagraph(para)...)
	}
	if len(parts) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func splitParagraph(para string) []string {
	locs := sentenceEnd.FindAllStringIndex(para, -1)
	var out []string
	start := 0
	for _, loc := range locs {
		next, _ := utf8.DecodeRuneInString(para[loc[1]:])
		if !unicode.IsUpper(next) {
			continue
		}
		sent := strings.TrimSpace(para[start:loc[1]])
		if sent != "" {
			out = append(out, sent)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(para[start:]); tail != "" {
		out = append(out, tail)
	}
	if len(out) == 0 {
		return []string{para}
	}
	return out
}
