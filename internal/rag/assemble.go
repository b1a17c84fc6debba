package rag

import (
	"fmt"
	"strings"

	"github.com/xxxsen/ragserver/internal/model"
)

const contextSeparator = "\n\n---\n\n"

// Assemble selects hits in rank order until maxChunks or the token budget
// is reached. A hit that would overflow the budget is skipped whole, never
// truncated, and later smaller hits may still fit.
func Assemble(hits []model.RetrievedHit, maxChunks, tokenBudget int) (string, []model.RetrievedHit) {
	var (
		used   []model.RetrievedHit
		blocks []string
		spent  int
	)
	for _, hit := range hits {
		if len(used) >= maxChunks {
			break
		}
		if spent+hit.TokenCount > tokenBudget {
			continue
		}
		spent += hit.TokenCount
		used = append(used, hit)
		blocks = append(blocks, fmt.Sprintf("[Source: %s #chunk %d]\n%s", hit.Source, hit.SequenceID, hit.Text))
	}
	return strings.Join(blocks, contextSeparator), used
}
