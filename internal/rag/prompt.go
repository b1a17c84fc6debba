package rag

import "fmt"

const noContextMarker = "NO CONTEXT AVAILABLE. State that you have no relevant information for this question."

const promptTemplate = "You are a helpful assistant that answers questions based on the provided context.\n" +
	"Use the information from the context to answer the question as completely as possible.\n" +
	"If you cannot find a direct answer in the context, provide the most relevant information available.\n\n" +
	"Context:\n%s\n\n" +
	"Question: %s\n\n" +
	"Answer:"

// BuildPrompt renders the fixed prompt template. An empty context block is
// replaced by an explicit marker so the model does not invent grounded
// claims.
func BuildPrompt(question, contextBlock string) string {
	if contextBlock == "" {
		contextBlock = noContextMarker
	}
	return fmt.Sprintf(promptTemplate, contextBlock, question)
}
