// Package llm provides the text-completion oracle clients used for
// schematic synthesis and the embedding client used for symbol similarity
// search. The live services are treated as nondeterministic and fallible;
// everything that consumes them depends on the interfaces here so tests can
// substitute scripted doubles.
package llm

import "context"

// Message roles for oracle conversations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of an oracle conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Oracle is the text-completion boundary: a full conversation in, free text
// out. Implementations retry transient failures internally; callers treat
// any returned error as "no reply" in the generation path.
type Oracle interface {
	// Complete sends the conversation and returns the reply text.
	Complete(ctx context.Context, messages []Message) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Embedder produces embedding vectors for similarity search.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}
