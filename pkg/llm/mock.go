package llm

import (
	"context"
)

// MockOracle is a scripted oracle for tests. Replies are consumed in order;
// once exhausted, the last reply repeats. Set CompleteFunc for full control.
type MockOracle struct {
	// CompleteFunc, when set, overrides the scripted replies.
	CompleteFunc func(ctx context.Context, messages []Message) (string, error)

	// Replies are returned in order by successive Complete calls.
	Replies []string

	// Err, when set, is returned by every Complete call.
	Err error

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Call tracking for verification.
	CompleteCalls int
	Conversations [][]Message
}

// NewMockOracle creates a mock that replies with the given scripts.
func NewMockOracle(replies ...string) *MockOracle {
	return &MockOracle{Replies: replies, Model: "mock-model"}
}

// Complete implements Oracle.
func (m *MockOracle) Complete(ctx context.Context, messages []Message) (string, error) {
	m.CompleteCalls++
	m.Conversations = append(m.Conversations, append([]Message(nil), messages...))
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "", nil
	}
	idx := m.CompleteCalls - 1
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	return m.Replies[idx], nil
}

// GetModel implements Oracle.
func (m *MockOracle) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

var _ Oracle = (*MockOracle)(nil)

// MockEmbedder is a deterministic embedder for tests. If EmbedFunc is nil,
// each input hashes to a small fixed-dimension vector.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, inputs []string) ([][]float32, error)

	CreateEmbeddingsCalls int
}

// CreateEmbedding implements Embedder.
func (m *MockEmbedder) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	vectors, err := m.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CreateEmbeddings implements Embedder.
func (m *MockEmbedder) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	m.CreateEmbeddingsCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, inputs)
	}
	vectors := make([][]float32, len(inputs))
	for i, input := range inputs {
		var h uint32
		for _, b := range []byte(input) {
			h = h*31 + uint32(b)
		}
		vectors[i] = []float32{
			float32(h%101) / 101,
			float32(h%211) / 211,
			float32(h%307) / 307,
			float32(h%401) / 401,
		}
	}
	return vectors, nil
}

var _ Embedder = (*MockEmbedder)(nil)
