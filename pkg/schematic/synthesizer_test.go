package schematic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/llm"
)

func newTestSynthesizer(oracle llm.Oracle) *Synthesizer {
	return NewSynthesizer(oracle, "", zap.NewNop())
}

func TestAddHistory_EvictsOldest(t *testing.T) {
	s := newTestSynthesizer(llm.NewMockOracle())

	for i := 1; i <= 12; i++ {
		s.AddHistory(llm.RoleUser, fmt.Sprintf("turn %d", i))
	}

	h := s.History()
	require.Len(t, h, 10)
	// Oldest two turns were evicted; order is preserved.
	assert.Equal(t, "turn 3", h[0].Content)
	assert.Equal(t, "turn 12", h[9].Content)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := newTestSynthesizer(llm.NewMockOracle())
	s.AddHistory(llm.RoleUser, "original")

	h := s.History()
	h[0].Content = "mutated"
	assert.Equal(t, "original", s.History()[0].Content)
}

func TestExtractDocument(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "bare document",
			reply: `(kicad_sch (version 20250114))`,
			want:  `(kicad_sch (version 20250114))`,
		},
		{
			name:  "wrapped in prose and fences",
			reply: "Sure, here is the schematic:\n```\n(kicad_sch (version 20250114)\n  (paper \"A4\")\n)\n```\nLet me know!",
			want:  "(kicad_sch (version 20250114)\n  (paper \"A4\")\n)",
		},
		{
			name:  "no opening token",
			reply: "I cannot generate that.",
			want:  "",
		},
		{
			name:  "empty reply",
			reply: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDocument(tt.reply))
		})
	}
}

func TestExtractDocument_TrailingParen(t *testing.T) {
	// The span ends at the LAST closing paren, trailing prose after it is cut.
	reply := "(kicad_sch (version 20250114)) done :)"
	got := ExtractDocument(reply)
	assert.True(t, strings.HasSuffix(got, ")"))
	assert.True(t, strings.HasPrefix(got, OpenToken))
}

func TestWellFormed(t *testing.T) {
	assert.True(t, WellFormed("(kicad_sch (version 20250114))"))
	assert.True(t, WellFormed("  (kicad_sch ...)\n  "))
	assert.True(t, WellFormed(SeedDocument("x")))
	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("(kicad_sch (version"))
	assert.False(t, WellFormed("garbage)"))
}

func TestSeedDocument(t *testing.T) {
	doc := SeedDocument("My Board")
	assert.True(t, WellFormed(doc))
	assert.Contains(t, doc, `(title "My Board")`)
	assert.Contains(t, doc, FormatVersion)

	assert.Contains(t, SeedDocument(""), `(title "Untitled")`)
}

func TestWrite_PersistsWellFormedCandidate(t *testing.T) {
	doc := "(kicad_sch (version 20250114)\n  (paper \"A4\")\n)"
	oracle := llm.NewMockOracle("Here:\n" + doc)
	s := newTestSynthesizer(oracle)

	path := filepath.Join(t.TempDir(), "out.kicad_sch")
	require.NoError(t, s.Write(context.Background(), &SynthesisRequest{SpecJSON: "{}", Title: "t"}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
}

func TestWrite_KeepsPreviousOnBrokenReply(t *testing.T) {
	prev := SeedDocument("keep me")
	oracle := llm.NewMockOracle("sorry, I can't do that")
	s := newTestSynthesizer(oracle)

	path := filepath.Join(t.TempDir(), "out.kicad_sch")
	require.NoError(t, os.WriteFile(path, []byte(prev), 0o644))

	req := &SynthesisRequest{SpecJSON: "{}", PrevText: prev, Title: "t"}
	require.NoError(t, s.Write(context.Background(), req, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, prev, string(data))
}

func TestWrite_SeedsWhenNothingUsable(t *testing.T) {
	oracle := &llm.MockOracle{Err: errors.New("endpoint down")}
	s := newTestSynthesizer(oracle)

	path := filepath.Join(t.TempDir(), "out.kicad_sch")
	require.NoError(t, s.Write(context.Background(), &SynthesisRequest{SpecJSON: "{}", Title: "Fallback"}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, WellFormed(string(data)))
	assert.Contains(t, string(data), `(title "Fallback")`)
}

func TestSynthesize_RecordsConversation(t *testing.T) {
	doc := "(kicad_sch (version 20250114))"
	oracle := llm.NewMockOracle(doc)
	s := newTestSynthesizer(oracle)

	extracted, raw := s.Synthesize(context.Background(), &SynthesisRequest{
		SpecJSON: `{"parts": []}`,
		Allowed:  map[string][]string{"R1": {"Device:R"}},
		Refs:     []string{"R1"},
	})
	assert.Equal(t, doc, extracted)
	assert.Equal(t, doc, raw)

	// User payload and assistant reply both land in history.
	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, llm.RoleUser, h[0].Role)
	assert.Contains(t, h[0].Content, `"allowed"`)
	assert.Equal(t, llm.RoleAssistant, h[1].Role)

	// The oracle saw the system turn prepended to the history.
	require.Len(t, oracle.Conversations, 1)
	assert.Equal(t, llm.RoleSystem, oracle.Conversations[0][0].Role)
}

func TestSynthesize_OracleFailure(t *testing.T) {
	s := newTestSynthesizer(&llm.MockOracle{Err: errors.New("boom")})

	extracted, raw := s.Synthesize(context.Background(), &SynthesisRequest{SpecJSON: "{}"})
	assert.Empty(t, extracted)
	assert.Empty(t, raw)

	// No assistant turn is recorded for a failed call.
	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, llm.RoleUser, h[0].Role)
}

func TestBuildPayload_IssuesAndPrev(t *testing.T) {
	s := newTestSynthesizer(llm.NewMockOracle())
	payload := s.buildPayload(&SynthesisRequest{
		SpecJSON: `{"parts": []}`,
		PrevText: "(kicad_sch old)",
		Issues:   []string{"fix me"},
	})
	assert.Contains(t, payload, `"circuit_json"`)
	assert.Contains(t, payload, `"previous_text"`)
	assert.Contains(t, payload, `"issues_to_fix"`)
}

func TestBuildPayload_RawFallbackForInvalidJSON(t *testing.T) {
	s := newTestSynthesizer(llm.NewMockOracle())
	payload := s.buildPayload(&SynthesisRequest{SpecJSON: "not json"})
	assert.Contains(t, payload, `"raw"`)
	assert.NotContains(t, payload, `"circuit_json"`)
}

func TestWrite_DumpsDebugArtifacts(t *testing.T) {
	debugDir := filepath.Join(t.TempDir(), "llm_debug")
	s := NewSynthesizer(llm.NewMockOracle("(kicad_sch (version 20250114))"), debugDir, zap.NewNop())

	path := filepath.Join(t.TempDir(), "out.kicad_sch")
	require.NoError(t, s.Write(context.Background(), &SynthesisRequest{SpecJSON: "{}"}, path))

	assert.FileExists(t, filepath.Join(debugDir, "iter_01_prompt.json"))
	assert.FileExists(t, filepath.Join(debugDir, "iter_01_reply.txt"))
}
