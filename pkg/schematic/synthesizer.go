package schematic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/llm"
)

// Truncation bounds applied to the oracle payload.
const (
	historyCap         = 10
	prevTextPrefixLen  = 12000
	issuesCap          = 100
	referencePrefixLen = 20000
)

const systemInstructions = `You are a KiCad 9 schematic generator. Produce a valid KiCad 9 S-expression schematic file strictly from the given circuit JSON.
Constraints:
- Output ONLY the schematic text starting with (kicad_sch ...). No prose, no code fences.
- Use top-level: (kicad_sch (version 20250114) (generator eeschema) ...).
- Include (paper "A4") and (title_block (title "<title>")).
- Library symbols live under (lib_symbols ...). Their names are generic prefixes WITHOUT numbers (e.g., R, C, L, D, Q, Y, U, J, S, or Custom:<name>), and include pins and an outline (rectangle/polyline).
- Placed instances live directly under (kicad_sch) as (symbol ...). For each ref in 'allowed' (input order), CREATE ONE (symbol ...) with: (lib_id <Library:Symbol> chosen ONLY from that ref's allowed list), (at ...), (uuid <GUID>), and sibling properties including (property "Reference" "<ref>"). Every placed instance MUST include a UUID.
- Reference prefix rules (by lib_id category): R (resistors), C (capacitors), L (inductors), J (connectors), S (switches/buttons), D (diodes/LEDs), Q (transistors/MOSFETs), Y (crystals/oscillators), U (ICs/others). Normalize refs to match and number sequentially per prefix based on input order.
- If no suitable real symbol exists, embed a custom symbol in (lib_symbols ...) and reference it via a Custom:<name> lib_id (no numbers in the symbol name).
- Add minimal (sheet_instances ...) bookkeeping expected by KiCad 9.
- STRICTLY follow the provided template schema if given: replicate header, section order, nesting, and formatting. Do not change section names or hierarchy.
- Apply engineering drawing practices: readable spacing, avoid overlaps, consistent orientation.`

// SynthesisRequest carries one iteration's input to the oracle.
type SynthesisRequest struct {
	SpecJSON      string              // raw circuit JSON text
	Allowed       map[string][]string // allowed-identifier table
	Refs          []string            // references in input order
	PrevText      string              // previous document, empty on iteration 1
	Issues        []string            // outstanding issues, empty on iteration 1
	ReferenceText string              // optional reference template
	Title         string              // used for the seed document fallback
}

// Synthesizer builds oracle requests, extracts documents from free-text
// replies, and persists them under the write policy. It keeps a rolling
// conversation history capped to the most recent turns so the oracle has
// continuity across iterations.
type Synthesizer struct {
	oracle   llm.Oracle
	history  []llm.Message
	iter     int
	debugDir string // empty disables debug artifacts
	logger   *zap.Logger
}

// NewSynthesizer creates a synthesizer around the oracle. debugDir may be
// empty to disable per-iteration prompt/reply dumps.
func NewSynthesizer(oracle llm.Oracle, debugDir string, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		oracle:   oracle,
		debugDir: debugDir,
		logger:   logger.Named("synthesizer"),
	}
}

// AddHistory appends one turn to the rolling history, evicting the oldest
// entries beyond the cap.
func (s *Synthesizer) AddHistory(role, content string) {
	s.history = append(s.history, llm.Message{Role: role, Content: content})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
}

// History returns a copy of the retained conversation, oldest first.
func (s *Synthesizer) History() []llm.Message {
	return append([]llm.Message(nil), s.history...)
}

// buildPayload assembles the JSON-serializable user payload.
func (s *Synthesizer) buildPayload(req *SynthesisRequest) string {
	payload := map[string]any{
		"allowed": req.Allowed,
		"refs":    req.Refs,
	}

	var raw any
	if err := json.Unmarshal([]byte(req.SpecJSON), &raw); err != nil {
		payload["raw"] = truncate(req.SpecJSON, 4000)
	} else {
		payload["circuit_json"] = raw
	}
	if req.PrevText != "" {
		payload["previous_text"] = truncate(req.PrevText, prevTextPrefixLen)
	}
	if len(req.Issues) > 0 {
		issues := req.Issues
		if len(issues) > issuesCap {
			issues = issues[:issuesCap]
		}
		payload["issues_to_fix"] = issues
	}
	if req.ReferenceText != "" {
		payload["reference_schematic"] = truncate(req.ReferenceText, referencePrefixLen)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Synthesize sends the request (with history) to the oracle and extracts a
// document from the reply. Oracle failure yields empty results, never an
// error: the caller's write policy falls back to the previous document.
func (s *Synthesizer) Synthesize(ctx context.Context, req *SynthesisRequest) (extracted, raw string) {
	user := s.buildPayload(req)
	s.AddHistory(llm.RoleUser, user)

	messages := make([]llm.Message, 0, len(s.history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemInstructions})
	messages = append(messages, s.history...)

	s.dumpArtifact(fmt.Sprintf("iter_%02d_prompt.json", s.iter), marshalPrompt(messages))

	reply, err := s.oracle.Complete(ctx, messages)
	if err != nil {
		s.logger.Warn("oracle call failed, treating as empty reply", zap.Error(err))
		s.dumpArtifact(fmt.Sprintf("iter_%02d_error.txt", s.iter), err.Error())
		return "", ""
	}
	if reply == "" {
		return "", ""
	}
	s.AddHistory(llm.RoleAssistant, reply)

	return ExtractDocument(reply), reply
}

// ExtractDocument locates the candidate document span in a free-text
// reply: first occurrence of the opening token through the last closing
// parenthesis. No valid span yields an empty document.
func ExtractDocument(reply string) string {
	start := strings.Index(reply, OpenToken)
	end := strings.LastIndex(reply, ")")
	if start != -1 && end != -1 && end > start {
		return reply[start : end+1]
	}
	return ""
}

// WellFormed reports whether an extracted document may be persisted: it
// must start with the opening token and end with a closing parenthesis.
func WellFormed(doc string) bool {
	trimmed := strings.TrimSpace(doc)
	return strings.HasPrefix(trimmed, OpenToken) && strings.HasSuffix(trimmed, ")")
}

// Write runs one synthesis pass and persists the result to outPath under
// the write policy: a well-formed candidate replaces the file; otherwise
// the previous document is re-persisted unchanged; otherwise a minimal
// valid seed document is written. A known-broken candidate is never
// persisted.
func (s *Synthesizer) Write(ctx context.Context, req *SynthesisRequest, outPath string) error {
	s.iter++

	extracted, raw := s.Synthesize(ctx, req)
	s.dumpArtifact(fmt.Sprintf("iter_%02d_reply.txt", s.iter), raw)

	var content string
	switch {
	case WellFormed(extracted):
		content = extracted
	case strings.TrimSpace(req.PrevText) != "":
		content = req.PrevText
	default:
		content = SeedDocument(req.Title)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := atomicWrite(outPath, content); err != nil {
		return fmt.Errorf("write schematic: %w", err)
	}
	return nil
}

// SeedDocument returns the minimal valid schematic: header, sheet uuid,
// title and paper size only.
func SeedDocument(title string) string {
	if title == "" {
		title = "Untitled"
	}
	return fmt.Sprintf("(kicad_sch (version %s) (generator eeschema)\n"+
		"  (uuid %q)\n"+
		"  (paper \"A4\")\n"+
		"  (title_block (title %q))\n"+
		")\n", FormatVersion, uuid.NewString(), title)
}

// atomicWrite replaces path completely or not at all, so a failed write
// leaves the previous iteration's file untouched.
func atomicWrite(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// dumpArtifact best-effort writes a debug artifact; failures are swallowed.
func (s *Synthesizer) dumpArtifact(name, content string) {
	if s.debugDir == "" {
		return
	}
	if err := os.MkdirAll(s.debugDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.debugDir, name), []byte(content), 0o644)
}

func marshalPrompt(messages []llm.Message) string {
	data, err := json.MarshalIndent(map[string]any{"messages": messages}, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
