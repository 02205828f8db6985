// Package orchestrator drives the generate-check-repair fixed-point
// iteration: synthesize a schematic, persist it, run the consistency
// checker and the external rule checker, then accept or feed the findings
// back into the next generation turn until convergence or budget
// exhaustion.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/circuit"
	"github.com/draftsmith-eda/draftsmith/pkg/llm"
	"github.com/draftsmith-eda/draftsmith/pkg/schematic"
)

// State names the phases of the convergence loop.
type State string

const (
	StateGenerating   State = "generating"
	StateChecking     State = "checking"
	StateRuleChecking State = "rule_checking"
	StateDeciding     State = "deciding"
	StateAccepted     State = "accepted"
	StateExhausted    State = "exhausted"
)

// SchematicExt is the output file extension.
const SchematicExt = ".kicad_sch"

// DebugDirName is the per-run debug artifact directory under the output
// directory, cleared at the start of each run.
const DebugDirName = "llm_debug"

// ProgressFunc receives one human-readable line per phase transition.
// It must never block; a nil callback changes nothing about control flow.
type ProgressFunc func(line string)

// Synthesizer is the document generation boundary (§ document synthesizer).
type Synthesizer interface {
	Write(ctx context.Context, req *schematic.SynthesisRequest, outPath string) error
	AddHistory(role, content string)
}

// Checker is the consistency checking boundary.
type Checker interface {
	Check(ctx context.Context, path string) []string
}

// CandidateSource computes the allowed-identifier table up front.
type CandidateSource interface {
	CandidatesForParts(ctx context.Context, parts []circuit.PartSpec, maxPerPart int) map[string][]string
}

// Config parameterizes a run.
type Config struct {
	OutDir            string
	MaxIterations     int
	CandidatesPerPart int
	Progress          ProgressFunc
}

// Result is the terminal outcome of a run. A StateExhausted result is not
// an error: the path may still contain outstanding issues and the caller
// must re-validate if it cares.
type Result struct {
	Path       string
	State      State
	Iterations int
}

// Orchestrator wires the loop's collaborators.
type Orchestrator struct {
	synth      Synthesizer
	checker    Checker
	ruleCheck  schematic.RuleChecker
	candidates CandidateSource
	logger     *zap.Logger
}

// New creates an orchestrator.
func New(synth Synthesizer, checker Checker, ruleCheck schematic.RuleChecker, candidates CandidateSource, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		synth:      synth,
		checker:    checker,
		ruleCheck:  ruleCheck,
		candidates: candidates,
		logger:     logger.Named("orchestrator"),
	}
}

// Run executes the convergence loop for one circuit. rawJSON is the
// original input text, forwarded verbatim to the oracle payload.
func (o *Orchestrator) Run(ctx context.Context, spec *circuit.CircuitSpec, rawJSON string, cfg *Config) (*Result, error) {
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be >= 1, got %d", cfg.MaxIterations)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	// Clear debug artifacts from the previous run; best effort.
	_ = os.RemoveAll(filepath.Join(cfg.OutDir, DebugDirName))

	emit := func(line string) {
		if cfg.Progress != nil {
			cfg.Progress(line)
		}
	}

	allowed := o.candidates.CandidatesForParts(ctx, spec.Parts, cfg.CandidatesPerPart)
	expectedRefs := make([]string, 0, len(spec.Parts))
	for _, p := range spec.Parts {
		expectedRefs = append(expectedRefs, p.Ref)
	}

	referenceText := LoadReferenceTemplate(cfg.OutDir)
	title := spec.TitleOrDefault()
	outPath := filepath.Join(cfg.OutDir, SanitizeTitle(title)+SchematicExt)

	var prevText string
	var issues []string

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		o.logger.Info("iteration start",
			zap.Int("iteration", iteration),
			zap.String("state", string(StateGenerating)))
		emit(fmt.Sprintf("Generator: writing schematic (iteration %d) from circuit JSON + symbol candidates...", iteration))

		req := &schematic.SynthesisRequest{
			SpecJSON:      rawJSON,
			Allowed:       allowed,
			Refs:          expectedRefs,
			PrevText:      prevText,
			Issues:        issues,
			ReferenceText: referenceText,
			Title:         title,
		}
		if err := o.synth.Write(ctx, req, outPath); err != nil {
			return nil, fmt.Errorf("persist schematic: %w", err)
		}

		if data, err := os.ReadFile(outPath); err == nil {
			prevText = string(data)
		} else {
			prevText = ""
		}

		emit("Validator: checking KiCad 9 compliance and layout...")
		issues = o.checker.Check(ctx, outPath)
		if len(issues) > 0 {
			for _, iss := range issues {
				emit("Issue: " + iss)
			}
		} else {
			emit("No issues detected by validator.")
		}

		if missing := missingReferences(expectedRefs, prevText); len(missing) > 0 {
			msg := "Missing placed instances for refs: " + strings.Join(missing, ", ")
			emit(msg)
			issues = append(issues, msg)
		}

		emit("Running ERC (JSON, if available)...")
		erc := o.ruleCheck.Run(outPath)
		for _, line := range erc.Summary {
			emit(line)
		}
		if !erc.Available {
			emit("Rule checker not available; acceptance requires a clean ERC run.")
		} else if erc.ExitCode != nil {
			emit(fmt.Sprintf("ERC exit code: %d", *erc.ExitCode))
		}

		if accepted(issues, erc) {
			emit("Schematic accepted (no validator issues, ERC exit 0, violations 0).")
			return &Result{Path: outPath, State: StateAccepted, Iterations: iteration}, nil
		}

		if iteration < cfg.MaxIterations {
			feedback := schematic.FeedbackRecord{
				Issues:               issues,
				RuleExitStatus:       erc.ExitCode,
				RuleViolationCount:   erc.ViolationCount,
				RuleSummary:          erc.Summary,
				RuleCheckerAvailable: erc.Available,
			}
			o.synth.AddHistory(llm.RoleUser, feedback.Encode())
			emit("Issues remain; feeding findings back for the next iteration.")
		}
	}

	emit(fmt.Sprintf("Iteration budget exhausted after %d iterations; returning last result.", cfg.MaxIterations))
	return &Result{Path: outPath, State: StateExhausted, Iterations: cfg.MaxIterations}, nil
}

// accepted requires all of: no outstanding issues, a successful checker
// exit status, and a determinable violation count of exactly zero. An
// undeterminable count denies acceptance, never assumes it.
func accepted(issues []string, erc *schematic.ERCResult) bool {
	if len(issues) > 0 {
		return false
	}
	if !erc.Available || erc.ExitCode == nil || *erc.ExitCode != 0 {
		return false
	}
	return erc.ViolationCount != nil && *erc.ViolationCount == 0
}

// missingReferences cross-checks the expected references against the
// placed instances found in the persisted document.
func missingReferences(expected []string, text string) []string {
	if text == "" {
		return append([]string(nil), expected...)
	}
	scan := schematic.ScanText(text)
	var missing []string
	for _, ref := range expected {
		if !scan.References[ref] {
			missing = append(missing, ref)
		}
	}
	return missing
}

// SanitizeTitle maps a schematic title to its output file stem.
func SanitizeTitle(title string) string {
	return strings.ReplaceAll(title, " ", "_")
}

// LoadReferenceTemplate looks for a reference schematic to mirror, in
// fixed order: an explicit minimal template in the working directory, a
// demo project in the output directory, then the project demo fallback.
// Unreadable templates are ignored.
func LoadReferenceTemplate(outDir string) string {
	candidates := []string{
		"kicad_sch_min_symbol_template" + SchematicExt,
		filepath.Join(outDir, "demo_project"+SchematicExt),
		filepath.Join("output", "demo_project"+SchematicExt),
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
	}
	return ""
}
