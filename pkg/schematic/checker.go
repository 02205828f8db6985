package schematic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/llm"
	"github.com/draftsmith-eda/draftsmith/pkg/symbols"
)

// MinInstanceSpacing is the minimum Euclidean distance between two placed
// instances before they are flagged as overlapping.
const MinInstanceSpacing = 20.0

// missingLibIDListCap bounds how many missing identifiers the completeness
// probe lists in one issue.
const missingLibIDListCap = 20

// llmProbePrefixLen bounds how much document text the optional oracle probe
// is shown.
const llmProbePrefixLen = 10000

// Checker runs the battery of stateless text probes over a candidate
// document. The probes share one scan pass and never fail on malformed
// input; unreadable files yield no findings except from the completeness
// probe, which reports the unreadable file explicitly.
type Checker struct {
	oracle llm.Oracle // optional: enables the oracle compliance probe
	logger *zap.Logger
}

// NewChecker creates a checker. oracle may be nil, disabling the
// oracle-backed compliance probe.
func NewChecker(oracle llm.Oracle, logger *zap.Logger) *Checker {
	return &Checker{
		oracle: oracle,
		logger: logger.Named("checker"),
	}
}

// Check reads the document at path and returns the issue list, probes in
// fixed order. Pure function of the file content.
func (c *Checker) Check(ctx context.Context, path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("Cannot read schematic file: %s", path)}
	}
	return c.CheckText(ctx, string(data))
}

// CheckText runs all probes over document text.
func (c *Checker) CheckText(ctx context.Context, text string) []string {
	scan := ScanText(text)

	var issues []string
	issues = append(issues, checkMissingEmbeddedSymbols(scan)...)
	issues = append(issues, checkSymbolPinsAndGraphics(scan)...)
	issues = append(issues, checkInvalidLibIDsAndSheet(scan)...)
	issues = append(issues, checkInstancePositionsAndRefs(scan)...)
	if c.oracle != nil {
		issues = append(issues, c.checkCompliance(ctx, text)...)
	}
	return issues
}

// checkMissingEmbeddedSymbols flags identifier use without any embedded
// definitions section, listing the distinct missing identifiers once per
// document.
func checkMissingEmbeddedSymbols(scan *Scan) []string {
	if len(scan.LibIDs) == 0 || scan.HasLibSymbols {
		return nil
	}
	uniq := dedupSorted(scan.LibIDs)
	if len(uniq) > missingLibIDListCap {
		uniq = uniq[:missingLibIDListCap]
	}
	return []string{
		"No (lib_symbols ...) block present. Embed symbol definitions for: " + strings.Join(uniq, ", "),
	}
}

// checkSymbolPinsAndGraphics requires at least one pin declaration and one
// outline primitive once an embedded-definitions section exists.
func checkSymbolPinsAndGraphics(scan *Scan) []string {
	if !scan.HasLibSymbols {
		return nil
	}
	var issues []string
	if scan.PinCount == 0 {
		issues = append(issues, "Embedded symbols lack (pin ...) definitions. Add pins with name/number, (at x y), and length.")
	}
	if scan.ShapeCount == 0 {
		issues = append(issues, "Embedded symbols lack basic graphics (rectangle/polyline). Add a body rectangle around the symbol.")
	}
	return issues
}

// checkInvalidLibIDsAndSheet flags sentinel identifiers, missing sheet
// bookkeeping, and a header version that is not the target format's.
func checkInvalidLibIDsAndSheet(scan *Scan) []string {
	var issues []string

	var invalid []string
	for _, libID := range scan.LibIDs {
		if symbols.IsSentinel(libID) {
			invalid = append(invalid, libID)
		}
	}
	if len(invalid) > 0 {
		issues = append(issues, "Invalid lib_id(s) found: "+strings.Join(dedupSorted(invalid), ", ")+
			". Replace with valid symbols or embed their definitions.")
	}
	if !scan.HasSheetInstances {
		issues = append(issues, "Missing (sheet_instances ...) block. Add minimal KiCad 9 sheet bookkeeping to improve compatibility.")
	}
	if scan.HasHeader && !scan.HasTargetVersion {
		issues = append(issues, fmt.Sprintf("Header version is not KiCad 9 (%s). Use (version %s) (generator eeschema).",
			FormatVersion, FormatVersion))
	}
	return issues
}

// checkInstancePositionsAndRefs enforces minimum spacing between placed
// instances, reference-prefix conventions, and per-instance UUIDs.
func checkInstancePositionsAndRefs(scan *Scan) []string {
	var issues []string

	inst := scan.Instances
	for i := 0; i < len(inst); i++ {
		for j := i + 1; j < len(inst); j++ {
			dx := inst[i].X - inst[j].X
			dy := inst[i].Y - inst[j].Y
			if math.Sqrt(dx*dx+dy*dy) < MinInstanceSpacing {
				issues = append(issues, fmt.Sprintf("Placed instances too close: %s and %s (increase spacing >= %g).",
					inst[i].Ref, inst[j].Ref, MinInstanceSpacing))
			}
		}
	}

	for _, in := range inst {
		want := DesiredPrefixForLibID(in.LibID)
		if !strings.HasPrefix(strings.ToUpper(in.Ref), want) {
			issues = append(issues, fmt.Sprintf("Reference prefix mismatch for %s: expected to start with %q based on lib_id %s.",
				in.Ref, want, in.LibID))
		}
		if !in.HasUUID {
			issues = append(issues, fmt.Sprintf("Placed instance %s is missing (uuid ...). Add a UUID to each (symbol ...) instance.", in.Ref))
		}
	}
	return issues
}

// DesiredPrefixForLibID derives the expected reference prefix letter from
// an identifier's category. Matching is on the symbol's base name (the part
// before the first underscore) plus category keywords, so Device:LED maps
// to D rather than L and Device:Crystal to Y rather than C.
func DesiredPrefixForLibID(libID string) string {
	l := strings.ToLower(libID)
	name := l
	if i := strings.Index(l, ":"); i >= 0 {
		name = l[i+1:]
	}
	base := name
	if i := strings.IndexAny(name, "_-"); i >= 0 {
		base = name[:i]
	}

	switch {
	case strings.Contains(l, "crystal") || strings.Contains(l, "xtal") ||
		strings.Contains(l, "resonator") || strings.HasPrefix(base, "osc"):
		return "Y"
	case base == "led" || base == "d" || strings.Contains(l, "diode"):
		return "D"
	case base == "r" || strings.Contains(l, "resistor"):
		return "R"
	case base == "c" || strings.Contains(l, "capacitor"):
		return "C"
	case base == "l" || strings.Contains(l, "inductor"):
		return "L"
	case strings.Contains(l, "connector") || strings.HasPrefix(name, "conn"):
		return "J"
	case strings.Contains(l, "switch") || strings.HasPrefix(name, "sw") ||
		strings.Contains(l, "button"):
		return "S"
	case base == "q" || strings.Contains(l, "transistor") ||
		strings.Contains(l, "bjt") || strings.Contains(l, "mosfet"):
		return "Q"
	default:
		return "U"
	}
}

// checkCompliance asks the oracle to review the document for format
// compliance and layout sanity, expecting {"issues": [...]} back. Oracle
// failures and unparsable replies degrade to a single diagnostic or
// nothing, never an error.
func (c *Checker) checkCompliance(ctx context.Context, text string) []string {
	system := "You are a KiCad 9 schematic format validator. Check the text for KiCad 9 S-expression compliance and layout sanity.\n" +
		"Verify: top-level (kicad_sch ...), (paper ...), (title_block ...), symbol blocks with (lib_id ...), (at ...), (uuid ...), (property ...).\n" +
		"Also verify engineering layout basics: placed symbol instances not overlapping based on their (at x y) position and typical symbol sizes; reasonable spacing; consistent orientation.\n" +
		"Return ONLY JSON: {\"issues\": string[]} with specific, actionable messages."

	prefix := text
	if len(prefix) > llmProbePrefixLen {
		prefix = prefix[:llmProbePrefixLen]
	}

	reply, err := c.oracle.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: prefix},
	})
	if err != nil || reply == "" {
		c.logger.Debug("oracle compliance probe skipped", zap.Error(err))
		return nil
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return nil
	}
	var parsed struct {
		Issues []string `json:"issues"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return []string{"LLM returned non-JSON response for KiCad validation."}
	}
	return parsed.Issues
}

func dedupSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
