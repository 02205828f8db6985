// Package schematic treats KiCad 9 schematic documents as opaque text: a
// lightweight scanner extracts the tokens the consistency checker and the
// convergence loop care about, the synthesizer builds documents through the
// oracle, and the ERC runner shells out to kicad-cli. No full parse of the
// S-expression tree is attempted.
package schematic

import (
	"regexp"
	"strconv"
	"strings"
)

// Target format constants for KiCad 9 schematics.
const (
	OpenToken     = "(kicad_sch"
	FormatVersion = "20250114"
	versionToken  = "(version " + FormatVersion + ")"
)

// Scan patterns over the raw document text.
var (
	libIDPattern = regexp.MustCompile(`\(lib_id\s+"([^"]+)"\)`)
	refPattern   = regexp.MustCompile(`\(property\s+"Reference"\s+"([A-Za-z]+\d+)"`)
	atPattern    = regexp.MustCompile(`\(at\s+(-?[\d.]+)\s+(-?[\d.]+)(?:\s+(-?[\d.]+))?\)`)
	uuidPattern  = regexp.MustCompile(`\(uuid\s+"?[0-9a-fA-F-]{8,}"?\)`)
	pinPattern   = regexp.MustCompile(`\(pin\b`)
	shapePattern = regexp.MustCompile(`\((rectangle|polyline|circle|arc)\b`)
)

// instanceWindow is how many bytes around a Reference property are searched
// for the instance's position, lib ID and UUID tokens.
const instanceWindow = 2000

// Instance is one placed symbol extracted from the document text.
type Instance struct {
	Ref      string
	X        float64
	Y        float64
	Rotation float64
	LibID    string
	HasUUID  bool
}

// Scan is the result of one pass over a document. All checker probes and
// the orchestrator's reference cross-check read from it instead of
// re-scanning the text independently.
type Scan struct {
	HasHeader         bool
	HasTargetVersion  bool
	HasLibSymbols     bool
	HasSheetInstances bool
	LibIDs            []string // every lib_id use, in document order
	PinCount          int
	ShapeCount        int
	Instances         []Instance
	References        map[string]bool // refs seen as placed instances
}

// ScanText tokenizes a schematic document in a single pass. Malformed
// documents never fail: whatever can be recognized is reported.
func ScanText(text string) *Scan {
	s := &Scan{References: make(map[string]bool)}

	s.HasHeader = strings.Contains(text, OpenToken)
	s.HasTargetVersion = strings.Contains(text, versionToken)
	s.HasLibSymbols = strings.Contains(text, "(lib_symbols")
	s.HasSheetInstances = strings.Contains(text, "(sheet_instances")
	s.PinCount = len(pinPattern.FindAllStringIndex(text, -1))
	s.ShapeCount = len(shapePattern.FindAllStringIndex(text, -1))

	for _, m := range libIDPattern.FindAllStringSubmatch(text, -1) {
		s.LibIDs = append(s.LibIDs, m[1])
	}

	for _, loc := range refPattern.FindAllStringSubmatchIndex(text, -1) {
		ref := text[loc[2]:loc[3]]
		s.References[ref] = true

		start := loc[0] - instanceWindow
		if start < 0 {
			start = 0
		}
		end := loc[1] + instanceWindow
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]

		// The symbol's own (at ...) and (lib_id ...) precede its Reference
		// property, so take the last match before the ref rather than the
		// first in the window (which could belong to a pin or a neighbor).
		before := text[start:loc[0]]
		atMatch := lastSubmatch(atPattern, before)
		libMatch := lastSubmatch(libIDPattern, before)
		if atMatch == nil || libMatch == nil {
			continue
		}

		inst := Instance{
			Ref:     ref,
			LibID:   libMatch[1],
			HasUUID: uuidPattern.MatchString(window),
		}
		inst.X = parseCoord(atMatch[1])
		inst.Y = parseCoord(atMatch[2])
		if atMatch[3] != "" {
			inst.Rotation = parseCoord(atMatch[3])
		}
		s.Instances = append(s.Instances, inst)
	}

	return s
}

func lastSubmatch(re *regexp.Regexp, text string) []string {
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
