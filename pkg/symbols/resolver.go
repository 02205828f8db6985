package symbols

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/circuit"
)

// SentinelUnknown is the reserved identifier signaling resolution failure.
// It is never a valid final selection: callers must surface it as an issue
// or synthesize a custom identifier instead.
const SentinelUnknown = "Device:Unknown"

// sentinelLibIDs are the generic catch-all identifiers that must never
// appear in a candidate list.
var sentinelLibIDs = map[string]bool{
	"device:u":       true,
	"device:unknown": true,
}

// IsSentinel reports whether a lib ID is a known-invalid catch-all.
func IsSentinel(libID string) bool {
	return sentinelLibIDs[strings.ToLower(strings.TrimSpace(libID))]
}

// CustomPrefix namespaces synthesized placeholder identifiers. Downstream
// consumers treat Custom: symbols as requiring an embedded definition
// rather than a library lookup.
const CustomPrefix = "Custom:"

var nonAlnumRun = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Resolver maps abstract parts to concrete symbol identifiers against a
// shared read-only catalog, with an optional similarity searcher fallback.
type Resolver struct {
	catalog  *Catalog
	searcher Searcher // may be nil: similarity fallback disabled
	logger   *zap.Logger
}

// NewResolver creates a resolver over the catalog. searcher may be nil.
func NewResolver(catalog *Catalog, searcher Searcher, logger *zap.Logger) *Resolver {
	return &Resolver{
		catalog:  catalog,
		searcher: searcher,
		logger:   logger.Named("resolver"),
	}
}

// Resolve maps (preferred, type, value) to a concrete lib ID. A preferred
// identifier that already carries a library qualifier is returned unchanged.
// Otherwise type heuristics, then the value as a symbol name, then the
// preferred name as a Device symbol are tried against the catalog; the
// sentinel is returned when nothing matches.
func (r *Resolver) Resolve(preferred, partType, value string) string {
	if preferred != "" && strings.Contains(preferred, ":") {
		return preferred
	}

	type candidate struct{ lib, sym string }
	var candidates []candidate

	switch strings.ToUpper(partType) {
	case "R":
		candidates = append(candidates, candidate{"Device", "R"})
	case "C":
		candidates = append(candidates, candidate{"Device", "C"})
	case "L":
		candidates = append(candidates, candidate{"Device", "L"})
	case "LED":
		candidates = append(candidates, candidate{"Device", "LED"})
	case "CONN", "CONNECTOR":
		for _, sym := range []string{"Conn_01x02", "Conn_01x03", "Conn_01x04"} {
			candidates = append(candidates, candidate{"Connector_Generic", sym})
		}
	case "MCU", "U":
		candidates = append(candidates, candidate{"Device", "U"})
	}

	if value != "" {
		for _, lib := range []string{"Device", "Connector_Generic"} {
			candidates = append(candidates, candidate{lib, value})
		}
	}
	if preferred != "" {
		candidates = append(candidates, candidate{"Device", preferred})
	}

	for _, c := range candidates {
		if r.catalog.Has(c.lib, c.sym) {
			return fmt.Sprintf("%s:%s", c.lib, c.sym)
		}
	}
	return SentinelUnknown
}

// CandidatesForParts produces the allowed-identifier table: for each part a
// ranked, capped, sentinel-free candidate list. The first entry is the
// preferred fallback when an oracle selection is invalid or absent; the
// list is never empty (a Custom: placeholder is synthesized as last
// resort).
func (r *Resolver) CandidatesForParts(ctx context.Context, parts []circuit.PartSpec, maxPerPart int) map[string][]string {
	allowed := make(map[string][]string, len(parts))
	for _, p := range parts {
		allowed[p.Ref] = r.CandidatesForPart(ctx, p, maxPerPart)
	}
	return allowed
}

// CandidatesForPart builds the ranked candidate list for one part.
func (r *Resolver) CandidatesForPart(ctx context.Context, part circuit.PartSpec, maxPerPart int) []string {
	if maxPerPart <= 0 {
		maxPerPart = 5
	}

	ptype := strings.ToUpper(part.Type)
	ref := strings.ToUpper(part.Ref)

	var candidates []string
	existing := func(lib string, syms ...string) []string {
		var out []string
		for _, s := range syms {
			if r.catalog.Has(lib, s) {
				out = append(out, fmt.Sprintf("%s:%s", lib, s))
			}
		}
		return out
	}

	switch {
	case ptype == "R" || strings.HasPrefix(ref, "R"):
		candidates = append(candidates, existing("Device", "R")...)
	case ptype == "C" || strings.HasPrefix(ref, "C"):
		candidates = append(candidates, existing("Device", "C")...)
	case ptype == "CONN" || ptype == "CONNECTOR":
		candidates = append(candidates, existing("Connector_Generic",
			"Conn_01x02", "Conn_01x03", "Conn_01x04", "Conn_01x06")...)
	case ptype == "LED" || ptype == "D":
		candidates = append(candidates, existing("Device", "LED", "D")...)
	default:
		if part.Value != "" {
			candidates = append(candidates, r.suggestFromValue(ctx, part.Value)...)
		}
	}

	// Dedup, drop sentinels, cap.
	seen := make(map[string]bool)
	result := make([]string, 0, maxPerPart)
	for _, libID := range candidates {
		if IsSentinel(libID) || seen[libID] {
			continue
		}
		seen[libID] = true
		result = append(result, libID)
		if len(result) >= maxPerPart {
			break
		}
	}

	if len(result) == 0 {
		result = []string{r.placeholderFor(part)}
	}
	return result
}

// suggestFromValue combines similarity-search hits with catalog substring
// matches on the value's tokens.
func (r *Resolver) suggestFromValue(ctx context.Context, value string) []string {
	var suggestions []string

	if r.searcher != nil {
		hits, err := r.searcher.Search(ctx, value, 8)
		if err != nil {
			r.logger.Debug("similarity search unavailable",
				zap.String("query", value),
				zap.Error(err))
		} else {
			suggestions = append(suggestions, hits...)
		}
	}

	tokens := nonAlnumRun.Split(value, -1)
	var nonEmpty []string
	for _, t := range tokens {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) > 0 {
		suggestions = append(suggestions, r.catalog.SearchSubstrings(nonEmpty)...)
	}
	return suggestions
}

// placeholderFor synthesizes a Custom: identifier from the part's value or
// reference. Non-alphanumeric runs collapse to underscore, length-capped.
func (r *Resolver) placeholderFor(part circuit.PartSpec) string {
	if part.Value != "" {
		return CustomPrefix + sanitizeCustomName(part.Value)
	}
	ref := strings.ToUpper(part.Ref)
	if ref == "" {
		ref = "Unknown"
	}
	return CustomPrefix + ref
}

// sanitizeCustomName collapses non-alphanumeric runs to underscore and caps
// length at 48 characters.
func sanitizeCustomName(value string) string {
	base := nonAlnumRun.ReplaceAllString(strings.TrimSpace(value), "_")
	if len(base) > 48 {
		base = base[:48]
	}
	if base == "" || base == "_" {
		return "CustomPart"
	}
	return base
}
