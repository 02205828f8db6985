package circuit

import "sort"

// Grid layout defaults for parts with no fixed position.
const (
	gridCols     = 6
	gridSpacingX = 30
	gridSpacingY = 25
	gridMarginX  = 50
	gridMarginY  = 50
)

// GridPosition returns the default sheet position for the part at the given
// input index: a left-to-right, top-to-bottom grid.
func GridPosition(index int) Position {
	return Position{
		X: gridMarginX + (index%gridCols)*gridSpacingX,
		Y: gridMarginY + (index/gridCols)*gridSpacingY,
	}
}

// SymbolResolver maps an abstract part to a concrete symbol identifier.
type SymbolResolver func(preferred, partType, value string) string

// BuildDesign produces an initial placed design from a circuit spec. Parts
// with no fixed position fall onto the default grid; symbols are chosen by
// the supplied resolver; nets are the spec's nets plus any net referenced
// from a pin assignment, in order of first appearance.
func BuildDesign(spec *CircuitSpec, resolve SymbolResolver) *GeneratedDesign {
	design := &GeneratedDesign{Title: spec.Title}
	if design.Title == "" {
		design.Title = "Untitled"
	}

	for i, part := range spec.Parts {
		pos := GridPosition(i)
		if part.Position != nil {
			pos = *part.Position
		}
		placed := PlacedPart{
			Ref:      part.Ref,
			Symbol:   resolve(part.Symbol, part.Type, part.Value),
			Value:    part.Value,
			Rotation: part.Rotation,
			Pins:     part.Pins,
		}
		placed.BBox = BBox{Width: DefaultBBoxWidth, Height: DefaultBBoxHeight}
		placed.MoveTo(pos.X, pos.Y)
		design.Parts = append(design.Parts, placed)
	}

	for _, n := range spec.Nets {
		design.AddNet(n.Name)
	}
	for _, p := range design.Parts {
		// Pin maps have no iteration order; walk names sorted so the
		// harvested net list is stable across runs.
		names := make([]string, 0, len(p.Pins))
		for name := range p.Pins {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			design.AddNet(p.Pins[name])
		}
	}
	return design
}
