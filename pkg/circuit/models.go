// Package circuit defines the input data model for schematic generation:
// the circuit specification loaded from JSON and the placed design derived
// from it.
package circuit

import (
	"encoding/json"
	"fmt"
)

// Position is an integer 2-D point on the schematic sheet.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UnmarshalJSON accepts both the object form {"x":1,"y":2} and the compact
// pair form [1,2] used by hand-written circuit files.
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("position pair must have 2 elements, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	type plain Position
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshal position: %w", err)
	}
	*p = Position(obj)
	return nil
}

// BBox is an axis-aligned bounding box. X,Y is the top-left corner.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PartSpec describes one abstract component of a circuit. Ref is the
// primary key and must be unique within a circuit. PartSpec values are
// never mutated after the circuit is loaded.
type PartSpec struct {
	Ref      string            `json:"ref"`
	Type     string            `json:"type"`
	Symbol   string            `json:"symbol,omitempty"`
	Value    string            `json:"value,omitempty"`
	Pins     map[string]string `json:"pins,omitempty"` // pin name -> net name
	Position *Position         `json:"position,omitempty"`
	Rotation int               `json:"rotation,omitempty"`
}

// NetSpec is a named electrical net. Identity is the name, case-sensitive.
type NetSpec struct {
	Name string `json:"name"`
}

// CircuitSpec is the root input: an optional title plus ordered parts and
// nets. Read-only for the lifetime of a run.
type CircuitSpec struct {
	Title string     `json:"title,omitempty"`
	Parts []PartSpec `json:"parts"`
	Nets  []NetSpec  `json:"nets"`
}

// TitleOrDefault returns the title, or "design" when none was given.
func (c *CircuitSpec) TitleOrDefault() string {
	if c.Title == "" {
		return "design"
	}
	return c.Title
}

// PlacedPart is a PartSpec after symbol resolution and initial layout.
// Mutable during placement refinement; owned by the design being iterated.
type PlacedPart struct {
	Ref      string            `json:"ref"`
	Symbol   string            `json:"symbol"`
	Value    string            `json:"value,omitempty"`
	Position Position          `json:"position"`
	Rotation int               `json:"rotation"`
	Pins     map[string]string `json:"pins,omitempty"`
	BBox     BBox              `json:"bbox"`
}

// MoveTo updates the part position and recenters the bounding box on it.
func (p *PlacedPart) MoveTo(x, y int) {
	p.Position = Position{X: x, Y: y}
	w, h := p.BBox.Width, p.BBox.Height
	if w == 0 || h == 0 {
		w, h = DefaultBBoxWidth, DefaultBBoxHeight
	}
	p.BBox = BBox{X: x - w/2, Y: y - h/2, Width: w, Height: h}
}

// Default symbol body extent used when a part has no measured bounds.
const (
	DefaultBBoxWidth  = 18
	DefaultBBoxHeight = 10
)

// GeneratedDesign is the in-memory design under iteration: a title, placed
// parts, and net names as an order-preserving unique list.
type GeneratedDesign struct {
	Title string       `json:"title"`
	Parts []PlacedPart `json:"parts"`
	Nets  []string     `json:"nets"`
}

// NetExists reports whether the named net is part of the design.
func (d *GeneratedDesign) NetExists(name string) bool {
	for _, n := range d.Nets {
		if n == name {
			return true
		}
	}
	return false
}

// AddNet appends a net name if not already present, preserving order.
func (d *GeneratedDesign) AddNet(name string) {
	if name == "" || d.NetExists(name) {
		return
	}
	d.Nets = append(d.Nets, name)
}

// Clone returns a deep copy so a rejected iteration can be discarded
// without corrupting prior state.
func (d *GeneratedDesign) Clone() *GeneratedDesign {
	out := &GeneratedDesign{Title: d.Title}
	out.Parts = make([]PlacedPart, len(d.Parts))
	for i, p := range d.Parts {
		cp := p
		if p.Pins != nil {
			cp.Pins = make(map[string]string, len(p.Pins))
			for k, v := range p.Pins {
				cp.Pins[k] = v
			}
		}
		out.Parts[i] = cp
	}
	out.Nets = append([]string(nil), d.Nets...)
	return out
}
