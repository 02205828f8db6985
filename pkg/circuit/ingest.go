package circuit

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// pseudoCADFile mirrors the exported "pseudo-CAD" JSON shape:
// {device:{name}, components:[...], nets:[...], powerDomains:[...]}.
type pseudoCADFile struct {
	Device struct {
		Name string `json:"name"`
	} `json:"device"`
	Components   []pseudoCADComponent `json:"components"`
	Nets         []pseudoCADNet       `json:"nets"`
	PowerDomains []pseudoCADNet       `json:"powerDomains"`
}

type pseudoCADComponent struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Value    string `json:"value"`
}

type pseudoCADNet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Load reads a circuit description from a JSON file. Two shapes are
// accepted: the native {title?, parts, nets} shape and the pseudo-CAD
// {device, components, nets, powerDomains} shape. A malformed or
// unrecognized document yields an empty default circuit rather than an
// error; only a failure to read the file itself is fatal.
func Load(path string) (*CircuitSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read circuit file: %w", err)
	}
	return Parse(data), nil
}

// Parse interprets raw JSON bytes as a circuit description. See Load.
func Parse(data []byte) *CircuitSpec {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return &CircuitSpec{Title: "Untitled"}
	}

	if _, ok := probe["components"]; ok {
		var pc pseudoCADFile
		if err := json.Unmarshal(data, &pc); err != nil {
			return &CircuitSpec{Title: "Untitled"}
		}
		return convertPseudoCAD(&pc)
	}

	_, hasParts := probe["parts"]
	_, hasNets := probe["nets"]
	if hasParts || hasNets {
		var spec CircuitSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return &CircuitSpec{Title: "Untitled"}
		}
		return &spec
	}

	return &CircuitSpec{Title: "Untitled"}
}

// convertPseudoCAD maps the pseudo-CAD shape onto a CircuitSpec. Component
// categories are translated to part type tags with a symbol guess; nets come
// from net ids/names plus power domains, deduplicated in order, with GND
// always present.
func convertPseudoCAD(pc *pseudoCADFile) *CircuitSpec {
	title := pc.Device.Name
	if title == "" {
		title = "Untitled"
	}

	spec := &CircuitSpec{Title: title}
	for i, comp := range pc.Components {
		spec.Parts = append(spec.Parts, mapComponent(comp, i))
	}

	seen := make(map[string]bool)
	addNet := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		spec.Nets = append(spec.Nets, NetSpec{Name: name})
	}
	for _, n := range pc.Nets {
		addNet(n.ID)
		addNet(n.Name)
	}
	for _, pd := range pc.PowerDomains {
		addNet(pd.Name)
	}
	addNet("GND")

	return spec
}

func mapComponent(comp pseudoCADComponent, index int) PartSpec {
	ref := comp.ID
	if ref == "" {
		ref = fmt.Sprintf("U%d", index+1)
	}

	typeTag := "U"
	symbol := ""
	switch strings.ToLower(comp.Category) {
	case "passive":
		upper := strings.ToUpper(ref)
		if strings.HasPrefix(upper, "C") {
			typeTag, symbol = "C", "Device:C"
		} else {
			typeTag, symbol = "R", "Device:R"
		}
	case "microcontroller", "processor", "mcu":
		typeTag, symbol = "MCU", "Device:U"
	case "sensor", "power-protection", "power-supply":
		typeTag, symbol = "U", "Device:U"
	case "connector":
		typeTag, symbol = "Conn", "Connector_Generic:Conn_01x02"
	}

	return PartSpec{
		Ref:    ref,
		Type:   typeTag,
		Symbol: symbol,
		Value:  comp.Value,
	}
}
