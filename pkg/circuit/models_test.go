package circuit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Position
		wantErr bool
	}{
		{"object form", `{"x": 10, "y": 20}`, Position{X: 10, Y: 20}, false},
		{"pair form", `[10, 20]`, Position{X: 10, Y: 20}, false},
		{"negative pair", `[-5, 0]`, Position{X: -5, Y: 0}, false},
		{"short pair", `[10]`, Position{}, true},
		{"long pair", `[1, 2, 3]`, Position{}, true},
		{"garbage", `"north"`, Position{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Position
			err := json.Unmarshal([]byte(tt.data), &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestPlacedPart_MoveTo(t *testing.T) {
	p := PlacedPart{BBox: BBox{Width: 20, Height: 10}}
	p.MoveTo(100, 50)

	assert.Equal(t, Position{X: 100, Y: 50}, p.Position)
	assert.Equal(t, BBox{X: 90, Y: 45, Width: 20, Height: 10}, p.BBox)
}

func TestPlacedPart_MoveTo_DefaultBBox(t *testing.T) {
	var p PlacedPart
	p.MoveTo(0, 0)

	assert.Equal(t, DefaultBBoxWidth, p.BBox.Width)
	assert.Equal(t, DefaultBBoxHeight, p.BBox.Height)
}

func TestGeneratedDesign_AddNet(t *testing.T) {
	d := &GeneratedDesign{}
	d.AddNet("VCC")
	d.AddNet("GND")
	d.AddNet("VCC") // duplicate
	d.AddNet("")    // ignored

	assert.Equal(t, []string{"VCC", "GND"}, d.Nets)
	assert.True(t, d.NetExists("GND"))
	assert.False(t, d.NetExists("3V3"))
}

func TestGeneratedDesign_Clone(t *testing.T) {
	orig := &GeneratedDesign{
		Title: "t",
		Parts: []PlacedPart{{Ref: "R1", Pins: map[string]string{"1": "VCC"}}},
		Nets:  []string{"VCC"},
	}

	clone := orig.Clone()
	clone.Parts[0].Pins["1"] = "GND"
	clone.Nets[0] = "3V3"
	clone.Parts[0].Ref = "R9"

	assert.Equal(t, "VCC", orig.Parts[0].Pins["1"])
	assert.Equal(t, "VCC", orig.Nets[0])
	assert.Equal(t, "R1", orig.Parts[0].Ref)
}
