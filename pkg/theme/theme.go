// Package theme parameterizes the presentation layer: each theme names a
// color scale and the set of dashboard panels it enables. The themes
// replace what used to be separate near-identical dashboard variants; the
// engine underneath is shared.
package theme

import (
	"sort"

	"github.com/vitalstats/lens/pkg/engine"
)

// Panel identifies one dashboard panel.
type Panel string

const (
	PanelSummary Panel = "summary"
	PanelTrend   Panel = "trend"
	PanelAge     Panel = "age"
	PanelRatio   Panel = "ratio"
	PanelMap     Panel = "map"
	PanelTop     Panel = "top"
	PanelRegions Panel = "regions"
	PanelShare   Panel = "share"
)

var allPanels = []Panel{
	PanelSummary, PanelTrend, PanelAge, PanelRatio,
	PanelMap, PanelTop, PanelRegions, PanelShare,
}

// Theme is a named color scale plus the panels it enables.
type Theme struct {
	Name   string
	Scale  engine.Scale
	Panels []Panel
}

var (
	// reds mirrors the choropleth palette the dashboard ships with.
	redsScale = engine.MustScale(
		engine.Stop{Pos: 0, Color: engine.RGB{R: 0xFF, G: 0xF5, B: 0xF0}},
		engine.Stop{Pos: 0.5, Color: engine.RGB{R: 0xFB, G: 0x6A, B: 0x4A}},
		engine.Stop{Pos: 1, Color: engine.RGB{R: 0x67, G: 0x00, B: 0x0D}},
	)
	bluesScale = engine.MustScale(
		engine.Stop{Pos: 0, Color: engine.RGB{R: 0xF7, G: 0xFB, B: 0xFF}},
		engine.Stop{Pos: 0.5, Color: engine.RGB{R: 0x6B, G: 0xAE, B: 0xD6}},
		engine.Stop{Pos: 1, Color: engine.RGB{R: 0x08, G: 0x30, B: 0x6B}},
	)
	viridisScale = engine.MustScale(
		engine.Stop{Pos: 0, Color: engine.RGB{R: 0x44, G: 0x01, B: 0x54}},
		engine.Stop{Pos: 0.5, Color: engine.RGB{R: 0x21, G: 0x91, B: 0x8C}},
		engine.Stop{Pos: 1, Color: engine.RGB{R: 0xFD, G: 0xE7, B: 0x25}},
	)
	greysScale = engine.MustScale(
		engine.Stop{Pos: 0, Color: engine.RGB{R: 0xFF, G: 0xFF, B: 0xFF}},
		engine.Stop{Pos: 0.5, Color: engine.RGB{R: 0x80, G: 0x80, B: 0x80}},
		engine.Stop{Pos: 1, Color: engine.RGB{R: 0x00, G: 0x00, B: 0x00}},
	)
)

var themes = map[string]Theme{
	"reds":    {Name: "reds", Scale: redsScale, Panels: allPanels},
	"blues":   {Name: "blues", Scale: bluesScale, Panels: allPanels},
	"viridis": {Name: "viridis", Scale: viridisScale, Panels: allPanels},
	// greys is the print-friendly variant: no map or share pie.
	"greys": {Name: "greys", Scale: greysScale, Panels: []Panel{
		PanelSummary, PanelTrend, PanelAge, PanelRatio, PanelTop, PanelRegions,
	}},
}

// Default returns the standard theme.
func Default() Theme { return themes["reds"] }

// Lookup returns a theme by name.
func Lookup(name string) (Theme, bool) {
	t, ok := themes[name]
	return t, ok
}

// Names lists the available themes, alphabetical.
func Names() []string {
	out := make([]string, 0, len(themes))
	for name := range themes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
