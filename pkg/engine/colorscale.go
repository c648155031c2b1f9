package engine

import (
	"errors"
	"fmt"
	"math"
)

// RGB is a fully-specified 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Stop anchors a color at a position on a gradient.
type Stop struct {
	Pos   float64 `json:"pos"`
	Color RGB     `json:"-"`
}

// Scale is a piecewise-linear color gradient. Stops are strictly
// increasing, starting at 0 and ending at 1; anything else is a
// configuration error caught at construction.
type Scale struct {
	stops []Stop
}

// NewScale validates the stop list and builds a Scale.
func NewScale(stops ...Stop) (Scale, error) {
	if len(stops) < 2 {
		return Scale{}, errors.New("color scale needs at least two stops")
	}
	if stops[0].Pos != 0 {
		return Scale{}, fmt.Errorf("first stop must be at 0, got %v", stops[0].Pos)
	}
	if stops[len(stops)-1].Pos != 1 {
		return Scale{}, fmt.Errorf("last stop must be at 1, got %v", stops[len(stops)-1].Pos)
	}
	for i := 1; i < len(stops); i++ {
		if stops[i].Pos <= stops[i-1].Pos {
			return Scale{}, fmt.Errorf("stops must be strictly increasing, got %v after %v", stops[i].Pos, stops[i-1].Pos)
		}
	}
	return Scale{stops: stops}, nil
}

// MustScale is NewScale for static preset definitions.
func MustScale(stops ...Stop) Scale {
	s, err := NewScale(stops...)
	if err != nil {
		panic(err)
	}
	return s
}

// Stops returns the stop list for introspection.
func (s Scale) Stops() []Stop { return s.stops }

// Midpoint is the color at the middle index of the stop list, used as the
// deterministic fallback for unavailable values and degenerate ranges.
func (s Scale) Midpoint() RGB {
	return s.stops[len(s.stops)/2].Color
}

// Map positions a value within [min, max] on the gradient. It never fails:
// an absent or NaN value, or a degenerate range (min == max), yields the
// midpoint color; out-of-range values clamp to the gradient's ends.
func (s Scale) Map(value *float64, min, max float64) RGB {
	if value == nil || math.IsNaN(*value) || min == max {
		return s.Midpoint()
	}

	t := (*value - min) / (max - min)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	for i := 0; i < len(s.stops)-1; i++ {
		lo, hi := s.stops[i], s.stops[i+1]
		if t < lo.Pos || t > hi.Pos {
			continue
		}
		frac := 0.0
		if width := hi.Pos - lo.Pos; width > 0 {
			frac = (t - lo.Pos) / width
		}
		return RGB{
			R: lerpChannel(lo.Color.R, hi.Color.R, frac),
			G: lerpChannel(lo.Color.G, hi.Color.G, frac),
			B: lerpChannel(lo.Color.B, hi.Color.B, frac),
		}
	}

	// Unreachable for a valid scale since t is clamped into [0, 1].
	return s.stops[len(s.stops)-1].Color
}

// lerpChannel interpolates one channel, truncating (not rounding) the
// result into [0, 255]. Truncation matches the totals the visual encoding
// was tuned against.
func lerpChannel(a, b uint8, frac float64) uint8 {
	v := float64(a) + frac*(float64(b)-float64(a))
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
