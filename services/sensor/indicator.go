package sensor

import (
	"math"

	"proxnode-go/types"
	"proxnode-go/x/mathx"
)

// Renderer turns an indicator decision into the pixel slice written to the
// strip: gamma correction first, then global brightness.
type Renderer struct {
	table  [256]uint8
	level  uint8
	pixels int
	alert  types.Color
	clear  types.Color
}

func NewRenderer(pixels int, brightness uint8, gamma float64, alert, clear types.Color) *Renderer {
	r := &Renderer{
		level:  brightness,
		pixels: mathx.Max(pixels, 1),
		alert:  alert,
		clear:  clear,
	}
	for i := range r.table {
		v := math.Pow(float64(i)/255, gamma)*255 + 0.5
		r.table[i] = uint8(mathx.Clamp(v, 0, 255))
	}
	return r
}

// Correct applies gamma and brightness to one color.
func (r *Renderer) Correct(c types.Color) types.Color {
	return types.Color{
		R: mathx.ScaleU8(r.table[c.R], r.level),
		G: mathx.ScaleU8(r.table[c.G], r.level),
		B: mathx.ScaleU8(r.table[c.B], r.level),
	}
}

// Render returns a fresh slice with every pixel set to the decision's color.
func (r *Renderer) Render(ic types.IndicatorColor) []types.Color {
	var c types.Color
	switch ic {
	case types.IndicatorAlert:
		c = r.Correct(r.alert)
	case types.IndicatorClear:
		c = r.Correct(r.clear)
	default:
		c = types.Black
	}
	out := make([]types.Color, r.pixels)
	for i := range out {
		out[i] = c
	}
	return out
}
