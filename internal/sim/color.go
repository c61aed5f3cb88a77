package sim

import (
	"image/color"
	"math"
)

// Color is the ball's display color: hue from x, saturation from y, and
// opacity from energy.
func (b Ball) Color() color.NRGBA {
	r, g, bl := hsv(b.X/2, 3*b.Y/4+0.25, 1)
	return color.NRGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(bl * 255)),
		A: uint8(math.Round(math.Sqrt(clamp01(b.Energy)) * 255)),
	}
}

func hsv(h, s, v float64) (r, g, b float64) {
	h = clamp01(h)
	s = clamp01(s)
	if s == 0 {
		return v, v, v
	}
	h6 := h * 6
	i := math.Floor(h6)
	f := h6 - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
