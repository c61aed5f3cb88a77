package dsp

import "math"

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	if e != nil {
		c.effects = append(c.effects, e)
	}
}

// Len returns the number of effects in the chain.
func (c *Chain) Len() int { return len(c.effects) }

// Pan returns equal-power left and right gains for p in [0,1], 0.5 centered.
func Pan(p float64) (float64, float64) {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	angle := p * math.Pi / 2
	return math.Cos(angle), math.Sin(angle)
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
