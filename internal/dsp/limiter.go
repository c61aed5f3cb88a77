package dsp

import "math"

// Limiter is a stereo-linked peak compressor for the master bus.
type Limiter struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	env       float32
}

// NewLimiter creates a limiter.
// thresholdDB: level above which gain is reduced (e.g. -1)
// ratio: compression ratio above threshold (e.g. 20)
// attackMs, releaseMs: envelope follower times
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	if ratio < 1 {
		ratio = 1
	}
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
	}
}

// DefaultLimiter returns the master limiter used by the engine.
func DefaultLimiter(sampleRate int) *Limiter {
	return NewLimiter(sampleRate, -1, 20, 1, 80)
}

func (c *Limiter) Process(l, r float32) (float32, float32) {
	peak := float32(math.Max(math.Abs(float64(l)), math.Abs(float64(r))))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.gain(c.env)
	return l * g, r * g
}

func (c *Limiter) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

// Envelope returns the current follower level.
func (c *Limiter) Envelope() float32 { return c.env }

func (c *Limiter) Reset() {
	c.env = 0
}
