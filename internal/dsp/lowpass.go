package dsp

import "math"

// Defaults for a voice filter.
const (
	DefaultQ          = 1.0
	DefaultFilterGain = 0.25
)

// LowPass is a resonant two-pole low-pass built on the trapezoidal state
// variable filter, which stays stable when the cutoff moves every block.
type LowPass struct {
	sampleRate float64
	freq       float64
	q          float64
	gain       float64

	// coefficients, recomputed only when freq or q change
	g, k, a1, a2, a3 float64
	ic1, ic2         float64
}

// NewLowPass creates a filter at freq Hz with DefaultQ and DefaultFilterGain.
func NewLowPass(sampleRate int, freq float64) *LowPass {
	f := &LowPass{
		sampleRate: float64(sampleRate),
		q:          DefaultQ,
		gain:       DefaultFilterGain,
	}
	f.SetFreq(freq)
	return f
}

// SetFreq sets the cutoff, clamped below Nyquist.
func (f *LowPass) SetFreq(freq float64) {
	if freq < 1 || math.IsNaN(freq) {
		freq = 1
	}
	if limit := f.sampleRate * 0.49; freq > limit {
		freq = limit
	}
	if freq == f.freq {
		return
	}
	f.freq = freq
	f.update()
}

func (f *LowPass) Freq() float64 { return f.freq }

// SetQ sets the resonance; values below 0.5 are raised to 0.5.
func (f *LowPass) SetQ(q float64) {
	if q < 0.5 {
		q = 0.5
	}
	if q == f.q {
		return
	}
	f.q = q
	f.update()
}

func (f *LowPass) Q() float64 { return f.q }

func (f *LowPass) SetGain(g float64) { f.gain = g }

func (f *LowPass) Gain() float64 { return f.gain }

func (f *LowPass) update() {
	f.g = math.Tan(math.Pi * f.freq / f.sampleRate)
	f.k = 1 / f.q
	f.a1 = 1 / (1 + f.g*(f.g+f.k))
	f.a2 = f.g * f.a1
	f.a3 = f.g * f.a2
}

// Process filters one sample.
func (f *LowPass) Process(in float32) float32 {
	v0 := float64(in)
	v3 := v0 - f.ic2
	v1 := f.a1*f.ic1 + f.a2*v3
	v2 := f.ic2 + f.a2*f.ic1 + f.a3*v3
	f.ic1 = 2*v1 - f.ic1
	f.ic2 = 2*v2 - f.ic2
	return float32(v2 * f.gain)
}

// Reset clears the filter memory.
func (f *LowPass) Reset() {
	f.ic1 = 0
	f.ic2 = 0
}
