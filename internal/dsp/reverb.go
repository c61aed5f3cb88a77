package dsp

// Reverb is a small Schroeder room: four parallel combs into two allpasses,
// mixed back over the dry signal.
type Reverb struct {
	combs   [4]comb
	allpass [2]allpass
	wet     float32
}

type comb struct {
	buf []float32
	pos int
	fb  float32
}

type allpass struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb creates a reverb.
// roomSize: 0..1 scales the delay lengths
// feedback: 0..0.95 decay
// wet: 0..1 mix
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := int(float32(sampleRate) * roomSize * 0.05)
	if base < 10 {
		base = 10
	}
	r := &Reverb{wet: clamp32(wet, 0, 1)}
	fb := clamp32(feedback, 0, 0.95)
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = comb{buf: make([]float32, combLens[i]), fb: fb}
	}
	apLens := [2]int{max(base*347/1000, 1), max(base*213/1000, 1)}
	for i := range r.allpass {
		r.allpass[i] = allpass{buf: make([]float32, apLens[i]), fb: 0.5}
	}
	return r
}

// SetWet changes the mix.
func (r *Reverb) SetWet(wet float32) { r.wet = clamp32(wet, 0, 1) }

func (r *Reverb) Process(l, rt float32) (float32, float32) {
	if r.wet == 0 {
		return l, rt
	}
	mono := (l + rt) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].process(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].process(out)
	}
	return l*(1-r.wet) + out*r.wet, rt*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		clear(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}

func (c *comb) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpass) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
