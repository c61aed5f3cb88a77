package dsp

import "math"

// Player reads a mono buffer with a fractional cursor. Rate 1 plays at the
// buffer's native speed, negative rates play backwards. The cursor is not
// wrapped: outside the buffer the player is silent until repositioned.
type Player struct {
	data []float32
	step float64 // source frames per output frame at rate 1
	pos  float64
	rate float64
	gain float64
}

// NewPlayer returns an empty player with rate 1 and gain 0.
func NewPlayer() *Player {
	return &Player{rate: 1, step: 1}
}

// SetBuffer installs data recorded at srcRate for output at outRate. The
// cursor is parked past the end so nothing sounds until SetPos.
func (p *Player) SetBuffer(data []float32, srcRate, outRate int) {
	p.data = data
	p.step = 1
	if srcRate > 0 && outRate > 0 {
		p.step = float64(srcRate) / float64(outRate)
	}
	p.pos = float64(len(data))
}

// Samples returns the buffer length in frames.
func (p *Player) Samples() int { return len(p.data) }

// SetPos moves the cursor to frame n, clamped to [0, Samples()].
func (p *Player) SetPos(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(p.data) {
		n = len(p.data)
	}
	p.pos = float64(n)
}

// Pos returns the cursor frame, truncated.
func (p *Player) Pos() int { return int(p.pos) }

func (p *Player) SetRate(r float64) { p.rate = r }

func (p *Player) Rate() float64 { return p.rate }

func (p *Player) SetGain(g float64) { p.gain = g }

func (p *Player) Gain() float64 { return p.gain }

// Playing reports whether the cursor is inside the buffer.
func (p *Player) Playing() bool {
	n := float64(len(p.data))
	if p.rate < 0 {
		return p.pos > 0 && p.pos <= n
	}
	return p.pos >= 0 && p.pos < n
}

// Next returns one output sample and advances the cursor.
func (p *Player) Next() float32 {
	n := len(p.data)
	if n == 0 {
		return 0
	}
	var out float64
	if p.pos >= 0 && p.pos <= float64(n-1) {
		i := int(p.pos)
		frac := p.pos - float64(i)
		s := float64(p.data[i])
		if frac > 0 && i+1 < n {
			s += (float64(p.data[i+1]) - s) * frac
		}
		out = s * p.gain
	} else if p.pos > float64(n-1) && p.pos < float64(n) {
		out = float64(p.data[n-1]) * p.gain
	}
	p.pos += p.rate * p.step
	if math.IsNaN(p.pos) {
		p.pos = float64(n)
	}
	return float32(out)
}
