// Package graph is the per-voice DSP graph: one player and low-pass filter
// per voice slot, summed into a stereo bus with an optional master chain.
package graph

import (
	"sync"

	"github.com/cbegin/samplebox/internal/dsp"
	"github.com/cbegin/samplebox/internal/mapping"
	"github.com/cbegin/samplebox/internal/modulation"
	"github.com/cbegin/samplebox/internal/sample"
)

// PreviewGain is the level of one-shot previews.
const PreviewGain = 0.5

type channel struct {
	player *dsp.Player
	filter *dsp.LowPass
	left   float32
	right  float32
}

func newChannel(sampleRate int) channel {
	return channel{
		player: dsp.NewPlayer(),
		filter: dsp.NewLowPass(sampleRate, mapping.MaxLPF),
		left:   1,
		right:  1,
	}
}

// ChannelState is a read of one channel for diagnostics and tests.
type ChannelState struct {
	Playing bool
	Pos     int
	Rate    float64
	Gain    float64
	Cutoff  float64
	Left    float32
	Right   float32
}

// Mixer implements modulation.Sink on the control side and
// audio.SampleSource on the output side. The two are mutually exclusive:
// a commit never lands in the middle of a rendered block.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	channels   []channel
	preview    *dsp.Player
	previewOn  bool
	cur        *sample.Sample
	stereo     bool
	master     *dsp.Chain
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithStereoPan places each voice in the stereo field by its pan value.
// Without it every voice is centered at full level on both sides.
func WithStereoPan(enabled bool) Option {
	return func(m *Mixer) { m.stereo = enabled }
}

// WithMaster appends effects to the master bus.
func WithMaster(effects ...dsp.Effector) Option {
	return func(m *Mixer) {
		for _, e := range effects {
			m.master.Add(e)
		}
	}
}

func New(sampleRate, voices int, opts ...Option) *Mixer {
	m := &Mixer{
		sampleRate: sampleRate,
		channels:   make([]channel, voices),
		preview:    dsp.NewPlayer(),
		master:     dsp.NewChain(),
	}
	for i := range m.channels {
		m.channels[i] = newChannel(sampleRate)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Commit applies one control tick. A changed sample is installed into every
// channel before any snapshot is applied.
func (m *Mixer) Commit(cur *sample.Sample, snaps []modulation.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur != m.cur {
		m.cur = cur
		var data []float32
		rate := m.sampleRate
		if cur != nil {
			data, rate = cur.Data, cur.Rate
		}
		for i := range m.channels {
			m.channels[i].player.SetBuffer(data, rate, m.sampleRate)
			m.channels[i].filter.Reset()
		}
	}
	for _, s := range snaps {
		if s.Slot < 0 || s.Slot >= len(m.channels) {
			continue
		}
		ch := &m.channels[s.Slot]
		if s.Seek != modulation.NoSeek {
			ch.player.SetPos(s.Seek)
		}
		if s.SetRate {
			ch.player.SetRate(s.Rate)
		}
		ch.player.SetGain(s.Gain)
		ch.filter.SetFreq(s.Cutoff)
		if m.stereo {
			l, r := dsp.Pan(s.Pan)
			ch.left, ch.right = float32(l), float32(r)
		}
	}
}

// Silence zeroes every channel gain. Active voices get their gain back on
// the next commit.
func (m *Mixer) Silence() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.channels {
		m.channels[i].player.SetGain(0)
	}
	m.previewOn = false
	m.preview.SetGain(0)
}

// Preview plays s once from the start at its native speed, outside the voice
// pool. A nil sample stops the preview.
func (m *Mixer) Preview(s *sample.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil || s.Len() == 0 {
		m.previewOn = false
		return
	}
	p := m.preview
	p.SetBuffer(s.Data, s.Rate, m.sampleRate)
	p.SetPos(0)
	p.SetRate(1)
	p.SetGain(PreviewGain)
	m.previewOn = true
}

// Previewing reports whether a preview is still sounding.
func (m *Mixer) Previewing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previewOn && m.preview.Playing()
}

// Channel returns the state of voice channel i.
func (m *Mixer) Channel(i int) ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := &m.channels[i]
	return ChannelState{
		Playing: ch.player.Playing(),
		Pos:     ch.player.Pos(),
		Rate:    ch.player.Rate(),
		Gain:    ch.player.Gain(),
		Cutoff:  ch.filter.Freq(),
		Left:    ch.left,
		Right:   ch.right,
	}
}

// Sounding returns how many voice channels have their cursor inside the
// buffer with a non-zero gain.
func (m *Mixer) Sounding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.channels {
		if m.channels[i].player.Playing() && m.channels[i].player.Gain() != 0 {
			n++
		}
	}
	return n
}

// Process renders interleaved stereo frames into dst.
func (m *Mixer) Process(dst []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i+1 < len(dst); i += 2 {
		var l, r float32
		for c := range m.channels {
			ch := &m.channels[c]
			if !ch.player.Playing() {
				continue
			}
			s := ch.filter.Process(ch.player.Next())
			l += s * ch.left
			r += s * ch.right
		}
		if m.previewOn {
			if m.preview.Playing() {
				s := m.preview.Next()
				l += s
				r += s
			} else {
				m.previewOn = false
			}
		}
		dst[i], dst[i+1] = m.master.Process(l, r)
	}
}

// Reset clears filter and master bus memory.
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.channels {
		m.channels[i].filter.Reset()
	}
	m.master.Reset()
}
