// Package modulation runs the control-rate loop that turns published voice
// state into DSP parameter commits.
//
// Producers (the simulation) write into a voice.Pool at frame rate. The
// engine reads every slot once per tick, derives gain, cutoff, pan and
// cursor moves, and hands the whole tick to a Sink in one call.
package modulation

import (
	"context"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	clone "github.com/huandu/go-clone/generic"

	"github.com/cbegin/samplebox/internal/mapping"
	"github.com/cbegin/samplebox/internal/sample"
	"github.com/cbegin/samplebox/internal/voice"
)

// DefaultPeriod is the control tick interval.
const DefaultPeriod = 5 * time.Millisecond

// NoSeek marks a snapshot that does not move the playback cursor.
const NoSeek = -1

// Snapshot is the derived state of one slot for one tick.
type Snapshot struct {
	Slot     int
	Active   bool
	Seek     int     // frame to move the cursor to, NoSeek for none
	SetRate  bool    // Rate should be applied this tick
	Rate     float64 // signed playback rate
	Gain     float64 // final gain, auto-gain included
	Cutoff   float64 // low-pass cutoff in Hz
	Pan      float64 // 0 left, 1 right
	AutoGain float64 // 1/n for n active voices, 1 when none
}

// Sink receives every tick. cur is the bank sample the snapshots were
// computed against; it may be nil before the first load.
type Sink interface {
	Commit(cur *sample.Sample, snaps []Snapshot)
}

// Bank is the read side of the sample bank.
type Bank interface {
	Current() (*sample.Sample, uint64)
}

// Engine owns the per-slot shadow state of what has been applied to the
// DSP graph. Tick is serialized; Run calls it from a single goroutine.
type Engine struct {
	pool   *voice.Pool
	bank   Bank
	sink   Sink
	period time.Duration
	logger *log.Logger

	mu      sync.Mutex
	applied []float64 // last rate applied per slot
	known   []bool    // applied[i] is valid; false forces a retrigger
	gen     uint64
	states  []voice.State
	snaps   []Snapshot
	warned  bool

	lastMu sync.Mutex
	last   []Snapshot
	ticks  atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithPeriod sets the control tick interval.
func WithPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.period = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(pool *voice.Pool, bank Bank, sink Sink, opts ...Option) *Engine {
	n := pool.Cap()
	e := &Engine{
		pool:    pool,
		bank:    bank,
		sink:    sink,
		period:  DefaultPeriod,
		logger:  log.New(io.Discard, "", 0),
		applied: make([]float64, n),
		known:   make([]bool, n),
		states:  make([]voice.State, n),
		snaps:   make([]Snapshot, n),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Period returns the control tick interval.
func (e *Engine) Period() time.Duration { return e.period }

// Ticks returns how many ticks have been committed.
func (e *Engine) Ticks() uint64 { return e.ticks.Load() }

// Tick runs one control iteration and commits it to the sink.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, gen := e.bank.Current()
	if gen != e.gen {
		e.gen = gen
		e.warned = false
		// New buffer in every player: every sounding voice starts over.
		clear(e.known)
	}
	frames := cur.Len()
	if frames == 0 && !e.warned {
		e.logger.Printf("modulation: sample not loaded, cursor moves deferred")
		e.warned = true
	}

	// One read per slot so the count and the values come from the same pass.
	n := 0
	for i := range e.states {
		e.states[i] = e.pool.Read(i)
		if e.states[i].Active {
			n++
		}
	}
	autoGain := 1.0
	if n > 0 {
		autoGain = 1 / float64(n)
	}

	for i := range e.snaps {
		st := e.states[i]
		snap := Snapshot{
			Slot:     i,
			Active:   st.Active,
			Seek:     NoSeek,
			Rate:     st.Rate,
			Cutoff:   mapping.FilterCutoff(st.FilterMod),
			Pan:      mapping.Clamp01(st.Pan),
			AutoGain: autoGain,
		}
		if !st.Active {
			e.known[i] = false
			e.snaps[i] = snap
			continue
		}
		// An unrated voice stays silent with its start pending until a
		// usable rate arrives.
		if !Playable(st.Rate) {
			snap.Rate = e.applied[i]
			e.snaps[i] = snap
			continue
		}
		// A start stays pending until a sample is loaded.
		if frames > 0 {
			if pos, ok := e.pool.TakeStart(i); ok {
				snap.Seek = int(pos * float64(frames))
				snap.SetRate = true
				e.applied[i], e.known[i] = st.Rate, true
			}
		}
		if frames > 0 && (!e.known[i] || st.Rate != e.applied[i]) {
			if st.Rate < 0 {
				snap.Seek = frames
			} else {
				snap.Seek = 0
			}
			snap.SetRate = true
			e.applied[i], e.known[i] = st.Rate, true
		}
		snap.Gain = mapping.GainCurve(st.Volume) * autoGain
		e.snaps[i] = snap
	}

	e.sink.Commit(cur, e.snaps)
	e.ticks.Add(1)

	e.lastMu.Lock()
	if e.last == nil {
		e.last = make([]Snapshot, len(e.snaps))
	}
	copy(e.last, e.snaps)
	e.lastMu.Unlock()
}

// Playable reports whether rate can drive a player. Zero and non-finite
// rates cannot.
func Playable(rate float64) bool {
	return rate != 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}

// LastTick returns a copy of the most recently committed snapshots, or nil
// before the first tick.
func (e *Engine) LastTick() []Snapshot {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	return clone.Clone(e.last)
}

// Run ticks every period until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		}
	}
}
