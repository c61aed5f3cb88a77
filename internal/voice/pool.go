package voice

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the number of voice slots when none is configured.
const DefaultCapacity = 100

// NoStart marks a slot with no pending (re)start request.
const NoStart = -1.0

// ID addresses one voice. It equals the slot index while the voice is active.
type ID int

// Invalid is returned by Allocate when no voice could be produced.
const Invalid ID = -1

// ErrCapacityExhausted is returned when every slot is taken.
var ErrCapacityExhausted = errors.New("voice: capacity exhausted")

// Params are the values published when a voice is allocated.
type Params struct {
	Rate      float64 // signed playback rate
	Volume    float64 // normalized energy, 0..1
	FilterMod float64 // normalized vertical position, 0..1
	Pan       float64 // normalized horizontal position, 0..1
	Start     float64 // fractional start offset, NoStart for none
}

// State is a point-in-time read of one slot.
type State struct {
	Active    bool
	Rate      float64
	Volume    float64
	FilterMod float64
	Pan       float64
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) Swap(v float64) float64 {
	return math.Float64frombits(f.bits.Swap(math.Float64bits(v)))
}

// slot fields are written by producers and read by the control loop without
// locks. Each field is an idempotent snapshot so last write wins.
type slot struct {
	active    atomic.Bool
	rate      atomicFloat
	volume    atomicFloat
	filterMod atomicFloat
	pan       atomicFloat
	start     atomicFloat
}

// Pool is a fixed-capacity voice allocator. Allocation and release are
// serialized by a single lock; parameter pushes and control-loop reads are
// lock-free.
type Pool struct {
	mu     sync.Mutex
	taken  []bool
	slots  []slot
	active atomic.Int32
}

// NewPool creates a pool with capacity slots (DefaultCapacity if <= 0).
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		taken: make([]bool, capacity),
		slots: make([]slot, capacity),
	}
	for i := range p.slots {
		p.slots[i].rate.Store(1)
		p.slots[i].filterMod.Store(1)
		p.slots[i].pan.Store(0.5)
		p.slots[i].start.Store(NoStart)
	}
	return p
}

// Cap returns the number of slots.
func (p *Pool) Cap() int { return len(p.slots) }

// ActiveCount returns the number of taken slots.
func (p *Pool) ActiveCount() int { return int(p.active.Load()) }

// Allocate takes the lowest free slot and publishes params to it. On
// exhaustion it returns Invalid and ErrCapacityExhausted and leaves every
// existing voice untouched.
func (p *Pool) Allocate(params Params) (ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, taken := range p.taken {
		if taken {
			continue
		}
		p.taken[i] = true
		s := &p.slots[i]
		s.rate.Store(params.Rate)
		s.volume.Store(params.Volume)
		s.filterMod.Store(params.FilterMod)
		s.pan.Store(params.Pan)
		start := params.Start
		if start < 0 || math.IsNaN(start) {
			start = NoStart
		} else if start > 1 {
			start = 1
		}
		s.start.Store(start)
		// Parameters first so the control loop never sees an active slot
		// carrying the previous owner's values.
		s.active.Store(true)
		p.active.Add(1)
		return ID(i), nil
	}
	return Invalid, ErrCapacityExhausted
}

// Release frees the slot held by id. Releasing a free or out-of-range id is a
// no-op and reports false.
func (p *Pool) Release(id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked(id)
}

func (p *Pool) releaseLocked(id ID) bool {
	if !p.valid(id) || !p.taken[id] {
		return false
	}
	p.taken[id] = false
	s := &p.slots[id]
	s.active.Store(false)
	s.start.Store(NoStart)
	s.volume.Store(0)
	p.active.Add(-1)
	return true
}

// ReleaseAll frees every taken slot and returns how many were released.
func (p *Pool) ReleaseAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.taken {
		if p.releaseLocked(ID(i)) {
			n++
		}
	}
	return n
}

// IsActive reports whether id currently holds a slot.
func (p *Pool) IsActive(id ID) bool {
	if !p.valid(id) {
		return false
	}
	return p.slots[id].active.Load()
}

// SetModulation publishes new modulation sources for an active voice.
func (p *Pool) SetModulation(id ID, volume, filterMod, pan float64) bool {
	if !p.IsActive(id) {
		return false
	}
	s := &p.slots[id]
	s.volume.Store(volume)
	s.filterMod.Store(filterMod)
	s.pan.Store(pan)
	return true
}

// SetRate publishes a new commanded playback rate for an active voice.
func (p *Pool) SetRate(id ID, rate float64) bool {
	if !p.IsActive(id) {
		return false
	}
	p.slots[id].rate.Store(rate)
	return true
}

// Read returns the current published state of slot i.
func (p *Pool) Read(i int) State {
	s := &p.slots[i]
	return State{
		Active:    s.active.Load(),
		Rate:      s.rate.Load(),
		Volume:    s.volume.Load(),
		FilterMod: s.filterMod.Load(),
		Pan:       s.pan.Load(),
	}
}

// TakeStart consumes a pending start request on slot i. The request is
// cleared atomically so a start published concurrently is never lost.
func (p *Pool) TakeStart(i int) (float64, bool) {
	s := &p.slots[i]
	if s.start.Load() < 0 {
		return 0, false
	}
	pos := s.start.Swap(NoStart)
	if pos < 0 {
		return 0, false
	}
	return pos, true
}

func (p *Pool) valid(id ID) bool {
	return id >= 0 && int(id) < len(p.slots)
}
