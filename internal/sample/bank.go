package sample

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Loader resolves a sample name to decoded audio.
type Loader interface {
	Load(name string) (*Sample, error)
}

// Bank holds the one sample shared by every voice slot. Reloads are
// serialized and published with a single pointer swap, so readers observe
// either the whole previous sample or the whole new one.
type Bank struct {
	loader Loader

	reload  sync.Mutex
	current atomic.Pointer[loaded]
}

type loaded struct {
	s   *Sample
	gen uint64
}

// NewBank creates an empty bank.
func NewBank(loader Loader) *Bank {
	return &Bank{loader: loader}
}

// Reload decodes name and swaps it in. On failure the previous sample stays.
func (b *Bank) Reload(name string) (*Sample, error) {
	b.reload.Lock()
	defer b.reload.Unlock()
	if b.loader == nil {
		return nil, fmt.Errorf("reload %q: %w", name, ErrNotLoaded)
	}
	s, err := b.loader.Load(name)
	if err != nil {
		return nil, err
	}
	b.swap(s)
	return s, nil
}

// Set installs an already-decoded sample.
func (b *Bank) Set(s *Sample) {
	b.reload.Lock()
	defer b.reload.Unlock()
	b.swap(s)
}

// swap must be called with b.reload held.
func (b *Bank) swap(s *Sample) {
	var gen uint64 = 1
	if prev := b.current.Load(); prev != nil {
		gen = prev.gen + 1
	}
	b.current.Store(&loaded{s: s, gen: gen})
}

// Current returns the active sample and its generation. The sample is nil
// until the first successful load.
func (b *Bank) Current() (*Sample, uint64) {
	l := b.current.Load()
	if l == nil {
		return nil, 0
	}
	return l.s, l.gen
}

// Seconds returns the current sample duration, 0 if nothing is loaded.
func (b *Bank) Seconds() float64 {
	s, _ := b.Current()
	return s.Seconds()
}

// Len returns the current sample length in samples, 0 if nothing is loaded.
func (b *Bank) Len() int {
	s, _ := b.Current()
	return s.Len()
}
