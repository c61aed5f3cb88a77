package main

import "sync"

const scopeLen = 8192

// scope keeps the most recent mono output for the waveform panel.
type scope struct {
	mu       sync.Mutex
	ring     []float32
	writePos int
}

func newScope() *scope {
	return &scope{ring: make([]float32, scopeLen)}
}

// Tap is called from the audio thread.
func (s *scope) Tap(samples []float32) {
	s.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		s.ring[s.writePos] = (samples[i] + samples[i+1]) * 0.5
		s.writePos = (s.writePos + 1) % scopeLen
	}
	s.mu.Unlock()
}

// Snapshot returns the last n samples, oldest first.
func (s *scope) Snapshot(n int) []float32 {
	n = min(n, scopeLen)
	out := make([]float32, n)
	s.mu.Lock()
	start := (s.writePos - n + scopeLen) % scopeLen
	for i := range out {
		out[i] = s.ring[(start+i)%scopeLen]
	}
	s.mu.Unlock()
	return out
}
