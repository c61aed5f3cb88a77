package samplebox

import (
	"io"
	"time"

	"github.com/cbegin/samplebox/internal/sample"
)

// ControlFrames returns how many output frames make up one control period.
func (e *Engine) ControlFrames() int {
	n := int(int64(e.mod.Period()) * int64(e.sampleRate) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n
}

// Tick runs one control iteration immediately. It is meant for offline
// use; while Start is running the loop already ticks on its own.
func (e *Engine) Tick() {
	e.mod.Tick()
}

// RenderOffline fills dst with interleaved stereo frames without an audio
// device, running a control tick at every control period boundary. Output
// depends only on the calls made on the engine, so renders are repeatable.
// It fails with ErrRunning while the real-time loop is started.
func (e *Engine) RenderOffline(dst []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrRunning
	}
	if e.closed.Load() {
		return ErrClosed
	}
	period := e.ControlFrames()
	for len(dst) >= 2 {
		if e.offline == 0 {
			e.mod.Tick()
		}
		frames := min(period-e.offline, len(dst)/2)
		e.Process(dst[:frames*2])
		dst = dst[frames*2:]
		e.offline = (e.offline + frames) % period
	}
	return nil
}

// RenderSeconds renders the given duration and returns the frames.
func (e *Engine) RenderSeconds(seconds float64) ([]float32, error) {
	frames := int(seconds * float64(e.sampleRate))
	out := make([]float32, frames*2)
	if err := e.RenderOffline(out); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteWAV encodes interleaved stereo frames as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	return sample.WriteWAV(w, samples, sampleRate, 2)
}
