package sample

import (
	"errors"
	"sync"
	"time"
)

var ErrRecording = errors.New("sample: recorder state")

// Recorder captures the engine output into a mono sample. Tap is called on
// the audio thread; Start and Stop on any other.
type Recorder struct {
	rate     int
	maxFrame int

	mu        sync.Mutex
	recording bool
	buf       []float32
}

// NewRecorder creates a recorder for stereo output at rate, keeping at most
// maxLen of audio.
func NewRecorder(rate int, maxLen time.Duration) *Recorder {
	return &Recorder{
		rate:     rate,
		maxFrame: int(maxLen.Seconds() * float64(rate)),
	}
}

// Start begins a new recording, discarding any previous one.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrRecording
	}
	r.recording = true
	r.buf = r.buf[:0]
	return nil
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Tap appends interleaved stereo frames while recording.
func (r *Recorder) Tap(stereo []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	for i := 0; i+1 < len(stereo) && len(r.buf) < r.maxFrame; i += 2 {
		r.buf = append(r.buf, (stereo[i]+stereo[i+1])*0.5)
	}
}

// Stop ends the capture and returns it as a sample.
func (r *Recorder) Stop() (*Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, ErrRecording
	}
	r.recording = false
	if len(r.buf) == 0 {
		return nil, ErrNotLoaded
	}
	data := make([]float32, len(r.buf))
	copy(data, r.buf)
	return &Sample{Name: CustomName, Rate: r.rate, Data: data}, nil
}
