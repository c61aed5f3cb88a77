// Package samplebox is a voice allocation and modulation engine for a
// granular sampler driven by bouncing objects.
//
// The simulation thread opens a voice per object, pushes normalized
// position and energy every frame, and frees the voice when the object is
// gone. A control loop running every few milliseconds turns that state into
// gain, filter and playback cursor changes on a per-voice DSP graph.
package samplebox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	intaudio "github.com/cbegin/samplebox/internal/audio"
	"github.com/cbegin/samplebox/internal/dsp"
	"github.com/cbegin/samplebox/internal/graph"
	"github.com/cbegin/samplebox/internal/mapping"
	"github.com/cbegin/samplebox/internal/modulation"
	"github.com/cbegin/samplebox/internal/sample"
	"github.com/cbegin/samplebox/internal/voice"
)

// VoiceID addresses an open voice.
type VoiceID = voice.ID

// InvalidVoice is returned when no voice could be opened.
const InvalidVoice = voice.Invalid

// Snapshot is the derived state of one voice slot for one control tick.
type Snapshot = modulation.Snapshot

var (
	ErrCapacityExhausted = voice.ErrCapacityExhausted
	ErrClosed            = errors.New("samplebox: engine closed")
	ErrRunning           = errors.New("samplebox: engine already started")
	ErrNoLibrary         = errors.New("samplebox: no sample library configured")
)

// Backend selects the audio output.
type Backend int

const (
	BackendEbiten Backend = iota
	BackendOto
	BackendNone // no device; use RenderOffline
)

func (b Backend) String() string {
	switch b {
	case BackendEbiten:
		return "ebiten"
	case BackendOto:
		return "oto"
	case BackendNone:
		return "none"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// DefaultRecordLength caps a custom recording.
const DefaultRecordLength = 10 * time.Second

// DefaultVoices is the voice capacity used unless WithVoices says otherwise.
const DefaultVoices = voice.DefaultCapacity

type EngineOption func(*engineConfig)

type engineConfig struct {
	voices    int
	period    time.Duration
	logger    *log.Logger
	library   *sample.Library
	backend   Backend
	sampleTap func([]float32)
	stereoPan bool
	reverb    float32
	limiter   bool
	recordMax time.Duration
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		voices:    voice.DefaultCapacity,
		period:    modulation.DefaultPeriod,
		logger:    log.New(io.Discard, "", 0),
		backend:   BackendEbiten,
		stereoPan: true,
		limiter:   true,
		recordMax: DefaultRecordLength,
	}
}

// WithVoices sets the number of voice slots.
func WithVoices(n int) EngineOption {
	return func(cfg *engineConfig) {
		if n > 0 {
			cfg.voices = n
		}
	}
}

// WithControlPeriod sets the modulation tick interval.
func WithControlPeriod(d time.Duration) EngineOption {
	return func(cfg *engineConfig) {
		if d > 0 {
			cfg.period = d
		}
	}
}

// WithLogger receives one line per locally recovered error.
func WithLogger(l *log.Logger) EngineOption {
	return func(cfg *engineConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithLibrary sets the catalog used by ReloadSample and Preview.
func WithLibrary(lib *sample.Library) EngineOption {
	return func(cfg *engineConfig) {
		cfg.library = lib
	}
}

func WithBackend(b Backend) EngineOption {
	return func(cfg *engineConfig) {
		cfg.backend = b
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) EngineOption {
	return func(cfg *engineConfig) {
		cfg.sampleTap = tap
	}
}

// WithStereoPan spreads voices across the stereo field by horizontal
// position. Disabled, every voice is centered.
func WithStereoPan(enabled bool) EngineOption {
	return func(cfg *engineConfig) {
		cfg.stereoPan = enabled
	}
}

// WithReverb adds a room reverb to the master bus at the given wet mix.
func WithReverb(mix float32) EngineOption {
	return func(cfg *engineConfig) {
		cfg.reverb = mix
	}
}

// WithLimiter toggles the master peak limiter (on by default).
func WithLimiter(enabled bool) EngineOption {
	return func(cfg *engineConfig) {
		cfg.limiter = enabled
	}
}

// WithRecordLength caps the length of a custom recording.
func WithRecordLength(d time.Duration) EngineOption {
	return func(cfg *engineConfig) {
		if d > 0 {
			cfg.recordMax = d
		}
	}
}

// Engine is the single owned audio context shared by every sound-emitting
// object. All methods are safe for concurrent use.
type Engine struct {
	sampleRate int
	cfg        engineConfig
	logger     *log.Logger

	pool     *voice.Pool
	bank     *sample.Bank
	library  *sample.Library
	mixer    *graph.Mixer
	mod      *modulation.Engine
	recorder *sample.Recorder
	volume   atomic.Uint64 // float64 bits

	mu      sync.Mutex
	out     intaudio.Output
	cancel  context.CancelFunc
	done    chan struct{}
	closed  atomic.Bool
	offline int // frames rendered since the last offline tick
}

func New(sampleRate int, opts ...EngineOption) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var master []dsp.Effector
	if cfg.reverb > 0 {
		master = append(master, dsp.NewReverb(sampleRate, 0.5, 0.7, cfg.reverb))
	}
	if cfg.limiter {
		master = append(master, dsp.DefaultLimiter(sampleRate))
	}

	e := &Engine{
		sampleRate: sampleRate,
		cfg:        cfg,
		logger:     cfg.logger,
		pool:       voice.NewPool(cfg.voices),
		library:    cfg.library,
		mixer:      graph.New(sampleRate, cfg.voices, graph.WithStereoPan(cfg.stereoPan), graph.WithMaster(master...)),
		recorder:   sample.NewRecorder(sampleRate, cfg.recordMax),
	}
	var loader sample.Loader
	if cfg.library != nil {
		loader = cfg.library
	}
	e.bank = sample.NewBank(loader)
	e.mod = modulation.New(e.pool, e.bank, e.mixer,
		modulation.WithPeriod(cfg.period),
		modulation.WithLogger(cfg.logger),
	)
	e.volume.Store(math.Float64bits(1))
	return e, nil
}

// SampleRate returns the output rate in Hz.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Logger returns the logger given to WithLogger, or a discarding one.
func (e *Engine) Logger() *log.Logger { return e.logger }

// Capacity returns the number of voice slots.
func (e *Engine) Capacity() int { return e.pool.Cap() }

// ActiveVoices returns the number of open voices.
func (e *Engine) ActiveVoices() int { return e.pool.ActiveCount() }

// OpenNewVoice takes a free voice for a new object at normalized position
// (x, y) with the given playback rate and normalized energy. Playback starts
// at fraction x of the sample on the next control tick. When every voice is
// taken the sound is dropped: InvalidVoice and ErrCapacityExhausted are
// returned and nothing else changes.
//
// A zero or non-finite rate opens the voice unrated: it stays silent with
// its start pending until the first usable RetriggerBuffer.
func (e *Engine) OpenNewVoice(x, y, rate, energy float64) (VoiceID, error) {
	if e.closed.Load() {
		return InvalidVoice, ErrClosed
	}
	if !modulation.Playable(rate) {
		rate = 0
	}
	id, err := e.pool.Allocate(voice.Params{
		Rate:      rate,
		Volume:    energy,
		FilterMod: y,
		Pan:       x,
		Start:     mapping.Clamp01(x),
	})
	if err != nil {
		e.logger.Printf("samplebox: no open voices (%d in use)", e.pool.ActiveCount())
		return InvalidVoice, err
	}
	return id, nil
}

// FreeVoice releases id. Freeing an already free voice does nothing.
func (e *Engine) FreeVoice(id VoiceID) {
	e.pool.Release(id)
}

// UpdateModulatedData publishes the latest normalized position and energy of
// the object owning id. Updates to free voices are ignored.
func (e *Engine) UpdateModulatedData(id VoiceID, x, y, energy float64) {
	e.pool.SetModulation(id, energy, y, x)
}

// RetriggerBuffer commands a new playback rate. A rate that differs from the
// one last applied restarts the voice from the start (forward) or the end
// (reverse). Zero and non-finite rates are ignored.
func (e *Engine) RetriggerBuffer(id VoiceID, rate float64) {
	if !modulation.Playable(rate) {
		e.logger.Printf("samplebox: voice %d: ignoring degenerate rate %v", id, rate)
		return
	}
	e.pool.SetRate(id, rate)
}

// ReloadSample swaps the sample behind every voice. Sounding voices restart
// on the new sample at the next control tick. On failure the previous sample
// stays loaded.
func (e *Engine) ReloadSample(name string) error {
	if e.library == nil {
		return ErrNoLibrary
	}
	s, err := e.bank.Reload(name)
	if err != nil {
		e.logger.Printf("samplebox: reload %s: %v", name, err)
		return err
	}
	e.logger.Printf("samplebox: loaded %s (%.3fs)", s.Name, s.Seconds())
	return nil
}

// SetSample installs an already-decoded sample as if it had been reloaded.
func (e *Engine) SetSample(s *sample.Sample) {
	e.bank.Set(s)
}

// SampleLength returns the current sample duration in seconds, 0 while no
// sample is loaded.
func (e *Engine) SampleLength() float64 {
	return e.bank.Seconds()
}

// Samples returns the catalog, or nil without a library.
func (e *Engine) Samples() []string {
	if e.library == nil {
		return nil
	}
	return e.library.Names()
}

// KillAll silences every voice immediately. Open voices regain their gain
// on the next control tick, so callers free voices first.
func (e *Engine) KillAll() {
	e.mixer.Silence()
}

// LastTick returns a copy of the snapshots committed by the latest tick.
func (e *Engine) LastTick() []Snapshot {
	return e.mod.LastTick()
}

// Preview plays a catalog sample once at its native speed, outside the
// voice pool.
func (e *Engine) Preview(name string) error {
	if e.library == nil {
		return ErrNoLibrary
	}
	s, err := e.library.Load(name)
	if err != nil {
		return err
	}
	e.mixer.Preview(s)
	return nil
}

// StartRecording begins capturing the engine output.
func (e *Engine) StartRecording() error {
	return e.recorder.Start()
}

// Recording reports whether a capture is in progress.
func (e *Engine) Recording() bool {
	return e.recorder.Recording()
}

// StopRecording ends the capture. The result becomes the library's custom
// sample.
func (e *Engine) StopRecording() (*sample.Sample, error) {
	s, err := e.recorder.Stop()
	if err != nil {
		return nil, err
	}
	if e.library != nil {
		e.library.SetCustom(s)
	}
	e.logger.Printf("samplebox: recorded %.2fs", s.Seconds())
	return s, nil
}

// SetMasterVolume sets the output scalar. 1.0 is default.
func (e *Engine) SetMasterVolume(volume float64) {
	if volume < 0 || math.IsNaN(volume) {
		volume = 0
	}
	e.volume.Store(math.Float64bits(volume))
}

func (e *Engine) MasterVolume() float64 {
	return math.Float64frombits(e.volume.Load())
}

// Process renders interleaved stereo frames. The output backend calls it;
// RenderOffline calls it between control ticks.
func (e *Engine) Process(dst []float32) {
	e.mixer.Process(dst)
	if v := float32(e.MasterVolume()); v != 1 {
		for i := range dst {
			dst[i] *= v
		}
	}
	e.recorder.Tap(dst)
	if e.cfg.sampleTap != nil {
		e.cfg.sampleTap(dst)
	}
}

// Start runs the control loop and opens the audio backend. It returns once
// both are running; Close or cancelling ctx stops the loop.
func (e *Engine) Start(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Close may have run between the check above and the lock.
	if e.closed.Load() {
		return ErrClosed
	}
	if e.cancel != nil {
		return ErrRunning
	}

	var out intaudio.Output
	var err error
	switch e.cfg.backend {
	case BackendEbiten:
		out, err = intaudio.NewEbitenPlayer(e.sampleRate, e)
	case BackendOto:
		out, err = intaudio.NewOtoPlayer(e.sampleRate, e)
	case BackendNone:
	default:
		err = fmt.Errorf("unknown backend %v", e.cfg.backend)
	}
	if err != nil {
		return fmt.Errorf("samplebox: open %v output: %w", e.cfg.backend, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.mod.Run(ctx)
	}()
	if out != nil {
		out.Play()
	}
	e.out, e.cancel, e.done = out, cancel, done
	return nil
}

// Close stops the control loop and the audio backend. Later calls return
// ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	e.pool.ReleaseAll()
	e.mixer.Silence()
	if e.out != nil {
		err := e.out.Close()
		e.out = nil
		return err
	}
	return nil
}
