package samplebox

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cbegin/samplebox/internal/modulation"
	"github.com/cbegin/samplebox/internal/sample"
)

const testRate = 8000

func sineWAV(t *testing.T, frames, rate int) []byte {
	t.Helper()
	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(0.8 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "s.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := sample.WriteWAV(f, data, rate, 1); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	raw, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func testLibrary(t *testing.T) *sample.Library {
	t.Helper()
	fsys := fstest.MapFS{
		"Bell.wav":   {Data: sineWAV(t, testRate, testRate)},
		"Dialup.wav": {Data: sineWAV(t, testRate/2, testRate)},
	}
	return sample.NewLibrary(fsys, nil)
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithBackend(BackendNone), WithLibrary(testLibrary(t))}, opts...)
	e, err := New(testRate, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	if err := e.ReloadSample("Bell.wav"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return e
}

func TestNewRejectsBadSampleRate(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestCapacityScenario(t *testing.T) {
	e := newTestEngine(t, WithVoices(2))
	a, err := e.OpenNewVoice(0.5, 0.5, 5, 1)
	if err != nil {
		t.Fatalf("open A: %v", err)
	}
	b, err := e.OpenNewVoice(0.5, 0.5, -3, 1)
	if err != nil {
		t.Fatalf("open B: %v", err)
	}
	if e.ActiveVoices() != 2 {
		t.Fatalf("active = %d, want 2", e.ActiveVoices())
	}
	e.Tick()
	if g := e.LastTick()[b].AutoGain; g != 0.5 {
		t.Fatalf("auto gain = %v, want 0.5", g)
	}

	c, err := e.OpenNewVoice(0.5, 0.5, 1, 1)
	if !errors.Is(err, ErrCapacityExhausted) || c != InvalidVoice {
		t.Fatalf("open C = %d, %v; want InvalidVoice, ErrCapacityExhausted", c, err)
	}
	if e.ActiveVoices() != 2 {
		t.Fatalf("failed open changed active count")
	}

	e.FreeVoice(a)
	e.FreeVoice(a)
	if e.ActiveVoices() != 1 {
		t.Fatalf("active = %d, want 1", e.ActiveVoices())
	}
	e.Tick()
	if g := e.LastTick()[b].AutoGain; g != 1 {
		t.Fatalf("auto gain = %v, want 1", g)
	}
	c, err = e.OpenNewVoice(0.5, 0.5, 1, 1)
	if err != nil || c != a {
		t.Fatalf("open C = %d, %v; want %d", c, err, a)
	}
}

func TestRetriggerIgnoresDegenerateRates(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(t, WithLogger(log.New(&buf, "", 0)))
	id, _ := e.OpenNewVoice(0, 0.5, 1, 1)
	e.Tick()
	for _, r := range []float64{0, math.NaN(), math.Inf(1)} {
		e.RetriggerBuffer(id, r)
	}
	e.Tick()
	s := e.LastTick()[id]
	if s.Rate != 1 || s.SetRate {
		t.Fatalf("degenerate rate leaked: %+v", s)
	}
	if n := strings.Count(buf.String(), "degenerate rate"); n != 3 {
		t.Fatalf("logged %d degenerate rates, want 3:\n%s", n, buf.String())
	}

	e.RetriggerBuffer(id, -2)
	e.Tick()
	s = e.LastTick()[id]
	if !s.SetRate || s.Rate != -2 || s.Seek != testRate {
		t.Fatalf("reverse retrigger = %+v, want seek to end", s)
	}
}

func TestReloadSample(t *testing.T) {
	e := newTestEngine(t)
	if got := e.SampleLength(); got != 1 {
		t.Fatalf("sample length = %v, want 1", got)
	}
	if err := e.ReloadSample("Dialup.wav"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := e.SampleLength(); got != 0.5 {
		t.Fatalf("sample length = %v, want 0.5", got)
	}
	if err := e.ReloadSample("nope.wav"); !errors.Is(err, sample.ErrUnknownSample) {
		t.Fatalf("reload unknown err = %v", err)
	}
	if err := e.ReloadSample(sample.CustomName); !errors.Is(err, sample.ErrNoCustomSample) {
		t.Fatalf("reload custom err = %v", err)
	}
	if got := e.SampleLength(); got != 0.5 {
		t.Fatalf("failed reload changed the sample: %v", got)
	}

	bare, _ := New(testRate, WithBackend(BackendNone))
	if err := bare.ReloadSample("Bell.wav"); !errors.Is(err, ErrNoLibrary) {
		t.Fatalf("reload without library err = %v", err)
	}
	if bare.SampleLength() != 0 {
		t.Fatalf("sample length before load should be 0")
	}
}

func render(t *testing.T, e *Engine, seconds float64) []float32 {
	t.Helper()
	out, err := e.RenderSeconds(seconds)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return out
}

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

func TestRenderOfflineIsDeterministic(t *testing.T) {
	run := func() []float32 {
		e := newTestEngine(t)
		a, _ := e.OpenNewVoice(0.1, 1, 1, 1)
		e.OpenNewVoice(0.6, 0.3, -0.5, 0.7)
		first := render(t, e, 0.1)
		e.UpdateModulatedData(a, 0.2, 0.8, 0.5)
		e.RetriggerBuffer(a, -1)
		return append(first, render(t, e, 0.1)...)
	}
	x, y := run(), run()
	if len(x) != len(y) {
		t.Fatalf("length mismatch %d vs %d", len(x), len(y))
	}
	for i := range x {
		if x[i] != y[i] {
			t.Fatalf("render differs at %d: %v vs %v", i, x[i], y[i])
		}
	}
	if peak(x) < 0.01 {
		t.Fatalf("render is silent")
	}
}

func TestRenderOfflineTicksPerPeriod(t *testing.T) {
	e := newTestEngine(t, WithControlPeriod(5*time.Millisecond))
	if e.ControlFrames() != 40 {
		t.Fatalf("control frames = %d, want 40", e.ControlFrames())
	}
	buf := make([]float32, 2*30)
	for i := 0; i < 4; i++ {
		if err := e.RenderOffline(buf); err != nil {
			t.Fatal(err)
		}
	}
	// 120 frames cross boundaries at 0, 40 and 80.
	if got := e.mod.Ticks(); got != 3 {
		t.Fatalf("ticks = %d, want 3", got)
	}
}

func TestKillAllSilences(t *testing.T) {
	e := newTestEngine(t, WithLimiter(false))
	id, _ := e.OpenNewVoice(0, 1, 1, 1)
	if peak(render(t, e, 0.05)) < 0.01 {
		t.Fatalf("voice should be audible")
	}
	e.FreeVoice(id)
	e.KillAll()
	buf := make([]float32, 2*400)
	e.Process(buf)
	if p := peak(buf[len(buf)-20:]); p > 1e-3 {
		t.Fatalf("output after KillAll peak = %v", p)
	}
}

func TestRecordingBecomesCustomSample(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.StopRecording(); !errors.Is(err, sample.ErrRecording) {
		t.Fatalf("stop without start err = %v", err)
	}
	if err := e.StartRecording(); err != nil {
		t.Fatal(err)
	}
	if !e.Recording() {
		t.Fatalf("recording flag not set")
	}
	e.OpenNewVoice(0, 1, 1, 1)
	render(t, e, 0.25)
	s, err := e.StopRecording()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Len() != testRate/4 {
		t.Fatalf("recorded %d frames, want %d", s.Len(), testRate/4)
	}
	if err := e.ReloadSample(sample.CustomName); err != nil {
		t.Fatalf("reload custom: %v", err)
	}
	if got := e.SampleLength(); got != 0.25 {
		t.Fatalf("custom length = %v, want 0.25", got)
	}
}

func TestPreview(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Preview("Dialup.wav"); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if peak(render(t, e, 0.1)) < 0.01 {
		t.Fatalf("preview is silent")
	}
	if err := e.Preview("missing.wav"); !errors.Is(err, sample.ErrUnknownSample) {
		t.Fatalf("preview unknown err = %v", err)
	}
}

func TestMasterVolumeAndTap(t *testing.T) {
	var tapped int
	e := newTestEngine(t, WithSampleTap(func(buf []float32) { tapped += len(buf) }))
	if e.MasterVolume() != 1 {
		t.Fatalf("default volume = %v", e.MasterVolume())
	}
	e.SetMasterVolume(-1)
	if e.MasterVolume() != 0 {
		t.Fatalf("volume should clamp to 0")
	}
	e.OpenNewVoice(0, 1, 1, 1)
	out := render(t, e, 0.05)
	if peak(out) != 0 {
		t.Fatalf("muted output not silent")
	}
	if tapped != len(out) {
		t.Fatalf("tapped %d samples, want %d", tapped, len(out))
	}
}

func TestStartAndClose(t *testing.T) {
	e := newTestEngine(t, WithControlPeriod(time.Millisecond))
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second start err = %v", err)
	}
	if err := e.RenderOffline(make([]float32, 8)); !errors.Is(err, ErrRunning) {
		t.Fatalf("offline while running err = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for e.mod.Ticks() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if e.mod.Ticks() == 0 {
		t.Fatalf("control loop never ticked")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := e.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second close err = %v", err)
	}
	if id, err := e.OpenNewVoice(0, 0, 1, 1); id != InvalidVoice || !errors.Is(err, ErrClosed) {
		t.Fatalf("open after close = %d, %v", id, err)
	}
}

func TestStartRacingCloseNeverLeavesLoopRunning(t *testing.T) {
	for i := range 100 {
		e, err := New(testRate, WithBackend(BackendNone), WithControlPeriod(time.Millisecond))
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		var wg sync.WaitGroup
		var startErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			startErr = e.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			e.Close()
		}()
		wg.Wait()
		if startErr != nil && !errors.Is(startErr, ErrClosed) {
			t.Fatalf("iteration %d: start err = %v", i, startErr)
		}
		if e.done != nil {
			select {
			case <-e.done:
			default:
				t.Fatalf("iteration %d: control loop running after close", i)
			}
		}
	}
}

func TestOpenNewVoiceWithoutUsableRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
	}{
		{"zero", 0},
		{"nan", math.NaN()},
		{"inf", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			id, err := e.OpenNewVoice(0.5, 0.5, tt.rate, 1)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			for range 5 {
				e.Tick()
				s := e.LastTick()[id]
				if s.SetRate || s.Seek != modulation.NoSeek || s.Gain != 0 {
					t.Fatalf("unrated voice touched the player: %+v", s)
				}
			}
			e.RetriggerBuffer(id, 2)
			e.Tick()
			s := e.LastTick()[id]
			if !s.SetRate || s.Rate != 2 || s.Seek != testRate/2 {
				t.Fatalf("first usable rate = %+v, want rate 2 from frame %d", s, testRate/2)
			}
			if s.Gain != 1 {
				t.Fatalf("gain = %v, want 1", s.Gain)
			}
			e.Tick()
			if s := e.LastTick()[id]; s.SetRate || s.Seek != modulation.NoSeek {
				t.Fatalf("rated voice reseeked: %+v", s)
			}
		})
	}
}

func TestOpenNewVoiceClampsStart(t *testing.T) {
	e := newTestEngine(t)
	id, _ := e.OpenNewVoice(-0.4, 0.5, 1, 1)
	e.Tick()
	if s := e.LastTick()[id]; !s.SetRate || s.Seek != 0 {
		t.Fatalf("negative start = %+v, want seek 0", s)
	}
	e.FreeVoice(id)
	id, _ = e.OpenNewVoice(math.NaN(), 0.5, 1, 1)
	e.Tick()
	if s := e.LastTick()[id]; !s.SetRate || s.Seek != 0 {
		t.Fatalf("reused slot with NaN start = %+v, want seek 0", s)
	}
}

func TestWriteWAV(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteWAV(f, []float32{0, 0, 0.5, -0.5}, testRate); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	s, err := sample.Decode(f, "out.wav")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Len() != 2 || s.Rate != testRate {
		t.Fatalf("decoded %d frames at %d Hz", s.Len(), s.Rate)
	}
}
