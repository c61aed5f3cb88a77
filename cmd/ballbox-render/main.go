// Command ballbox-render plays a scenario into a WAV file without an audio
// device.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/cbegin/samplebox"
	"github.com/cbegin/samplebox/cmd/internal/config"
	"github.com/cbegin/samplebox/internal/scenario"
	"github.com/cbegin/samplebox/internal/sim"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("ballbox-render: ")

	var (
		out        = flag.String("o", "out.wav", "output WAV file")
		sampleRate = flag.Int("rate", 48000, "output sample rate")
		seconds    = flag.Float64("seconds", 10, "length when no script is given")
		script     = flag.String("script", "", "Lua scenario file")
		samples    = flag.String("samples", "samples", "directory holding the sample catalog")
		sampleName = flag.String("sample", "Bell.wav", "starting sample")
		wavIn      = flag.String("wav", "", "use this WAV file as the starting sample")
		balls      = flag.Int("balls", 8, "random balls when no script is given")
		gravity    = flag.Float64("gravity", 0.5, "gravity slider when no script is given")
		seed       = flag.Uint64("seed", 1, "random seed")
		reverb     = flag.String("reverb", "none", "reverb setting (none|light|medium|hall)")
		voices     = flag.Int("voices", samplebox.DefaultVoices, "voice capacity")
		verbose    = flag.Bool("v", false, "log engine events")
	)
	flag.Parse()

	name, src, err := resolveScript(*script, *balls, *gravity, *seconds)
	if err != nil {
		log.Fatal(err)
	}
	mix, err := config.ReverbFromFlag(*reverb)
	if err != nil {
		log.Fatal(err)
	}

	opts := []samplebox.EngineOption{
		samplebox.WithBackend(samplebox.BackendNone),
		samplebox.WithLibrary(config.OpenLibrary(*samples)),
		samplebox.WithReverb(mix),
		samplebox.WithVoices(*voices),
	}
	if *verbose {
		opts = append(opts, samplebox.WithLogger(log.Default()))
	}
	e, err := samplebox.New(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer e.Close()
	config.LoadSample(e, *sampleName, *wavIn)

	// SIGINT stops the render early; what was rendered is still written.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	var progress io.Writer = io.Discard
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progress = os.Stderr
	}
	frames, err := render(ctx, e, name, src, *seed, progress)
	if err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := samplebox.WriteWAV(f, frames, *sampleRate); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%.2fs)\n", *out, float64(len(frames)/2)/float64(*sampleRate))
}

func resolveScript(path string, balls int, gravity, seconds float64) (name, src string, err error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", err
		}
		return path, string(data), nil
	}
	if seconds <= 0 {
		return "", "", fmt.Errorf("invalid -seconds %v", seconds)
	}
	return "default", fmt.Sprintf("gravity(%g)\nadd(%d)\nwait(%g)\n", gravity, balls, seconds), nil
}

// render runs the scenario against e, rendering audio after every simulation
// frame, and returns the interleaved stereo output.
func render(ctx context.Context, e *samplebox.Engine, name, src string, seed uint64, progress io.Writer) ([]float32, error) {
	var (
		out      []float32
		elapsed  float64
		lastSec  = -1
		rendered int
	)
	rate := float64(e.SampleRate())
	advance := func(dt float64) error {
		elapsed += dt
		// Track the target frame count so rates that do not divide the
		// frame step evenly do not drift.
		target := int(math.Round(elapsed * rate))
		n := target - rendered
		if n <= 0 {
			return nil
		}
		start := len(out)
		out = append(out, make([]float32, n*2)...)
		if err := e.RenderOffline(out[start:]); err != nil {
			return err
		}
		rendered = target
		if s := int(elapsed); s != lastSec {
			lastSec = s
			fmt.Fprintf(progress, "\r%ds", s)
		}
		return nil
	}

	world := sim.New(e, sim.WithLogger(e.Logger()))
	r := scenario.New(world, e, advance, scenario.WithSeed(seed), scenario.WithLogger(e.Logger()))
	err := r.Run(ctx, name, src)
	fmt.Fprint(progress, "\r")
	return out, err
}
