// Package config holds the flag parsing and sample setup shared by the
// samplebox commands.
package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/cbegin/samplebox"
	"github.com/cbegin/samplebox/internal/sample"
)

// FallbackName names the synthesized sample used when no file could be read.
const FallbackName = "fallback"

// ReverbFromFlag maps a reverb setting to a wet mix.
func ReverbFromFlag(reverb string) (float32, error) {
	switch strings.ToLower(reverb) {
	case "none", "":
		return 0, nil
	case "light":
		// Small room
		return 0.15, nil
	case "medium":
		return 0.3, nil
	case "hall":
		return 0.5, nil
	}
	return 0, fmt.Errorf("unrecognized reverb setting %q", reverb)
}

// BackendFromFlag maps an output name to a backend.
func BackendFromFlag(name string) (samplebox.Backend, error) {
	switch strings.ToLower(name) {
	case "ebiten":
		return samplebox.BackendEbiten, nil
	case "oto":
		return samplebox.BackendOto, nil
	case "none":
		return samplebox.BackendNone, nil
	}
	return 0, fmt.Errorf("unrecognized output %q (expected ebiten|oto|none)", name)
}

// OpenLibrary returns the default catalog read from dir.
func OpenLibrary(dir string) *sample.Library {
	return sample.NewLibrary(os.DirFS(dir), nil)
}

// LoadSample installs the starting sample: wavPath when given, otherwise
// the catalog entry name. If neither can be read a synthesized sample is
// used so the program still makes sound.
func LoadSample(e *samplebox.Engine, name, wavPath string) {
	if wavPath != "" {
		s, err := readWAV(wavPath)
		if err == nil {
			e.SetSample(s)
			return
		}
		log.Printf("%s: %v", wavPath, err)
	} else if err := e.ReloadSample(name); err == nil {
		return
	} else {
		log.Printf("%s: %v", name, err)
	}
	log.Printf("using a synthesized sample")
	e.SetSample(Fallback(e.SampleRate()))
}

func readWAV(path string) (*sample.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sample.Decode(f, path)
}

// Fallback synthesizes a two second struck bell at rate Hz.
func Fallback(rate int) *sample.Sample {
	n := 2 * rate
	data := make([]float32, n)
	partials := []struct{ ratio, amp, decay float64 }{
		{1, 0.5, 1.5},
		{2.76, 0.25, 3},
		{5.4, 0.15, 5},
		{8.93, 0.1, 8},
	}
	const fundamental = 330.0
	for i := range data {
		t := float64(i) / float64(rate)
		var v float64
		for _, p := range partials {
			v += p.amp * math.Exp(-p.decay*t) * math.Sin(2*math.Pi*fundamental*p.ratio*t)
		}
		data[i] = float32(v)
	}
	return &sample.Sample{Name: FallbackName, Rate: rate, Data: data}
}
