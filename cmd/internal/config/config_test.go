package config

import (
	"testing"

	"github.com/cbegin/samplebox"
)

func TestReverbFromFlag(t *testing.T) {
	for _, name := range []string{"none", "light", "medium", "hall"} {
		if _, err := ReverbFromFlag(name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if _, err := ReverbFromFlag("cathedral"); err == nil {
		t.Fatalf("expected error for unknown setting")
	}
}

func TestBackendFromFlag(t *testing.T) {
	b, err := BackendFromFlag("OTO")
	if err != nil || b != samplebox.BackendOto {
		t.Fatalf("backend = %v, %v", b, err)
	}
	if _, err := BackendFromFlag("alsa"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadSampleFallsBack(t *testing.T) {
	e, err := samplebox.New(8000, samplebox.WithBackend(samplebox.BackendNone), samplebox.WithLibrary(OpenLibrary(t.TempDir())))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	LoadSample(e, "Bell.wav", "")
	if got := e.SampleLength(); got != 2 {
		t.Fatalf("sample length = %v, want 2", got)
	}
}

func TestFallbackIsBounded(t *testing.T) {
	s := Fallback(8000)
	if s.Len() != 16000 {
		t.Fatalf("len = %d", s.Len())
	}
	for i, v := range s.Data {
		if v > 1 || v < -1 {
			t.Fatalf("sample %d = %v out of range", i, v)
		}
	}
}
