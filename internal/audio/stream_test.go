package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

type rampSource struct{ next float32 }

func (s *rampSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = s.next
		s.next++
	}
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 24 {
		t.Fatalf("n = %d, want 24", n)
	}
	for i := 0; i < 6; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i) {
			t.Fatalf("sample %d = %v, want %d", i, got, i)
		}
	}
	if r.Frames() != 3 {
		t.Fatalf("frames = %d, want 3", r.Frames())
	}
}

func TestStreamReaderShortBuffer(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	if n, err := r.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Fatalf("Read = %d, %v; want 0, nil", n, err)
	}
}
