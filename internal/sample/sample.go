package sample

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrInvalidWAV = errors.New("sample: not a valid WAV file")
	ErrNotLoaded  = errors.New("sample: no sample loaded")
)

// Sample is a decoded mono waveform.
type Sample struct {
	Name string
	Rate int       // source sample rate in Hz
	Data []float32 // mono, normalized to [-1, 1]
}

// Len returns the length in samples. A nil sample has length 0.
func (s *Sample) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Data)
}

// Seconds returns the duration. A nil or empty sample has duration 0.
func (s *Sample) Seconds() float64 {
	if s == nil || s.Rate <= 0 {
		return 0
	}
	return float64(len(s.Data)) / float64(s.Rate)
}

// Decode reads a PCM WAV stream and mixes it down to mono.
func Decode(r io.ReadSeeker, name string) (*Sample, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", name, ErrInvalidWAV)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	chans := int(d.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		chans = buf.Format.NumChannels
	}
	if chans <= 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrInvalidWAV)
	}
	depth := int(d.BitDepth)
	if buf.SourceBitDepth > 0 {
		depth = buf.SourceBitDepth
	}
	scale, offset := pcmScale(depth)

	frames := len(buf.Data) / chans
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < chans; c++ {
			sum += (float64(buf.Data[i*chans+c]) - offset) / scale
		}
		out[i] = float32(sum / float64(chans))
	}
	return &Sample{Name: name, Rate: int(d.SampleRate), Data: out}, nil
}

// DecodeBytes decodes an in-memory WAV file.
func DecodeBytes(data []byte, name string) (*Sample, error) {
	return Decode(bytes.NewReader(data), name)
}

// 8-bit WAV is unsigned; wider depths are signed.
func pcmScale(depth int) (scale, offset float64) {
	switch {
	case depth <= 8:
		return 128, 128
	case depth >= 32:
		return float64(int64(1) << 31), 0
	default:
		return float64(int64(1) << (depth - 1)), 0
	}
}

// WriteWAV encodes interleaved float samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// Save writes s as a mono 16-bit WAV.
func (s *Sample) Save(w io.WriteSeeker) error {
	if s.Len() == 0 {
		return ErrNotLoaded
	}
	return WriteWAV(w, s.Data, s.Rate, 1)
}
