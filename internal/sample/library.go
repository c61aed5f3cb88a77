package sample

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
)

// CustomName is the catalog entry backed by the user's recording.
const CustomName = "custom.wav"

// DefaultNames is the built-in sample catalog, in menu order.
var DefaultNames = []string{
	"Dialup.wav",
	"Bell.wav",
	"HELL_YEAH.wav",
	"oooooahhh.wav",
	"Breakbeat.wav",
	"River.wav",
	CustomName,
}

var (
	ErrUnknownSample  = errors.New("sample: unknown sample")
	ErrNoCustomSample = errors.New("sample: no custom sample recorded")
)

// Library resolves catalog names to decoded samples from a file system.
type Library struct {
	fsys  fs.FS
	names []string

	mu     sync.Mutex
	custom *Sample
}

// NewLibrary creates a library over fsys with the given catalog. A nil names
// slice uses DefaultNames.
func NewLibrary(fsys fs.FS, names []string) *Library {
	if names == nil {
		names = DefaultNames
	}
	cp := make([]string, len(names))
	copy(cp, names)
	return &Library{fsys: fsys, names: cp}
}

// Names returns the catalog.
func (l *Library) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Load decodes name. Names outside the catalog are rejected.
func (l *Library) Load(name string) (*Sample, error) {
	if !l.has(name) {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSample)
	}
	if name == CustomName {
		l.mu.Lock()
		c := l.custom
		l.mu.Unlock()
		if c != nil {
			return c, nil
		}
		// Fall back to a custom.wav on disk from an earlier session.
		if l.fsys != nil {
			if s, err := l.loadFile(name); err == nil {
				return s, nil
			}
		}
		return nil, ErrNoCustomSample
	}
	if l.fsys == nil {
		return nil, fmt.Errorf("%q: %w", name, fs.ErrNotExist)
	}
	return l.loadFile(name)
}

func (l *Library) loadFile(name string) (*Sample, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return DecodeBytes(data, name)
}

// SetCustom installs a recorded sample as the custom entry.
func (l *Library) SetCustom(s *Sample) {
	if s != nil {
		s.Name = CustomName
	}
	l.mu.Lock()
	l.custom = s
	l.mu.Unlock()
}

// HasCustom reports whether a recording is available.
func (l *Library) HasCustom() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.custom != nil
}

func (l *Library) has(name string) bool {
	for _, n := range l.names {
		if n == name {
			return true
		}
	}
	return false
}
