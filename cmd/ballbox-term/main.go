// Command ballbox-term runs the ball box headless and plays it through the
// default audio device, driven from the keyboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/cbegin/samplebox"
	"github.com/cbegin/samplebox/cmd/internal/config"
	"github.com/cbegin/samplebox/internal/mapping"
	"github.com/cbegin/samplebox/internal/sim"
)

var (
	flagHz      = flag.Int("hz", 44100, "output sample rate")
	flagSamples = flag.String("samples", "samples", "directory holding the sample catalog")
	flagSample  = flag.String("sample", "Bell.wav", "starting sample")
	flagWAV     = flag.String("wav", "", "play this WAV file instead of a catalog sample")
	flagBalls   = flag.Int("balls", 8, "balls to launch at startup")
	flagReverb  = flag.String("reverb", "light", "reverb setting (none|light|medium|hall)")
	flagOutput  = flag.String("output", "oto", "audio output (oto|ebiten)")
	flagNoUI    = flag.Bool("noui", false, "turn off the status line")
)

var (
	cyan    = color.New(color.FgCyan).SprintfFunc()
	yellow  = color.New(color.FgYellow).SprintfFunc()
	green   = color.New(color.FgGreen).SprintfFunc()
	magenta = color.New(color.FgMagenta).SprintfFunc()
	red     = color.New(color.FgRed).SprintfFunc()
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"
	clearLine  = "\r" + escape + "K"

	frameRate = 60
)

var bouncePresets = []float64{1, 0.8, 0.5, 0.2}

type command func(*session)

type session struct {
	engine  *samplebox.Engine
	world   *sim.World
	rng     *rand.Rand
	names   []string
	current int

	gravity float64
	bounce  int
	volume  float64
	note    string
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ballbox: ")
	flag.Parse()

	mix, err := config.ReverbFromFlag(*flagReverb)
	if err != nil {
		log.Fatal(err)
	}
	backend, err := config.BackendFromFlag(*flagOutput)
	if err != nil {
		log.Fatal(err)
	}

	e, err := samplebox.New(*flagHz,
		samplebox.WithBackend(backend),
		samplebox.WithLibrary(config.OpenLibrary(*flagSamples)),
		samplebox.WithReverb(mix),
	)
	if err != nil {
		log.Fatal(err)
	}
	config.LoadSample(e, *flagSample, *flagWAV)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := e.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer e.Close()

	var uiw io.Writer = os.Stdout
	if *flagNoUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		uiw = io.Discard
	}
	fmt.Fprint(uiw, hideCursor)
	defer fmt.Fprint(uiw, showCursor)

	s := &session{
		engine: e,
		world:  sim.New(e),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		names:  e.Samples(),
		volume: 1,
	}
	for range *flagBalls {
		s.add()
	}

	cmds := make(chan command, 16)
	go func() {
		keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			c, quit := commandFor(key)
			if quit {
				cancel()
				return true, nil
			}
			if c != nil {
				cmds <- c
			}
			return false, nil
		})
	}()

	fmt.Fprintln(uiw, cyan("space")+" add  "+cyan("c")+" clear  "+cyan("s")+" sample  "+cyan("r")+" record  "+
		cyan("p")+" preview  "+cyan("b")+" bounce  "+cyan("up/down")+" gravity  "+cyan("left/right")+" volume  "+cyan("esc")+" quit")

	frame := time.NewTicker(time.Second / frameRate)
	defer frame.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(uiw, clearLine)
			return
		case c := <-cmds:
			c(s)
		case <-frame.C:
			s.world.Step(1.0 / frameRate)
			if n++; n%6 == 0 {
				fmt.Fprint(uiw, clearLine+s.statusLine())
			}
		}
	}
}

// commandFor maps a key press to a session command.
func commandFor(key keys.Key) (c command, quit bool) {
	switch key.Code {
	case keys.CtrlC, keys.Escape:
		return nil, true
	case keys.Space:
		return (*session).add, false
	case keys.Up:
		return func(s *session) { s.setGravity(s.gravity + 0.1) }, false
	case keys.Down:
		return func(s *session) { s.setGravity(s.gravity - 0.1) }, false
	case keys.Left:
		return func(s *session) { s.setVolume(s.volume - 0.1) }, false
	case keys.Right:
		return func(s *session) { s.setVolume(s.volume + 0.1) }, false
	case keys.RuneKey:
		switch key.Runes[0] {
		case 'q':
			return nil, true
		case ' ':
			return (*session).add, false
		case 'c':
			return (*session).clear, false
		case 's':
			return (*session).nextSample, false
		case 'r':
			return (*session).toggleRecord, false
		case 'p':
			return (*session).preview, false
		case 'b':
			return (*session).nextBounce, false
		}
	}
	return nil, false
}

func (s *session) add() {
	if _, err := s.world.AddRandom(s.rng); err != nil {
		s.note = red("%v", err)
	}
}

func (s *session) clear() {
	s.world.Clear()
	s.note = "cleared"
}

func (s *session) setGravity(v float64) {
	s.gravity = mapping.Clamp01(v)
	s.world.SetGravity(s.gravity)
}

func (s *session) setVolume(v float64) {
	s.volume = mapping.Clamp01(v)
	s.engine.SetMasterVolume(s.volume)
}

func (s *session) nextBounce() {
	s.bounce = (s.bounce + 1) % len(bouncePresets)
	s.world.SetHorizontalBounce(bouncePresets[s.bounce])
	s.world.SetVerticalBounce(bouncePresets[s.bounce])
}

func (s *session) nextSample() {
	if len(s.names) == 0 {
		s.note = red("no sample catalog")
		return
	}
	s.current = (s.current + 1) % len(s.names)
	s.world.Clear()
	if err := s.engine.ReloadSample(s.names[s.current]); err != nil {
		s.note = red("%s: %v", s.names[s.current], err)
		return
	}
	s.note = "sample " + s.names[s.current]
}

func (s *session) toggleRecord() {
	if !s.engine.Recording() {
		if err := s.engine.StartRecording(); err != nil {
			s.note = red("%v", err)
			return
		}
		s.note = red("recording")
		return
	}
	rec, err := s.engine.StopRecording()
	if err != nil {
		s.note = red("%v", err)
		return
	}
	s.note = fmt.Sprintf("recorded %.2fs", rec.Seconds())
}

func (s *session) preview() {
	if len(s.names) == 0 {
		return
	}
	if err := s.engine.Preview(s.names[s.current]); err != nil {
		s.note = red("%v", err)
	}
}

func (s *session) statusLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  ", yellow("voices"), green("%3d/%d", s.engine.ActiveVoices(), s.engine.Capacity()))
	fmt.Fprintf(&b, "%s %s  ", yellow("gravity"), magenta("%3.0f", -s.world.Gravity()))
	fmt.Fprintf(&b, "%s %s  ", yellow("bounce"), magenta("%3.0f%%", bouncePresets[s.bounce]*100))
	fmt.Fprintf(&b, "%s %s  ", yellow("vol"), magenta("%3.0f%%", s.volume*100))
	fmt.Fprintf(&b, "%s %s  ", yellow("sample"), cyan("%.2fs", s.engine.SampleLength()))
	b.WriteString(s.note)
	return b.String()
}
