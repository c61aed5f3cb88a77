package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"math/rand/v2"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/samplebox"
	"github.com/cbegin/samplebox/cmd/internal/config"
	"github.com/cbegin/samplebox/internal/mapping"
	"github.com/cbegin/samplebox/internal/sample"
	"github.com/cbegin/samplebox/internal/sim"
)

const (
	windowW      = 1100
	windowH      = 720
	minWindowW   = 980
	minWindowH   = 680
	uiSampleRate = 48000

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var (
	samplesFlag = flag.String("samples", "samples", "directory holding the sample catalog")
	sampleFlag  = flag.String("sample", "Bell.wav", "starting sample")
	voicesFlag  = flag.Int("voices", samplebox.DefaultVoices, "voice capacity")
	reverbFlag  = flag.String("reverb", "light", "reverb setting (none|light|medium|hall)")
	verboseFlag = flag.Bool("v", false, "log engine events")
)

type worldPoint = mapping.Vec2

const (
	sliderNone = iota
	sliderGravity
	sliderHBounce
	sliderVBounce
	sliderVolume
)

type game struct {
	engine *samplebox.Engine
	world  *sim.World
	scope  *scope
	rng    *rand.Rand
	cancel context.CancelFunc

	sampleNames []string
	sampleIdx   int

	gravity, hBounce, vBounce, volume float64
	dragging                          int

	aiming    bool
	aimStart  worldPoint
	aimEnd    worldPoint
	lastFlash int // frames left on the wall flash

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(ctx context.Context) (*game, error) {
	mix, err := config.ReverbFromFlag(*reverbFlag)
	if err != nil {
		return nil, err
	}
	sc := newScope()
	opts := []samplebox.EngineOption{
		samplebox.WithVoices(*voicesFlag),
		samplebox.WithLibrary(config.OpenLibrary(*samplesFlag)),
		samplebox.WithBackend(samplebox.BackendEbiten),
		samplebox.WithReverb(mix),
		samplebox.WithSampleTap(sc.Tap),
	}
	if *verboseFlag {
		opts = append(opts, samplebox.WithLogger(log.Default()))
	}
	e, err := samplebox.New(uiSampleRate, opts...)
	if err != nil {
		return nil, err
	}
	config.LoadSample(e, *sampleFlag, "")

	ctx, cancel := context.WithCancel(ctx)
	if err := e.Start(ctx); err != nil {
		cancel()
		e.Close()
		return nil, err
	}

	g := &game{
		engine:      e,
		world:       sim.New(e, sim.WithLogger(e.Logger())),
		scope:       sc,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		cancel:      cancel,
		sampleNames: e.Samples(),
		hBounce:     1,
		vBounce:     1,
		volume:      1,
		status:      "Drag inside the box to launch a ball",
		textCache:   make(map[string]*ebiten.Image, 256),
		viewW:       windowW,
		viewH:       windowH,
	}
	g.sampleIdx = max(0, slices.Index(g.sampleNames, *sampleFlag))
	return g, nil
}

func (g *game) Update() error {
	g.handleMouse()
	g.handleKeys()
	hits := g.world.Step(1.0 / float64(ebiten.TPS()))
	if len(hits) > 0 {
		g.lastFlash = 6
	} else if g.lastFlash > 0 {
		g.lastFlash--
	}
	return nil
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

func (g *game) Close() {
	g.cancel()
	_ = g.engine.Close()
}

func (g *game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.addBall()
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		g.clear()
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.cycleSample()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.toggleRecord()
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.add):
			g.addBall()
		case pointInRect(mx, my, l.clear):
			g.clear()
		case pointInRect(mx, my, l.sample):
			g.cycleSample()
		case pointInRect(mx, my, l.record):
			g.toggleRecord()
		case pointInRect(mx, my, l.play):
			g.preview()
		case pointInRect(mx, my, l.gravity):
			g.dragging = sliderGravity
		case pointInRect(mx, my, l.hBounce):
			g.dragging = sliderHBounce
		case pointInRect(mx, my, l.vBounce):
			g.dragging = sliderVBounce
		case pointInRect(mx, my, l.volume):
			g.dragging = sliderVolume
		case pointInRect(mx, my, l.box):
			p := toWorld(l.box, mx, my)
			if g.world.InBox(p) {
				g.aiming = true
				g.aimStart, g.aimEnd = p, p
			}
		}
	}

	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		if g.aiming {
			g.aimEnd = toWorld(l.box, mx, my)
		}
		switch g.dragging {
		case sliderGravity:
			g.gravity = sliderValue(mx, l.gravity)
			g.world.SetGravity(g.gravity)
		case sliderHBounce:
			g.hBounce = sliderValue(mx, l.hBounce)
			g.world.SetHorizontalBounce(g.hBounce)
		case sliderVBounce:
			g.vBounce = sliderValue(mx, l.vBounce)
			g.world.SetVerticalBounce(g.vBounce)
		case sliderVolume:
			g.volume = sliderValue(mx, l.volume)
			g.engine.SetMasterVolume(g.volume)
		}
		return
	}

	g.dragging = sliderNone
	if g.aiming {
		g.aiming = false
		if _, err := g.world.Launch(g.aimStart, g.aimEnd); err != nil {
			g.setError(err.Error())
		}
	}
}

func (g *game) addBall() {
	if _, err := g.world.AddRandom(g.rng); err != nil {
		g.setError(err.Error())
	}
}

func (g *game) clear() {
	g.world.Clear()
	g.setStatus("Cleared")
}

func (g *game) cycleSample() {
	if len(g.sampleNames) == 0 {
		g.setError("no sample catalog")
		return
	}
	g.world.Clear()
	for range g.sampleNames {
		g.sampleIdx = (g.sampleIdx + 1) % len(g.sampleNames)
		name := g.sampleNames[g.sampleIdx]
		if err := g.engine.ReloadSample(name); err == nil {
			g.setStatus(fmt.Sprintf("Sample %s (%.2fs)", name, g.engine.SampleLength()))
			return
		}
	}
	g.setError("no sample could be loaded")
}

func (g *game) toggleRecord() {
	if !g.engine.Recording() {
		if err := g.engine.StartRecording(); err != nil {
			g.setError(err.Error())
			return
		}
		g.setStatus("Recording...")
		return
	}
	s, err := g.engine.StopRecording()
	if err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus(fmt.Sprintf("Recorded %.2fs as %s", s.Seconds(), sample.CustomName))
}

func (g *game) preview() {
	if len(g.sampleNames) == 0 {
		return
	}
	if err := g.engine.Preview(g.sampleNames[g.sampleIdx]); err != nil {
		g.setError(err.Error())
	}
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

type uiLayout struct {
	box, scope, status                image.Rectangle
	add, clear, sample, record, play  image.Rectangle
	gravity, hBounce, vBounce, volume image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w, h := g.viewW, g.viewH
	pad := 20
	rowH := 44
	statusH := 40

	statusTop := h - pad - statusH
	side := statusTop - 12 - pad
	box := boxRect(pad, pad, side)

	rightX := box.Max.X + 12
	rightW := max(w-rightX-pad, 280)
	y := pad
	next := func() image.Rectangle {
		r := image.Rect(rightX, y, rightX+rightW, y+rowH)
		y += rowH + 8
		return r
	}
	halfW := (rightW - 8) / 2

	var l uiLayout
	l.box = box
	l.add = image.Rect(rightX, y, rightX+halfW, y+rowH)
	l.clear = image.Rect(rightX+halfW+8, y, rightX+rightW, y+rowH)
	y += rowH + 8
	l.sample = next()
	l.record = image.Rect(rightX, y, rightX+halfW, y+rowH)
	l.play = image.Rect(rightX+halfW+8, y, rightX+rightW, y+rowH)
	y += rowH + 8
	l.gravity = next()
	l.hBounce = next()
	l.vBounce = next()
	l.volume = next()
	l.scope = image.Rect(rightX, y+4, rightX+rightW, statusTop-12)
	l.status = image.Rect(pad, statusTop, w-pad, statusTop+statusH)
	return l
}

// boxRect returns a square of the given side whose interior maps to the
// world box.
func boxRect(x, y, side int) image.Rectangle {
	return image.Rect(x, y, x+side, y+side)
}

func toScreen(box image.Rectangle, p worldPoint) (float32, float32) {
	sx := float64(box.Dx()) / (2 * mapping.BoxHalfWidth)
	sy := float64(box.Dy()) / (2 * mapping.BoxHalfHeight)
	return float32(float64(box.Min.X) + (p.X+mapping.BoxHalfWidth)*sx),
		float32(float64(box.Min.Y) + (mapping.BoxHalfHeight-p.Y)*sy)
}

func toWorld(box image.Rectangle, x, y int) worldPoint {
	return worldPoint{
		X: float64(x-box.Min.X)/float64(box.Dx())*2*mapping.BoxHalfWidth - mapping.BoxHalfWidth,
		Y: mapping.BoxHalfHeight - float64(y-box.Min.Y)/float64(box.Dy())*2*mapping.BoxHalfHeight,
	}
}

func sliderValue(mx int, rect image.Rectangle) float64 {
	trackX := rect.Min.X + sliderLabelW
	trackW := rect.Dx() - sliderLabelW - 16
	if trackW <= 0 {
		return 0
	}
	return mapping.Clamp01(float64(mx-trackX) / float64(trackW))
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	flag.Parse()

	g, err := newGame(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("samplebox")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
