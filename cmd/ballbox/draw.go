package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"

	"github.com/cbegin/samplebox/internal/mapping"
)

const sliderLabelW = 200

var (
	bgColor         = colornames.Silver
	panelColor      = colornames.Silver
	borderColor     = colornames.Gray
	bevelLight      = colornames.White
	bevelDarker     = colornames.Dimgray
	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	sliderFillColor = colornames.Navy
	recordColor     = colornames.Firebrick
	wallFlashColor  = colornames.Gold
	aimColor        = colornames.Lightgreen
	waveColor       = colornames.Lime
)

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	g.drawBox(screen, l.box)
	g.drawButton(screen, l.add, "Add", panelColor)
	g.drawButton(screen, l.clear, "Clear", panelColor)
	g.drawButton(screen, l.sample, g.sampleLabel(l.sample), panelColor)
	if g.engine.Recording() {
		g.drawButton(screen, l.record, "Stop", recordColor)
	} else {
		g.drawButton(screen, l.record, "Record", panelColor)
	}
	g.drawButton(screen, l.play, "Play", panelColor)
	g.drawSlider(screen, l.gravity, fmt.Sprintf("Gravity %.0f", -g.world.Gravity()), g.gravity)
	g.drawSlider(screen, l.hBounce, fmt.Sprintf("Bounce H %d%%", pct(g.hBounce)), g.hBounce)
	g.drawSlider(screen, l.vBounce, fmt.Sprintf("Bounce V %d%%", pct(g.vBounce)), g.vBounce)
	g.drawSlider(screen, l.volume, fmt.Sprintf("Vol %d%%", pct(g.volume)), g.volume)
	g.drawScope(screen, l.scope)
	g.drawSunkenPanel(screen, l.status)
	g.drawStatus(screen, l.status)
}

func (g *game) drawBox(screen *ebiten.Image, rect image.Rectangle) {
	g.drawSunkenPanel(screen, rect)
	if g.lastFlash > 0 {
		vector.StrokeRect(screen, float32(rect.Min.X)+2, float32(rect.Min.Y)+2,
			float32(rect.Dx())-4, float32(rect.Dy())-4, 2, wallFlashColor, false)
	}

	px := float32(float64(rect.Dx()) / (2 * mapping.BoxHalfWidth))
	for _, b := range g.world.Balls() {
		x, y := toScreen(rect, b.Pos)
		if !pointInRect(int(x), int(y), rect) {
			continue
		}
		vector.DrawFilledCircle(screen, x, y, float32(mapping.BallRadius)*px, b.Color(), true)
	}

	if g.aiming {
		x0, y0 := toScreen(rect, g.aimStart)
		x1, y1 := toScreen(rect, g.aimEnd)
		vector.StrokeLine(screen, x0, y0, x1, y1, 2, aimColor, true)
		vector.DrawFilledCircle(screen, x1, y1, 4, aimColor, true)
	}

	g.drawText(screen, fmt.Sprintf("%d/%d", g.engine.ActiveVoices(), g.engine.Capacity()), rect.Min.X+8, rect.Min.Y+8)
}

func (g *game) sampleLabel(rect image.Rectangle) string {
	name := "(none)"
	if len(g.sampleNames) > 0 {
		name = g.sampleNames[g.sampleIdx]
	}
	return shortenEnd("Sample: "+name, max(8, (rect.Dx()-16)/charW))
}

func (g *game) drawSlider(screen *ebiten.Image, rect image.Rectangle, label string, v float64) {
	g.drawPanel(screen, rect)
	g.drawText(screen, label, rect.Min.X+8, rect.Min.Y+8)

	trackX := rect.Min.X + sliderLabelW
	trackW := rect.Dx() - sliderLabelW - 16
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	// Sunken track groove.
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), 1, 7, borderColor)
	fillW := int(float64(trackW) * mapping.Clamp01(v))
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := min(max(trackX+fillW-5, trackX-5), trackX+trackW-5)
	knob := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	ebitenutil.DrawRect(screen, float64(knob.Min.X), float64(knob.Min.Y), float64(knob.Dx()), float64(knob.Dy()), panelColor)
	drawBorder(screen, knob)
}

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), color.Black)
	drawSunkenBorder(screen, rect)
	w := min(rect.Dx()-4, scopeLen/2)
	if w < 2 || rect.Dy() < 8 {
		return
	}
	samples := g.scope.Snapshot(w * 2)
	mid := float32(rect.Min.Y + rect.Dy()/2)
	amp := float32(rect.Dy()/2 - 4)
	prevY := mid
	for i := range w {
		// Peak of each pair keeps short transients visible.
		s := samples[i*2]
		if a := samples[i*2+1]; abs32(a) > abs32(s) {
			s = a
		}
		y := mid - max(-1, min(1, s))*amp
		x := float32(rect.Min.X + 2 + i)
		if i > 0 {
			vector.StrokeLine(screen, x-1, prevY, x, y, 1, waveColor, false)
		}
		prevY = y
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func pct(v float64) int { return int(v*100 + 0.5) }

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string, fill color.Color) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), fill)
	drawBorder(screen, rect)
	labelW := len([]rune(label)) * charW
	x := rect.Min.X + (rect.Dx()-labelW)/2
	y := rect.Min.Y + (rect.Dy()-lineH)/2
	g.drawText(screen, label, x, y)
}

// drawBorder draws a raised bevel, light on the top and left.
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder is drawBorder with the light and shadow swapped.
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}
