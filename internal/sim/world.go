// Package sim is a small box world of bouncing balls, each of which owns a
// voice for as long as it lives.
package sim

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"

	"github.com/cbegin/samplebox/internal/mapping"
	"github.com/cbegin/samplebox/internal/voice"
)

// World constants.
const (
	VelocityMultiplier = 5.0
	ImpulseRadius      = 30.0
	MaxGravity         = -40.0
	MinGravity         = 0.0
	BallMass           = 1.0

	// Contacts slower than this along the normal do not bounce.
	BounceThreshold = 1.0

	// FixedStep is the physics substep in seconds.
	FixedStep = 1.0 / 120
)

// Voices is the part of the audio engine a world needs.
type Voices interface {
	OpenNewVoice(x, y, rate, energy float64) (voice.ID, error)
	FreeVoice(id voice.ID)
	UpdateModulatedData(id voice.ID, x, y, energy float64)
	RetriggerBuffer(id voice.ID, rate float64)
	SampleLength() float64
	KillAll()
}

// Wall tags a collision. Vertical walls are left and right.
type Wall int

const (
	HorizontalWall Wall = iota
	VerticalWall
)

func (w Wall) String() string {
	if w == VerticalWall {
		return "vertical"
	}
	return "horizontal"
}

// Collision is reported by Step for every wall contact that bounced.
type Collision struct {
	Ball  uint64
	Wall  Wall
	Rate  float64 // rate sent to the voice, 0 if none was sent
	Voice voice.ID
}

// Ball is one emitter. Normalized fields are refreshed every Step.
type Ball struct {
	Serial uint64
	Voice  voice.ID
	Pos    mapping.Vec2
	Vel    mapping.Vec2

	X, Y   float64 // normalized position
	Energy float64 // normalized energy

	rated bool // a finite rate has reached the voice
}

// World is the owning arena of every live ball.
type World struct {
	voices Voices
	logger *log.Logger

	halfW, halfH     float64
	radius           float64
	screenW, screenH float64
	ballCollisions   bool

	gravity        float64
	hBounce        float64
	vBounce        float64
	floor, ceiling float64
	balls          []*Ball
	serial         uint64
}

type Option func(*World)

// WithLogger receives a line for each dropped or destroyed ball.
func WithLogger(l *log.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithScreen sets the visible half extents. A ball outside them is gone.
func WithScreen(halfWidth, halfHeight float64) Option {
	return func(w *World) {
		w.screenW, w.screenH = halfWidth, halfHeight
	}
}

// WithBallCollisions toggles ball to ball contacts.
func WithBallCollisions(enabled bool) Option {
	return func(w *World) { w.ballCollisions = enabled }
}

// New creates an empty world with zero gravity and fully elastic walls.
func New(voices Voices, opts ...Option) *World {
	w := &World{
		voices:         voices,
		logger:         log.New(io.Discard, "", 0),
		halfW:          mapping.BoxHalfWidth,
		halfH:          mapping.BoxHalfHeight,
		radius:         mapping.BallRadius,
		screenW:        mapping.BoxHalfWidth * 16 / 9 * 1.25,
		screenH:        mapping.BoxHalfHeight * 1.25,
		ballCollisions: true,
		hBounce:        1,
		vBounce:        1,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.SetGravity(0)
	return w
}

// SetGravity maps a 0..1 slider to downward gravity.
func (w *World) SetGravity(slider float64) {
	w.gravity = mapping.Lerp(MinGravity, MaxGravity, mapping.Clamp01(slider))
	w.floor, w.ceiling = mapping.EnergyRange(w.gravity, w.halfH)
}

// Gravity returns the vertical acceleration (negative is down).
func (w *World) Gravity() float64 { return w.gravity }

// EnergyRange returns the current normalization interval.
func (w *World) EnergyRange() (floor, ceiling float64) { return w.floor, w.ceiling }

// SetHorizontalBounce sets the restitution of the top and bottom walls.
func (w *World) SetHorizontalBounce(v float64) { w.hBounce = mapping.Clamp01(v) }

// SetVerticalBounce sets the restitution of the left and right walls.
func (w *World) SetVerticalBounce(v float64) { w.vBounce = mapping.Clamp01(v) }

// InBox reports whether p is strictly inside the box.
func (w *World) InBox(p mapping.Vec2) bool {
	return p.X > -w.halfW && p.X < w.halfW && p.Y > -w.halfH && p.Y < w.halfH
}

// Len returns the number of live balls.
func (w *World) Len() int { return len(w.balls) }

// Balls returns a copy of every live ball.
func (w *World) Balls() []Ball {
	out := make([]Ball, len(w.balls))
	for i, b := range w.balls {
		out[i] = *b
	}
	return out
}

// Launch spawns a ball at start moving along end-start.
func (w *World) Launch(start, end mapping.Vec2) (*Ball, error) {
	vel := mapping.Vec2{
		X: (end.X - start.X) * VelocityMultiplier,
		Y: (end.Y - start.Y) * VelocityMultiplier,
	}
	return w.Spawn(start, vel)
}

// AddRandom spawns a ball at a random position with a random impulse.
func (w *World) AddRandom(rng *rand.Rand) (*Ball, error) {
	pos := mapping.Vec2{
		X: (rng.Float64()*2 - 1) * (w.halfW - w.radius),
		Y: (rng.Float64()*2 - 1) * (w.halfH - w.radius),
	}
	vel := mapping.Vec2{
		X: (rng.Float64()*2 - 1) * ImpulseRadius,
		Y: (rng.Float64()*2 - 1) * ImpulseRadius,
	}
	return w.Spawn(pos, vel)
}

// Spawn opens a voice for a ball at pos with velocity vel. When no voice is
// free the ball is not created.
func (w *World) Spawn(pos, vel mapping.Vec2) (*Ball, error) {
	b := &Ball{Pos: pos, Vel: vel}
	w.refresh(b)
	rate, ok := mapping.RateFromVelocity(vel.X, w.halfW, w.voices.SampleLength())
	id, err := w.voices.OpenNewVoice(b.X, b.Y, rate, b.Energy)
	if err != nil {
		w.logger.Printf("sim: ball dropped: %v", err)
		return nil, fmt.Errorf("spawn: %w", err)
	}
	w.serial++
	b.Serial = w.serial
	b.Voice = id
	b.rated = ok
	w.balls = append(w.balls, b)
	return b, nil
}

// Clear frees every ball's voice and then silences the engine.
func (w *World) Clear() {
	for _, b := range w.balls {
		w.voices.FreeVoice(b.Voice)
	}
	clear(w.balls)
	w.balls = w.balls[:0]
	w.voices.KillAll()
}

// Step advances the world by dt seconds in fixed substeps, then pushes each
// ball's modulation to its voice and removes dead balls.
func (w *World) Step(dt float64) []Collision {
	var hits []Collision
	if dt > 0 {
		n := int(math.Ceil(dt / FixedStep))
		h := dt / float64(n)
		for range n {
			hits = w.integrate(h, hits)
		}
	}

	live := w.balls[:0]
	for _, b := range w.balls {
		w.refresh(b)
		w.voices.UpdateModulatedData(b.Voice, b.X, b.Y, b.Energy)
		if !b.rated {
			// Sample length was unknown or the ball had no horizontal
			// motion at spawn; keep trying.
			if rate, ok := mapping.RateFromVelocity(b.Vel.X, w.halfW, w.voices.SampleLength()); ok {
				w.voices.RetriggerBuffer(b.Voice, rate)
				b.rated = true
			}
		}
		if mapping.DestroyCondition(b.Energy) || w.escaped(b) {
			w.voices.FreeVoice(b.Voice)
			w.logger.Printf("sim: ball %d gone (energy %.3f)", b.Serial, b.Energy)
			continue
		}
		live = append(live, b)
	}
	clear(w.balls[len(live):])
	w.balls = live
	return hits
}

func (w *World) escaped(b *Ball) bool {
	return b.Pos.X < -w.screenW || b.Pos.X > w.screenW || b.Pos.Y < -w.screenH || b.Pos.Y > w.screenH
}

func (w *World) refresh(b *Ball) {
	b.X, b.Y = mapping.NormalizedPosition(b.Pos, w.halfW, w.halfH, w.radius)
	b.Energy = mapping.NormalizedEnergy(
		mapping.KineticEnergy(BallMass, b.Vel),
		mapping.PotentialEnergy(BallMass, -w.gravity, b.Pos.Y, w.halfH, w.radius),
		w.floor, w.ceiling,
	)
}

func (w *World) integrate(h float64, hits []Collision) []Collision {
	xLim := w.halfW - w.radius
	yLim := w.halfH - w.radius
	for _, b := range w.balls {
		b.Vel.Y += w.gravity * h
		b.Pos.X += b.Vel.X * h
		b.Pos.Y += b.Vel.Y * h
	}
	if w.ballCollisions {
		w.collideBalls()
	}
	for _, b := range w.balls {
		if math.Abs(b.Pos.X) > xLim {
			b.Pos.X = math.Copysign(xLim, b.Pos.X)
			if b.Pos.X*b.Vel.X > 0 {
				e := restitution(w.vBounce, b.Vel.X)
				b.Vel.X = -b.Vel.X * e
				if e > 0 {
					hits = append(hits, w.retrigger(b))
				}
			}
		}
		if math.Abs(b.Pos.Y) > yLim {
			b.Pos.Y = math.Copysign(yLim, b.Pos.Y)
			if b.Pos.Y*b.Vel.Y > 0 {
				e := restitution(w.hBounce, b.Vel.Y)
				b.Vel.Y = -b.Vel.Y * e
				if e > 0 {
					hits = append(hits, Collision{Ball: b.Serial, Wall: HorizontalWall, Voice: b.Voice})
				}
			}
		}
	}
	return hits
}

// retrigger sends the post-bounce rate to a ball that hit a vertical wall.
func (w *World) retrigger(b *Ball) Collision {
	c := Collision{Ball: b.Serial, Wall: VerticalWall, Voice: b.Voice}
	rate, ok := mapping.RateFromVelocity(b.Vel.X, w.halfW, w.voices.SampleLength())
	if !ok {
		return c
	}
	w.voices.RetriggerBuffer(b.Voice, rate)
	b.rated = true
	c.Rate = rate
	return c
}

func restitution(bounce, normalSpeed float64) float64 {
	if math.Abs(normalSpeed) < BounceThreshold {
		return 0
	}
	return bounce
}

// collideBalls resolves equal-mass elastic contacts between overlapping balls.
func (w *World) collideBalls() {
	minDist := 2 * w.radius
	for i := 0; i < len(w.balls); i++ {
		a := w.balls[i]
		for j := i + 1; j < len(w.balls); j++ {
			b := w.balls[j]
			dx, dy := b.Pos.X-a.Pos.X, b.Pos.Y-a.Pos.Y
			dist := math.Hypot(dx, dy)
			if dist >= minDist || dist == 0 {
				continue
			}
			nx, ny := dx/dist, dy/dist
			overlap := (minDist - dist) / 2
			a.Pos.X -= nx * overlap
			a.Pos.Y -= ny * overlap
			b.Pos.X += nx * overlap
			b.Pos.Y += ny * overlap

			rel := (b.Vel.X-a.Vel.X)*nx + (b.Vel.Y-a.Vel.Y)*ny
			if rel >= 0 {
				continue
			}
			a.Vel.X += rel * nx
			a.Vel.Y += rel * ny
			b.Vel.X -= rel * nx
			b.Vel.Y -= rel * ny
		}
	}
}
