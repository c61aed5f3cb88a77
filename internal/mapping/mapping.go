// Package mapping translates the physical state of a bouncing object into
// normalized audio modulation sources. Every function is pure and safe to
// call from the physics thread at frame rate.
package mapping

import "math"

// Box and ball geometry shared by the simulation and the mappings.
const (
	BoxHalfWidth    = 4.0
	BoxHalfHeight   = 4.0
	BallRadius      = 0.2
	VelocityEpsilon = 0.0001
)

// Filter cutoff range in Hz.
const (
	MinLPF = 100.0
	MaxLPF = 20000.0
)

// Default energy interval used when the configured one is degenerate.
const (
	DefaultEnergyFloor   = 0.0
	DefaultEnergyCeiling = 1.0
)

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X, Y float64
}

// Len returns the Euclidean length.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// NormalizedPosition maps pos from [-half+radius, half-radius] on each axis to
// [0,1], clamped.
func NormalizedPosition(pos Vec2, halfWidth, halfHeight, radius float64) (x, y float64) {
	return normalizeAxis(pos.X, halfWidth-radius), normalizeAxis(pos.Y, halfHeight-radius)
}

func normalizeAxis(v, span float64) float64 {
	if span <= 0 {
		return 0.5
	}
	return Clamp01((v/span + 1) / 2)
}

// NormalizedEnergy rescales kinetic+potential energy into [0,1] relative to
// the [floor, ceiling] interval. A degenerate interval is replaced by the
// default one.
func NormalizedEnergy(kinetic, potential, floor, ceiling float64) float64 {
	if ceiling == floor || math.IsNaN(ceiling-floor) || math.IsInf(ceiling-floor, 0) {
		floor, ceiling = DefaultEnergyFloor, DefaultEnergyCeiling
	}
	return Clamp01((kinetic + potential - floor) / (ceiling - floor))
}

// EnergyRange returns the normalization interval for a vertical gravity
// acceleration gravityY (negative is downward). Zero gravity yields the
// default interval.
func EnergyRange(gravityY, halfHeight float64) (floor, ceiling float64) {
	if gravityY == 0 {
		return DefaultEnergyFloor, DefaultEnergyCeiling
	}
	return gravityY / 3, -2 * halfHeight * gravityY
}

// KineticEnergy returns 1/2 m v^2.
func KineticEnergy(mass float64, vel Vec2) float64 {
	s := vel.Len()
	return 0.5 * mass * s * s
}

// PotentialEnergy returns m g h where h is measured from the lowest point the
// ball's center can reach. gravity is the downward magnitude.
func PotentialEnergy(mass, gravity, y, halfHeight, radius float64) float64 {
	height := y + (halfHeight - radius)
	return mass * gravity * height
}

// TargetPlaybackRate plays the whole sample once per horizontal round trip:
// rate = sampleSeconds / (2*halfWidth / xVelocity). The sign follows the
// velocity. Callers must not pass a near-zero velocity; see RateFromVelocity.
func TargetPlaybackRate(xVelocity, halfWidth, sampleSeconds float64) float64 {
	travel := 2 * halfWidth / xVelocity
	return sampleSeconds / travel
}

// RateFromVelocity is TargetPlaybackRate with the degenerate cases guarded.
// ok is false when the velocity is effectively zero, the sample length is not
// yet known, or the result is not finite; the caller should then skip the
// rate update entirely.
func RateFromVelocity(xVelocity, halfWidth, sampleSeconds float64) (rate float64, ok bool) {
	if math.Abs(xVelocity) < VelocityEpsilon || math.IsNaN(xVelocity) {
		return 0, false
	}
	if sampleSeconds <= 0 || halfWidth <= 0 {
		return 0, false
	}
	rate = TargetPlaybackRate(xVelocity, halfWidth, sampleSeconds)
	if rate == 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, false
	}
	return rate, true
}

// DestroyCondition reports whether a source with this normalized energy
// should release its voice.
func DestroyCondition(energy float64) bool {
	return energy <= 0
}

// GainCurve converts a normalized level to a power gain. It is the RMS to dB
// to power round trip, which reduces to v squared.
func GainCurve(v float64) float64 {
	v = Clamp01(v)
	db := 20 * math.Log10(v)
	return math.Pow(10, db/10)
}

// FilterCutoff maps a normalized filter modulation to a cutoff in Hz.
func FilterCutoff(v float64) float64 {
	return Lerp(MinLPF, MaxLPF, GainCurve(v))
}

// Lerp interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp01 clamps v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
