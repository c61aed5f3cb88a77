package mapping

import (
	"math"
	"testing"
)

func TestNormalizedPositionStaysInUnitSquare(t *testing.T) {
	cases := []struct {
		name   string
		pos    Vec2
		wantX  float64
		wantY  float64
		approx bool
	}{
		{"center", Vec2{0, 0}, 0.5, 0.5, true},
		{"inner corner", Vec2{-3.8, 3.8}, 0, 1, true},
		{"escaped", Vec2{100, -100}, 1, 0, false},
		{"nan", Vec2{math.NaN(), math.Inf(1)}, 0, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := NormalizedPosition(tc.pos, BoxHalfWidth, BoxHalfHeight, BallRadius)
			if x < 0 || x > 1 || y < 0 || y > 1 {
				t.Fatalf("position (%v,%v) outside [0,1]^2", x, y)
			}
			if math.Abs(x-tc.wantX) > 1e-9 || math.Abs(y-tc.wantY) > 1e-9 {
				t.Fatalf("position = (%v,%v), want (%v,%v)", x, y, tc.wantX, tc.wantY)
			}
		})
	}
}

func TestNormalizedPositionDegenerateBox(t *testing.T) {
	x, y := NormalizedPosition(Vec2{1, -1}, 0.1, 0.1, 0.2)
	if x != 0.5 || y != 0.5 {
		t.Fatalf("degenerate box = (%v,%v), want (0.5,0.5)", x, y)
	}
}

func TestNormalizedEnergyClampsAndHandlesDegenerateRange(t *testing.T) {
	if got := NormalizedEnergy(5, 5, 0, 20); got != 0.5 {
		t.Fatalf("energy = %v, want 0.5", got)
	}
	if got := NormalizedEnergy(1000, 0, 0, 20); got != 1 {
		t.Fatalf("energy above range = %v, want 1", got)
	}
	if got := NormalizedEnergy(-50, 0, 0, 20); got != 0 {
		t.Fatalf("energy below range = %v, want 0", got)
	}
	got := NormalizedEnergy(0.25, 0, 3, 3)
	if got != 0.25 {
		t.Fatalf("degenerate range energy = %v, want 0.25", got)
	}
	if got := NormalizedEnergy(math.NaN(), 0, 0, 1); got != 0 {
		t.Fatalf("NaN energy = %v, want 0", got)
	}
}

func TestEnergyRange(t *testing.T) {
	floor, ceiling := EnergyRange(-30, BoxHalfHeight)
	if floor != -10 || ceiling != 240 {
		t.Fatalf("range = [%v,%v], want [-10,240]", floor, ceiling)
	}
	floor, ceiling = EnergyRange(0, BoxHalfHeight)
	if floor != DefaultEnergyFloor || ceiling != DefaultEnergyCeiling {
		t.Fatalf("zero gravity range = [%v,%v]", floor, ceiling)
	}
}

func TestPotentialEnergyZeroAtFloor(t *testing.T) {
	if got := PotentialEnergy(1, 9.81, -(BoxHalfHeight - BallRadius), BoxHalfHeight, BallRadius); got != 0 {
		t.Fatalf("potential at floor = %v, want 0", got)
	}
}

func TestTargetPlaybackRateFollowsVelocitySign(t *testing.T) {
	// 2s sample, crossing 8 units at 4 u/s takes 2s: rate 1.
	if got := TargetPlaybackRate(4, 4, 2); math.Abs(got-1) > 1e-12 {
		t.Fatalf("rate = %v, want 1", got)
	}
	if got := TargetPlaybackRate(-8, 4, 2); math.Abs(got+2) > 1e-12 {
		t.Fatalf("rate = %v, want -2", got)
	}
}

func TestRateFromVelocityGuards(t *testing.T) {
	cases := []struct {
		name    string
		vx      float64
		seconds float64
	}{
		{"zero velocity", 0, 2},
		{"tiny velocity", VelocityEpsilon / 2, 2},
		{"sample not loaded", 3, 0},
		{"negative length", 3, -1},
		{"nan", math.NaN(), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rate, ok := RateFromVelocity(tc.vx, BoxHalfWidth, tc.seconds); ok {
				t.Fatalf("RateFromVelocity = %v, want suppressed", rate)
			}
		})
	}
	if rate, ok := RateFromVelocity(-4, 4, 2); !ok || rate >= 0 {
		t.Fatalf("RateFromVelocity(-4) = %v,%v, want negative,true", rate, ok)
	}
}

func TestDestroyCondition(t *testing.T) {
	if !DestroyCondition(0) || !DestroyCondition(-0.1) {
		t.Fatalf("zero or negative energy should destroy")
	}
	if DestroyCondition(0.001) {
		t.Fatalf("positive energy should not destroy")
	}
}

func TestCurves(t *testing.T) {
	if got := GainCurve(0.5); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("GainCurve(0.5) = %v, want 0.25", got)
	}
	if got := GainCurve(0); got != 0 {
		t.Fatalf("GainCurve(0) = %v, want 0", got)
	}
	if got := FilterCutoff(1); math.Abs(got-MaxLPF) > 1e-6 {
		t.Fatalf("FilterCutoff(1) = %v, want %v", got, MaxLPF)
	}
	if got := FilterCutoff(0); got != MinLPF {
		t.Fatalf("FilterCutoff(0) = %v, want %v", got, MinLPF)
	}
}
