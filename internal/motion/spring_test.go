package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpringStep_ConvergesWithoutOvershoot(t *testing.T) {
	for _, dt := range []float64{0.001, 1.0 / 120, 1.0 / 60, 0.033, 0.05} {
		current, velocity := 0.0, 0.0
		target := 1.0
		prev := current
		for i := 0; i < int(3/dt); i++ {
			current, velocity = SpringStep(current, target, velocity, 0.3, dt)
			assert.LessOrEqual(t, current, target+1e-3, "overshoot at dt=%v", dt)
			assert.GreaterOrEqual(t, current, prev-1e-9, "not monotonic at dt=%v", dt)
			prev = current
		}
		assert.InDelta(t, target, current, 1e-3, "dt=%v", dt)
	}
}

func TestSpringStep_NegativeTarget(t *testing.T) {
	current, velocity := 0.5, 0.0
	for i := 0; i < 200; i++ {
		current, velocity = SpringStep(current, -0.25, velocity, 0.2, 0.016)
	}
	assert.InDelta(t, -0.25, current, 1e-3)
	assert.InDelta(t, 0, velocity, 1e-2)
}

func TestSpringStep_AtTargetStaysPut(t *testing.T) {
	current, velocity := SpringStep(0.7, 0.7, 0, 0.3, 0.016)
	assert.Equal(t, 0.7, current)
	assert.Equal(t, 0.0, velocity)
}

func TestSmoothTimeFor(t *testing.T) {
	light := SmoothTimeFor(120, 18, 1.0)
	heavy := SmoothTimeFor(120, 18, 3.0)
	soft := SmoothTimeFor(40, 18, 1.0)
	assert.Greater(t, heavy, light)
	assert.Greater(t, soft, light)

	// critically damped: c = 2*sqrt(k*m) gives the natural period
	assert.InDelta(t, 2*math.Sqrt(1.0/100), SmoothTimeFor(100, 20, 1), 1e-12)

	assert.Equal(t, minSmoothTime, SmoothTimeFor(0, 10, 1))
	assert.Equal(t, minSmoothTime, SmoothTimeFor(1e9, 0, 1))
}

func TestClampDelta(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"normal", 0.016, 0.016},
		{"capped", 0.5, MaxFrameDelta},
		{"negative", -1, 0},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampDelta(tt.in))
		})
	}
}

func TestDegreesToRadians(t *testing.T) {
	assert.InDelta(t, math.Pi, DegreesToRadians(180), 1e-12)
	assert.InDelta(t, math.Pi/2, DegreesToRadians(90), 1e-12)
	assert.InDelta(t, -35*math.Pi/180, DegreesToRadians(-35), 1e-12)
	assert.InDelta(t, 20.0, RadiansToDegrees(DegreesToRadians(20)), 1e-9)
}

func TestEasing_Endpoints(t *testing.T) {
	curves := map[string]func(float64) float64{
		"inOutCubic": EaseInOutCubic,
		"outCubic":   EaseOutCubic,
		"inQuad":     EaseInQuad,
		"outQuad":    EaseOutQuad,
		"inSine":     EaseInSine,
		"outSine":    EaseOutSine,
	}
	for name, f := range curves {
		assert.InDelta(t, 0, f(0), 1e-12, name)
		assert.InDelta(t, 1, f(1), 1e-12, name)
	}
	assert.InDelta(t, 0.5, EaseInOutCubic(0.5), 1e-12)
	assert.Equal(t, 2.5, Lerp(2, 3, 0.5))
}
