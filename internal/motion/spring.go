// Package motion holds the numeric animation primitives: easing curves, the
// critically damped spring step, the joint animator and the head pose
// controller.
package motion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxFrameDelta caps a single integration step (seconds). Callers clamp the
// frame delta to this before ticking; the animators clamp again.
const MaxFrameDelta = 0.05

// minSmoothTime keeps omega finite for very stiff joints.
const minSmoothTime = 0.01

// SpringStep advances (current, velocity) toward target over dt using the
// closed-form critically damped integrator. It is stable for any dt.
func SpringStep(current, target, velocity, smoothTime, dt float64) (float64, float64) {
	if smoothTime < minSmoothTime {
		smoothTime = minSmoothTime
	}
	omega := 2 / smoothTime
	x := omega * dt
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := current - target
	temp := (velocity + omega*change) * dt
	velocity = (velocity - omega*temp) * exp
	current = target + (change+temp)*exp
	return current, velocity
}

// SmoothTimeFor derives a spring smoothing time from physical parameters.
// The natural period 2*sqrt(m/k) is stretched when the joint is over-damped.
func SmoothTimeFor(stiffness, damping, mass float64) float64 {
	if stiffness <= 0 || mass <= 0 {
		return minSmoothTime
	}
	ratio := damping / (2 * math.Sqrt(stiffness*mass))
	st := 2 * math.Sqrt(mass/stiffness) * math.Max(1, ratio)
	return math.Max(minSmoothTime, st)
}

// ClampDelta bounds a frame delta to [0, MaxFrameDelta].
func ClampDelta(dt float64) float64 {
	if dt != dt { // NaN
		return 0
	}
	return mgl64.Clamp(dt, 0, MaxFrameDelta)
}

// DegreesToRadians converts command-layer degrees to internal radians.
func DegreesToRadians(deg float64) float64 {
	return mgl64.DegToRad(deg)
}

// RadiansToDegrees converts internal radians back to degrees for display.
func RadiansToDegrees(rad float64) float64 {
	return mgl64.RadToDeg(rad)
}
