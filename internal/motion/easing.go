package motion

import "math"

// Easing curves map progress in [0,1] to eased progress in [0,1].

func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func EaseOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

func EaseInQuad(t float64) float64 {
	return t * t
}

func EaseOutQuad(t float64) float64 {
	return t * (2 - t)
}

func EaseInSine(t float64) float64 {
	return 1 - math.Cos(t*math.Pi/2)
}

func EaseOutSine(t float64) float64 {
	return math.Sin(t * math.Pi / 2)
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
