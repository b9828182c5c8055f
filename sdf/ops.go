package sdf

import (
	"math"

	"github.com/gogpu/sdfatlas/scene"
)

// Far is the distance of empty space.
const Far = 1e4

// SmoothMin is the polynomial smooth minimum with blend radius k.
func SmoothMin(a, b, k float64) float64 {
	if k <= 0 {
		return math.Min(a, b)
	}
	h := math.Max(k-math.Abs(a-b), 0) / k
	return math.Min(a, b) - h*h*k*0.25
}

// Combine applies mode at full strength: a is the accumulated distance, b
// the operand and param the mode parameter in [0, 1].
func Combine(mode scene.TransferMode, a, b, param float64) float64 {
	k := clamp(param, 0, 1) * scene.BlendRadius
	switch mode {
	case scene.ModeUnion:
		return math.Min(a, b)
	case scene.ModeSmoothUnion:
		return SmoothMin(a, b, k)
	case scene.ModeSubtract:
		return math.Max(a, -b)
	case scene.ModeIntersect:
		return math.Max(a, b)
	case scene.ModeAddition:
		return a + b
	case scene.ModeMultiply:
		return a * b
	case scene.ModePipe:
		return math.Min(a, math.Abs(b)-k)
	case scene.ModeEngrave:
		return math.Max(a, k-math.Abs(b))
	case scene.ModeSmoothSubtract:
		return -SmoothMin(-a, b, k)
	}
	return a
}

// Transfer applies mode with opacity: 0 leaves a unchanged, 1 applies the
// mode fully, values between interpolate linearly.
func Transfer(mode scene.TransferMode, a, b, opacity, param float64) float64 {
	full := Combine(mode, a, b, param)
	return mix(a, full, clamp(opacity, 0, 1))
}

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}
