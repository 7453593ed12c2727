package imaging

import (
	"fmt"

	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// GradientOperator selects the discrete derivative used by ComputeGradient.
type GradientOperator string

const (
	// GradientCentral uses central differences: (f(x+1) - f(x-1)) / 2.
	GradientCentral GradientOperator = "central"

	// GradientSobel uses the 3x3 Sobel kernels scaled by 1/8, which
	// estimates the same derivative with some smoothing across the
	// perpendicular axis.
	GradientSobel GradientOperator = "sobel"
)

var sobelX = [3][3]float64{
	{-1, 0, 1},
	{-2, 0, 2},
	{-1, 0, 1},
}

var sobelY = [3][3]float64{
	{-1, -2, -1},
	{0, 0, 0},
	{1, 2, 1},
}

// ParseGradientOperator validates a gradient operator name. The empty
// string selects GradientSobel.
func ParseGradientOperator(name string) (GradientOperator, error) {
	switch GradientOperator(name) {
	case "":
		return GradientSobel, nil
	case GradientCentral, GradientSobel:
		return GradientOperator(name), nil
	default:
		return "", fmt.Errorf("unknown gradient operator: %s", name)
	}
}

// ComputeGradient returns the spatial derivatives of f.
//
// Parameters:
//   - f: Source intensity plane.
//   - op: GradientCentral or GradientSobel.
//
// Border pixels use clamped (replicated) edge values, so the field covers
// the same rectangle as f.
func ComputeGradient(f *FloatImage, op GradientOperator) (*GradientField, error) {
	bounds := f.Bounds()
	g := NewGradientField(bounds)

	at := func(x, y int) float64 {
		return float64(f.At(
			clamp(x, bounds.Min.X, bounds.Max.X-1),
			clamp(y, bounds.Min.Y, bounds.Max.Y-1),
		))
	}

	switch op {
	case GradientCentral:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				g.Set(x, y, lk.Vec2{
					X: (at(x+1, y) - at(x-1, y)) / 2,
					Y: (at(x, y+1) - at(x, y-1)) / 2,
				})
			}
		}
	case GradientSobel:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				var gx, gy float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						v := at(x+kx, y+ky)
						gx += v * sobelX[ky+1][kx+1]
						gy += v * sobelY[ky+1][kx+1]
					}
				}
				g.Set(x, y, lk.Vec2{X: gx / 8, Y: gy / 8})
			}
		}
	default:
		return nil, fmt.Errorf("unknown gradient operator: %s", op)
	}

	return g, nil
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
