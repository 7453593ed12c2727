package imaging

import (
	"image"
	"math"

	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// FloatImage is a single-channel float32 intensity plane.
//
// It deliberately does not implement image.Image: its methods are small
// enough to inline in the matcher's inner loop. FloatImage satisfies
// lk.Sampler.
type FloatImage struct {
	// Pix holds intensities in row-major order, Stride values per row.
	Pix    []float32
	Stride int
	Rect   image.Rectangle
}

// NewFloatImage allocates a zeroed plane covering r.
func NewFloatImage(r image.Rectangle) *FloatImage {
	return &FloatImage{
		Pix:    make([]float32, r.Dx()*r.Dy()),
		Stride: r.Dx(),
		Rect:   r,
	}
}

// PixOffset returns the index of the value at (x, y) in Pix.
func (f *FloatImage) PixOffset(x, y int) int {
	return (y-f.Rect.Min.Y)*f.Stride + (x - f.Rect.Min.X)
}

// At returns the value at (x, y). The point must lie inside Rect.
func (f *FloatImage) At(x, y int) float32 {
	return f.Pix[f.PixOffset(x, y)]
}

// Set stores v at (x, y). The point must lie inside Rect.
func (f *FloatImage) Set(x, y int, v float32) {
	f.Pix[f.PixOffset(x, y)] = v
}

// Bounds returns the rectangle the plane covers.
func (f *FloatImage) Bounds() image.Rectangle { return f.Rect }

// Has reports whether p lies inside the plane.
func (f *FloatImage) Has(p image.Point) bool { return p.In(f.Rect) }

// Domain returns the valid sampling region, the same as Bounds.
func (f *FloatImage) Domain() image.Rectangle { return f.Rect }

// Interpolate samples the plane bilinearly at p. Neighbours outside the
// plane are replaced by the nearest edge value, so any position is safe.
func (f *FloatImage) Interpolate(p lk.Vec2) float64 {
	x0, y0, x1, y1, wx, wy := bilinearCorners(f.Rect, p)
	v00 := float64(f.At(x0, y0))
	v10 := float64(f.At(x1, y0))
	v01 := float64(f.At(x0, y1))
	v11 := float64(f.At(x1, y1))
	top := v00 + wx*(v10-v00)
	bottom := v01 + wx*(v11-v01)
	return top + wy*(bottom-top)
}

// bilinearCorners returns the 2x2 cell corners around p clamped to r, and
// the fractional weights along x and y.
func bilinearCorners(r image.Rectangle, p lk.Vec2) (x0, y0, x1, y1 int, wx, wy float64) {
	fx := math.Floor(p.X)
	fy := math.Floor(p.Y)
	wx = p.X - fx
	wy = p.Y - fy
	x0 = clamp(int(fx), r.Min.X, r.Max.X-1)
	y0 = clamp(int(fy), r.Min.Y, r.Max.Y-1)
	x1 = clamp(int(fx)+1, r.Min.X, r.Max.X-1)
	y1 = clamp(int(fy)+1, r.Min.Y, r.Max.Y-1)
	return
}

// GradientField holds the spatial derivatives of a FloatImage as
// interleaved (gx, gy) pairs. It satisfies lk.GradientSampler.
type GradientField struct {
	Pix    []float32
	Stride int
	Rect   image.Rectangle
}

// NewGradientField allocates a zeroed field covering r.
func NewGradientField(r image.Rectangle) *GradientField {
	return &GradientField{
		Pix:    make([]float32, 2*r.Dx()*r.Dy()),
		Stride: 2 * r.Dx(),
		Rect:   r,
	}
}

func (g *GradientField) PixOffset(x, y int) int {
	return (y-g.Rect.Min.Y)*g.Stride + (x-g.Rect.Min.X)*2
}

// At returns the gradient at (x, y). The point must lie inside Rect.
func (g *GradientField) At(x, y int) lk.Vec2 {
	i := g.PixOffset(x, y)
	return lk.Vec2{X: float64(g.Pix[i]), Y: float64(g.Pix[i+1])}
}

func (g *GradientField) Set(x, y int, d lk.Vec2) {
	i := g.PixOffset(x, y)
	g.Pix[i] = float32(d.X)
	g.Pix[i+1] = float32(d.Y)
}

func (g *GradientField) Bounds() image.Rectangle { return g.Rect }

func (g *GradientField) Has(p image.Point) bool { return p.In(g.Rect) }

// Interpolate samples both gradient components bilinearly at p with the
// same edge handling as FloatImage.Interpolate.
func (g *GradientField) Interpolate(p lk.Vec2) lk.Vec2 {
	x0, y0, x1, y1, wx, wy := bilinearCorners(g.Rect, p)
	v00 := g.At(x0, y0)
	v10 := g.At(x1, y0)
	v01 := g.At(x0, y1)
	v11 := g.At(x1, y1)
	lerp := func(a, b, c, d float64) float64 {
		top := a + wx*(b-a)
		bottom := c + wx*(d-c)
		return top + wy*(bottom-top)
	}
	return lk.Vec2{
		X: lerp(v00.X, v10.X, v01.X, v11.X),
		Y: lerp(v00.Y, v10.Y, v01.Y, v11.Y),
	}
}
