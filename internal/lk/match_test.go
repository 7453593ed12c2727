package lk

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcImage samples an analytic intensity function over a rectangle.
type funcImage struct {
	rect image.Rectangle
	f    func(x, y float64) float64
}

func (fi funcImage) Has(p image.Point) bool      { return p.In(fi.rect) }
func (fi funcImage) Interpolate(p Vec2) float64 { return fi.f(p.X, p.Y) }
func (fi funcImage) Domain() image.Rectangle     { return fi.rect }

// funcGradient samples an analytic gradient function over a rectangle.
type funcGradient struct {
	rect image.Rectangle
	g    func(x, y float64) Vec2
}

func (fg funcGradient) Has(p image.Point) bool   { return p.In(fg.rect) }
func (fg funcGradient) Interpolate(p Vec2) Vec2 { return fg.g(p.X, p.Y) }

var testRect = image.Rect(0, 0, 200, 200)

func texture(x, y float64) float64 {
	return 100 + 40*math.Sin(x/3) + 40*math.Cos(y/4) + 20*math.Sin((x+y)/5)
}

func textureGradient(x, y float64) Vec2 {
	return Vec2{
		X: 40.0/3*math.Cos(x/3) + 4*math.Cos((x+y)/5),
		Y: -10*math.Sin(y/4) + 4*math.Cos((x+y)/5),
	}
}

func shifted(d Vec2) funcImage {
	return funcImage{rect: testRect, f: func(x, y float64) float64 {
		return texture(x-d.X, y-d.Y)
	}}
}

// checkerGradient alternates between unit gradients along x and y by
// column parity, giving diag(45, 36) over a 9x9 window on an even column.
func checkerGradient() funcGradient {
	return funcGradient{rect: testRect, g: func(x, y float64) Vec2 {
		if int(math.Floor(x))%2 == 0 {
			return Vec2{X: 1}
		}
		return Vec2{Y: 1}
	}}
}

func constant(v float64) funcImage {
	return funcImage{rect: testRect, f: func(x, y float64) float64 { return v }}
}

func newTestMatcher(t *testing.T, opts ...Option) *Matcher {
	t.Helper()
	m, err := NewMatcher(opts...)
	require.NoError(t, err)
	return m
}

func TestNewMatcher(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	assert.Equal(t, DefaultWindowSize, m.WindowSize())

	m = newTestMatcher(t, WithWindowSize(15))
	assert.Equal(t, 15, m.WindowSize())

	for _, size := range []int{0, -3, 8, 33} {
		_, err := NewMatcher(WithWindowSize(size))
		assert.ErrorIs(t, err, ErrWindowSize, "size %d", size)
	}
}

func TestMatch_StaticImages(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	a := funcImage{rect: testRect, f: texture}
	ag := funcGradient{rect: testRect, g: textureGradient}

	res := Match(m, Vec2{X: 50, Y: 60}, Vec2{}, a, a, ag, 1)

	require.True(t, res.OK(), "status %v", res.Status)
	assert.Equal(t, Vec2{}, res.Displacement)
	assert.Equal(t, 0.0, res.Error)
	assert.Equal(t, 1, res.Iterations)
}

func TestMatch_GradientDomainSmallerThanImage(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	a := funcImage{rect: testRect, f: texture}
	p := Vec2{X: 50, Y: 60}

	// The gradient only covers columns up to x=50, so the right four
	// window columns keep zero template samples.
	ag := funcGradient{rect: image.Rect(0, 0, 51, 200), g: textureGradient}

	res := Match(m, p, Vec2{}, a, a, ag, 1)

	require.True(t, res.OK(), "status %v", res.Status)
	assert.Equal(t, Vec2{}, res.Displacement)
	assert.Equal(t, 1, res.Iterations)

	var want float64
	for r := -4; r <= 4; r++ {
		for c := 1; c <= 4; c++ {
			want += texture(p.X+float64(c), p.Y+float64(r))
		}
	}
	// 81 samples from the update loop plus 81 from the residual.
	want /= 162
	assert.InDelta(t, want, res.Error, 1e-9)
	assert.Greater(t, res.Error, 0.0)

	full := Match(m, p, Vec2{}, a, a, funcGradient{rect: testRect, g: textureGradient}, 1)
	assert.Equal(t, 0.0, full.Error)
}

func TestMatch_ConstantWindowIsIllConditioned(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	a := constant(128)
	ag := funcGradient{rect: testRect, g: func(x, y float64) Vec2 { return Vec2{} }}

	res := Match(m, Vec2{X: 50, Y: 50}, Vec2{}, a, a, ag, 1)

	assert.Equal(t, StatusIllConditioned, res.Status)
	assert.Equal(t, NoMatch, res.Displacement)
	assert.Equal(t, IllConditionedError, res.Error)
	assert.Zero(t, res.Iterations)
}

func TestMatch_CallerFloorBelowMinimumRejectsEverything(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	a := funcImage{rect: testRect, f: texture}
	ag := funcGradient{rect: testRect, g: textureGradient}

	res := Match(m, Vec2{X: 50, Y: 60}, Vec2{}, a, a, ag, 0)
	assert.Equal(t, StatusIllConditioned, res.Status)
	assert.Equal(t, IllConditionedError, res.Error)
}

func TestMatch_SubPixelTranslation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		d          Vec2
		prediction Vec2
	}{
		{"zero prediction", Vec2{X: 1.3, Y: -0.7}, Vec2{}},
		{"close prediction", Vec2{X: 1.3, Y: -0.7}, Vec2{X: 1.0, Y: -0.5}},
		{"exact prediction", Vec2{X: -0.45, Y: 0.8}, Vec2{X: -0.45, Y: 0.8}},
	}

	m := newTestMatcher(t)
	a := funcImage{rect: testRect, f: texture}
	ag := funcGradient{rect: testRect, g: textureGradient}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := shifted(tt.d)
			res := Match(m, Vec2{X: 70, Y: 40}, tt.prediction, a, b, ag, 1)

			require.True(t, res.OK(), "status %v", res.Status)
			assert.InDelta(t, tt.d.X, res.Displacement.X, 0.05)
			assert.InDelta(t, tt.d.Y, res.Displacement.Y, 0.05)
			assert.Less(t, res.Error, 1.0)
			assert.LessOrEqual(t, res.Iterations, MaxIterations)
		})
	}
}

func TestMatch_PredictionOutsideDomain(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	a := funcImage{rect: testRect, f: texture}
	ag := funcGradient{rect: testRect, g: textureGradient}

	res := Match(m, Vec2{X: 50, Y: 50}, Vec2{X: 1000, Y: -1000}, a, a, ag, 1)

	assert.Equal(t, StatusOutOfBounds, res.Status)
	assert.Equal(t, NoMatch, res.Displacement)
	assert.Equal(t, DivergedError, res.Error)
	assert.Zero(t, res.Iterations)
}

func TestMatch_IterationCap(t *testing.T) {
	t.Parallel()

	// A zero template against a constant target yields the same step,
	// (-0.25, -0.25), on every iteration, so refinement never converges.
	m := newTestMatcher(t)
	res := Match(m, Vec2{X: 50, Y: 50}, Vec2{}, constant(0), constant(0.25), checkerGradient(), 1)

	require.True(t, res.OK(), "status %v", res.Status)
	assert.Equal(t, MaxIterations, res.Iterations)
	assert.InDelta(t, -7.5, res.Displacement.X, 1e-9)
	assert.InDelta(t, -7.5, res.Displacement.Y, 1e-9)
	// 81 residual samples of 0.25 over the last iteration's 81 plus the
	// residual's own 81.
	assert.InDelta(t, 0.125, res.Error, 1e-12)
}

func TestMatch_Divergence(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	res := Match(m, Vec2{X: 50, Y: 50}, Vec2{}, constant(0), constant(20), checkerGradient(), 1)

	assert.Equal(t, StatusDiverged, res.Status)
	assert.Equal(t, NoMatch, res.Displacement)
	assert.Equal(t, DivergedError, res.Error)
	assert.Equal(t, 1, res.Iterations)
}

func TestMatch_LeavesTargetDomain(t *testing.T) {
	t.Parallel()

	// Unit steps towards the origin; the cell of 2.5 is outside the
	// domain inset by DomainBorder on the sixth step.
	m := newTestMatcher(t)
	res := Match(m, Vec2{X: 8.5, Y: 8.5}, Vec2{}, constant(0), constant(1), checkerGradient(), 1)

	assert.Equal(t, StatusOutOfBounds, res.Status)
	assert.Equal(t, DivergedError, res.Error)
	assert.Equal(t, 6, res.Iterations)
}

func TestMatch_Idempotent(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	a := funcImage{rect: testRect, f: texture}
	b := shifted(Vec2{X: 0.6, Y: 1.1})
	ag := funcGradient{rect: testRect, g: textureGradient}
	p := Vec2{X: 33.25, Y: 91.5}

	first := Match(m, p, Vec2{}, a, b, ag, 1)
	second := Match(m, p, Vec2{}, a, b, ag, 1)
	assert.Equal(t, first, second)
}

func TestMatch_LegacyResidualStride(t *testing.T) {
	t.Parallel()

	a := funcImage{rect: testRect, f: texture}
	ag := funcGradient{rect: testRect, g: textureGradient}
	p := Vec2{X: 50, Y: 60}

	corrected := Match(newTestMatcher(t), p, Vec2{}, a, a, ag, 1)
	legacy := Match(newTestMatcher(t, WithLegacyResidualStride(true)), p, Vec2{}, a, a, ag, 1)

	require.True(t, legacy.OK())
	assert.Equal(t, corrected.Displacement, legacy.Displacement)
	assert.Zero(t, corrected.Error)
	assert.Greater(t, legacy.Error, 0.0)
}

func TestResidualIndex(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t)
	assert.Equal(t, 0, m.residualIndex(-4, -4))
	assert.Equal(t, 40, m.residualIndex(0, 0))
	assert.Equal(t, 80, m.residualIndex(4, 4))

	legacy := newTestMatcher(t, WithLegacyResidualStride(true))
	assert.Equal(t, 0, legacy.residualIndex(-4, -4))
	assert.Equal(t, 20, legacy.residualIndex(0, 0))
	assert.Equal(t, 40, legacy.residualIndex(4, 4))
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "ill_conditioned", StatusIllConditioned.String())
	assert.Equal(t, "diverged", StatusDiverged.String())
	assert.Equal(t, "out_of_bounds", StatusOutOfBounds.String())
	assert.Equal(t, "unknown", Status(42).String())
}
