package lk

import (
	"errors"
	"image"
	"math"
)

const (
	// MaxIterations caps the number of refinement steps.
	MaxIterations = 30

	// ConvergenceNorm stops refinement once a step is shorter than this.
	ConvergenceNorm = 0.1

	// MinEigenvalue is the floor below which a window is ill-conditioned.
	MinEigenvalue = 1e-4

	// DomainBorder is the inset applied to the target domain before the
	// per-step bounds check.
	DomainBorder = 3

	// IllConditionedError is the error reported for textureless windows.
	IllConditionedError = 1000.0

	// DivergedError is the error reported when refinement diverges or leaves
	// the target domain.
	DivergedError = math.MaxFloat32

	DefaultWindowSize = 9
	MaxWindowSize     = 31

	maxWindowArea = MaxWindowSize * MaxWindowSize
)

// NoMatch is the displacement reported by every failed Result.
var NoMatch = Vec2{X: -1, Y: -1}

// ErrWindowSize is returned by NewMatcher for an unusable window side.
var ErrWindowSize = errors.New("lk: window size must be odd and between 1 and 31")

// Sampler is the capability set required of the reference and target
// images.
type Sampler interface {
	// Has reports whether the integer cell p holds valid data.
	Has(p image.Point) bool

	// Interpolate samples the intensity at a sub-pixel position. It must
	// be safe to call anywhere Has reports true for the containing cell.
	Interpolate(p Vec2) float64

	// Domain is the valid sampling region.
	Domain() image.Rectangle
}

// GradientSampler is the capability set required of the gradient field of
// the reference image.
type GradientSampler interface {
	Has(p image.Point) bool
	Interpolate(p Vec2) Vec2
}

// Status tags the outcome of a Match call.
type Status int

const (
	StatusOK Status = iota
	StatusIllConditioned
	StatusDiverged
	StatusOutOfBounds
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusIllConditioned:
		return "ill_conditioned"
	case StatusDiverged:
		return "diverged"
	case StatusOutOfBounds:
		return "out_of_bounds"
	default:
		return "unknown"
	}
}

// Result is the outcome of a Match call.
type Result struct {
	// Displacement is the motion of the point from A to B, or NoMatch.
	Displacement Vec2

	// Error is the normalized absolute residual of the window at the
	// matched position, or one of the sentinel errors.
	Error float64

	Status Status

	// Iterations is the number of refinement steps taken.
	Iterations int
}

// OK reports whether r is a successful match.
func (r Result) OK() bool { return r.Status == StatusOK }

func failed(s Status, errValue float64, iterations int) Result {
	return Result{Displacement: NoMatch, Error: errValue, Status: s, Iterations: iterations}
}

// Matcher holds the window configuration for Match. A Matcher is immutable
// after construction and may be shared between goroutines.
type Matcher struct {
	size         int
	legacyStride bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWindowSize sets the window side. It must be odd.
func WithWindowSize(size int) Option {
	return func(m *Matcher) { m.size = size }
}

// WithLegacyResidualStride makes the residual phase index cached samples
// with the half-width as row stride, as the pyramidal tracker this matcher
// was derived from does. Template and target samples are then misaligned.
// The default indexes with the full window side.
func WithLegacyResidualStride(enabled bool) Option {
	return func(m *Matcher) { m.legacyStride = enabled }
}

// NewMatcher returns a Matcher with DefaultWindowSize unless overridden.
func NewMatcher(opts ...Option) (*Matcher, error) {
	m := &Matcher{size: DefaultWindowSize}
	for _, opt := range opts {
		opt(m)
	}
	if m.size < 1 || m.size > MaxWindowSize || m.size%2 == 0 {
		return nil, ErrWindowSize
	}
	return m, nil
}

// WindowSize returns the window side.
func (m *Matcher) WindowSize() int { return m.size }

// residualIndex maps a window offset to its cached sample slot.
func (m *Matcher) residualIndex(r, c int) int {
	hws := m.size / 2
	if m.legacyStride {
		return (r+hws)*hws + (c + hws)
	}
	return (r+hws)*m.size + (c + hws)
}

// Match refines the displacement of p from a into b.
//
// The structure tensor of the window around p is built from ag. The
// working eigenvalue threshold starts at minEV and is lowered to the
// smallest eigenvalue magnitude of the tensor; if the result is below
// MinEigenvalue the window is ill-conditioned. Note that a minEV below
// MinEigenvalue therefore rejects every window.
//
// Refinement starts at p + prediction and runs Gauss-Newton steps against
// the template sampled once around p, for at most MaxIterations or until a
// step is shorter than ConvergenceNorm. A step longer than the window side
// diverges; a position whose cell leaves b's domain inset by DomainBorder
// is out of bounds. A prediction that places the whole initial window
// outside that inset domain fails before any step is taken.
func Match[S Sampler, G GradientSampler](m *Matcher, p, prediction Vec2, a, b S, ag G, minEV float64) Result {
	ws := m.size
	hws := ws / 2

	tensor := StructureTensor(m, p, a, ag)
	cpt := tensor.Samples

	for _, ev := range tensor.Eigenvalues() {
		if math.Abs(ev) < minEV {
			minEV = math.Abs(ev)
		}
	}
	if minEV < MinEigenvalue {
		return failed(StatusIllConditioned, IllConditionedError, 0)
	}
	g1, err := tensor.Inverse()
	if err != nil {
		return failed(StatusIllConditioned, IllConditionedError, 0)
	}

	// Template samples around p, captured once.
	var gs [maxWindowArea]Vec2
	var as [maxWindowArea]float64
	i := 0
	for r := -hws; r <= hws; r++ {
		for c := -hws; c <= hws; c++ {
			n := p.Add(Vec2{X: float64(c), Y: float64(r)})
			if ag.Has(n.Cell()) {
				gs[i] = ag.Interpolate(n)
				as[i] = a.Interpolate(n)
			}
			i++
		}
	}
	domain := b.Domain().Inset(DomainBorder)

	v := p.Add(prediction)
	start := v.Cell()
	window := image.Rect(start.X-hws, start.Y-hws, start.X+hws+1, start.Y+hws+1)
	if !window.Overlaps(domain) {
		return failed(StatusOutOfBounds, DivergedError, 0)
	}

	step := Vec2{X: 1, Y: 1}
	k := 0
	for ; k < MaxIterations && step.Norm() >= ConvergenceNorm; k++ {
		var bk Vec2
		cpt = 0
		i := 0
		for r := -hws; r <= hws; r++ {
			for c := -hws; c <= hws; c++ {
				n := v.Add(Vec2{X: float64(c), Y: float64(r)})
				dt := as[i] - b.Interpolate(n)
				bk.X += gs[i].X * dt
				bk.Y += gs[i].Y * dt
				cpt++
				i++
			}
		}

		step = g1.MulVec(bk)
		if step.Norm() > float64(ws) {
			return failed(StatusDiverged, DivergedError, k+1)
		}
		v = v.Add(step)
		if !v.Cell().In(domain) {
			return failed(StatusOutOfBounds, DivergedError, k+1)
		}
	}

	var sum float64
	for r := -hws; r <= hws; r++ {
		for c := -hws; c <= hws; c++ {
			n := v.Add(Vec2{X: float64(c), Y: float64(r)})
			sum += math.Abs(as[m.residualIndex(r, c)] - b.Interpolate(n))
			cpt++
		}
	}

	return Result{
		Displacement: v.Sub(p),
		Error:        sum / float64(cpt),
		Status:       StatusOK,
		Iterations:   k,
	}
}
