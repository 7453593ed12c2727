package lk

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tensor is the structure tensor of a window: the sum of gradient outer
// products over the samples the reference image reported as valid.
type Tensor struct {
	XX, XY, YY float64

	// Samples is the number of window positions that contributed.
	Samples int
}

// StructureTensor accumulates the structure tensor of the window centered
// on p. Positions whose cell is outside a are skipped.
func StructureTensor[S Sampler, G GradientSampler](m *Matcher, p Vec2, a S, ag G) Tensor {
	var t Tensor
	hws := m.size / 2
	for r := -hws; r <= hws; r++ {
		for c := -hws; c <= hws; c++ {
			n := p.Add(Vec2{X: float64(c), Y: float64(r)})
			if !a.Has(n.Cell()) {
				continue
			}
			g := ag.Interpolate(n)
			t.XX += g.X * g.X
			t.XY += g.X * g.Y
			t.YY += g.Y * g.Y
			t.Samples++
		}
	}
	return t
}

func (t Tensor) sym() *mat.SymDense {
	return mat.NewSymDense(2, []float64{
		t.XX, t.XY,
		t.XY, t.YY,
	})
}

// Eigenvalues returns the eigenvalues of t in ascending order. A tensor the
// factorization cannot handle (NaN entries) reports zeros.
func (t Tensor) Eigenvalues() [2]float64 {
	var es mat.EigenSym
	if !es.Factorize(t.sym(), false) {
		return [2]float64{}
	}
	vals := es.Values(nil)
	return [2]float64{vals[0], vals[1]}
}

// MinAbsEigenvalue returns the smallest eigenvalue magnitude of t.
func (t Tensor) MinAbsEigenvalue() float64 {
	ev := t.Eigenvalues()
	return math.Min(math.Abs(ev[0]), math.Abs(ev[1]))
}

// Inverse returns the inverse of t. A badly conditioned but invertible
// tensor is still returned; only a singular one is an error.
func (t Tensor) Inverse() (Mat2, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.sym()); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Mat2{}, fmt.Errorf("invert structure tensor: %w", err)
		}
	}
	return Mat2{
		{inv.At(0, 0), inv.At(0, 1)},
		{inv.At(1, 0), inv.At(1, 1)},
	}, nil
}
