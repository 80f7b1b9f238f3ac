package shapefn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

/*
ShapeFunction is the radially symmetric kernel spreading a particle's
charge over its support. Implementations are immutable values: a depositor
holds one by value and replacing it affects only subsequent depositions,
never accumulators already written.

Eval takes the squared distance from the particle center so the scatter
loops can skip the square root; kernels integrate to one over the plane.
*/
type ShapeFunction interface {
	Radius() float64
	Eval(rsq float64) float64
}

// PolynomialShape is the kernel c*(1-r^2/l^2)^alpha inside radius l, zero
// outside, with c chosen so the 2D integral is one.
type PolynomialShape struct {
	L     float64
	Alpha float64
	c     float64
}

func NewPolynomialShape(radius, alpha float64) (sf PolynomialShape, err error) {
	if radius <= 0 || alpha < 0 {
		err = fmt.Errorf("invalid shape parameters: radius = %v, alpha = %v", radius, alpha)
		return
	}
	sf = PolynomialShape{
		L:     radius,
		Alpha: alpha,
		c:     (alpha + 1) / (math.Pi * radius * radius),
	}
	return
}

func (sf PolynomialShape) Radius() float64 { return sf.L }

func (sf PolynomialShape) Eval(rsq float64) float64 {
	lsq := sf.L * sf.L
	if rsq >= lsq {
		return 0
	}
	return sf.c * math.Pow(1-rsq/lsq, sf.Alpha)
}

// GaussianShape is a Gaussian with sigma = radius/3, truncated at its
// radius and renormalized over the truncation disk.
type GaussianShape struct {
	L     float64
	sigma float64
	c     float64
}

func NewGaussianShape(radius float64) (sf GaussianShape, err error) {
	if radius <= 0 {
		err = fmt.Errorf("invalid shape radius: %v", radius)
		return
	}
	sigma := radius / 3
	radial := func(r float64) float64 {
		return r * math.Exp(-r*r/(2*sigma*sigma))
	}
	norm := 2 * math.Pi * quad.Fixed(radial, 0, radius, 40, nil, 0)
	sf = GaussianShape{
		L:     radius,
		sigma: sigma,
		c:     1 / norm,
	}
	return
}

func (sf GaussianShape) Radius() float64 { return sf.L }

func (sf GaussianShape) Eval(rsq float64) float64 {
	if rsq >= sf.L*sf.L {
		return 0
	}
	return sf.c * math.Exp(-rsq/(2*sf.sigma*sf.sigma))
}
