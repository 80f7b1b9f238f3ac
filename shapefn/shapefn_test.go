package shapefn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// diskIntegral integrates the kernel over its support disk with the
// midpoint rule in polar coordinates.
func diskIntegral(sf ShapeFunction) (sum float64) {
	var (
		l  = sf.Radius()
		n  = 2000
		dr = l / float64(n)
	)
	for i := 0; i < n; i++ {
		r := (float64(i) + 0.5) * dr
		sum += 2 * math.Pi * r * sf.Eval(r*r) * dr
	}
	return
}

func TestPolynomialShape(t *testing.T) {
	for _, alpha := range []float64{0, 1, 2, 4} {
		sf, err := NewPolynomialShape(0.3, alpha)
		assert.NoError(t, err)
		assert.Equal(t, 0.3, sf.Radius())
		assert.InDelta(t, 1., diskIntegral(sf), 1.e-5)
		// compact support
		assert.Equal(t, 0., sf.Eval(0.3*0.3))
		assert.Equal(t, 0., sf.Eval(1.))
		assert.True(t, sf.Eval(0) > 0)
	}
	// peak value is the closed form (alpha+1)/(pi l^2)
	{
		sf, _ := NewPolynomialShape(0.5, 2)
		assert.InDelta(t, 3./(math.Pi*0.25), sf.Eval(0), 1.e-12)
	}
	_, err := NewPolynomialShape(0, 2)
	assert.Error(t, err)
	_, err = NewPolynomialShape(0.3, -1)
	assert.Error(t, err)
}

func TestGaussianShape(t *testing.T) {
	sf, err := NewGaussianShape(0.3)
	assert.NoError(t, err)
	assert.Equal(t, 0.3, sf.Radius())
	// renormalized over the truncation disk
	assert.InDelta(t, 1., diskIntegral(sf), 1.e-5)
	assert.Equal(t, 0., sf.Eval(0.3*0.3))
	// monotone decreasing in r
	assert.True(t, sf.Eval(0) > sf.Eval(0.01) && sf.Eval(0.01) > sf.Eval(0.04))

	_, err = NewGaussianShape(-1)
	assert.Error(t, err)
}
