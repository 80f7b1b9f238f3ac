package geom

import (
	"fmt"
	"math"
)

type Point struct {
	X, Y float64
}

func (p Point) Add(q Point) Point      { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point      { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Scale(a float64) Point  { return Point{a * p.X, a * p.Y} }
func (p Point) Dot(q Point) float64    { return p.X*q.X + p.Y*q.Y }
func (p Point) NormSq() float64        { return p.X*p.X + p.Y*p.Y }
func (p Point) Norm() float64          { return math.Sqrt(p.NormSq()) }
func (p Point) DistSq(q Point) float64 { return p.Sub(q).NormSq() }

type Box struct {
	Lower, Upper Point
}

func NewBox(lower, upper Point) Box {
	return Box{Lower: lower, Upper: upper}
}

func (b Box) IsEmpty() bool {
	return b.Lower.X >= b.Upper.X || b.Lower.Y >= b.Upper.Y
}

func (b Box) Contains(p Point) bool {
	return p.X >= b.Lower.X && p.X <= b.Upper.X &&
		p.Y >= b.Lower.Y && p.Y <= b.Upper.Y
}

func (b Box) Intersect(o Box) Box {
	return Box{
		Lower: Point{math.Max(b.Lower.X, o.Lower.X), math.Max(b.Lower.Y, o.Lower.Y)},
		Upper: Point{math.Min(b.Upper.X, o.Upper.X), math.Min(b.Upper.Y, o.Upper.Y)},
	}
}

func (b Box) Enlarge(d float64) Box {
	return Box{
		Lower: Point{b.Lower.X - d, b.Lower.Y - d},
		Upper: Point{b.Upper.X + d, b.Upper.Y + d},
	}
}

// IntersectsDisk reports whether the closed box meets the disk of radius r
// about center.
func (b Box) IntersectsDisk(center Point, r float64) bool {
	clamped := Point{
		math.Min(math.Max(center.X, b.Lower.X), b.Upper.X),
		math.Min(math.Max(center.Y, b.Lower.Y), b.Upper.Y),
	}
	return clamped.DistSq(center) <= r*r
}

/*
AffineMap is the map x = A*u + b from unit (reference) coordinates u to
global coordinates x, with the inverse cached at construction. For a
triangle the unit element has vertices (0,0), (1,0), (0,1).
*/
type AffineMap struct {
	A    [2][2]float64 // column j is the image of unit axis j
	B    Point
	AInv [2][2]float64
	Det  float64
}

func NewAffineMap(col0, col1, b Point) (am AffineMap, err error) {
	am = AffineMap{
		A: [2][2]float64{{col0.X, col1.X}, {col0.Y, col1.Y}},
		B: b,
	}
	am.Det = col0.X*col1.Y - col1.X*col0.Y
	if am.Det == 0 || math.IsNaN(am.Det) {
		err = fmt.Errorf("degenerate affine map: det = %v", am.Det)
		return
	}
	d := 1. / am.Det
	am.AInv = [2][2]float64{
		{d * am.A[1][1], -d * am.A[0][1]},
		{-d * am.A[1][0], d * am.A[0][0]},
	}
	return
}

func (am AffineMap) Apply(u Point) Point {
	return Point{
		am.A[0][0]*u.X + am.A[0][1]*u.Y + am.B.X,
		am.A[1][0]*u.X + am.A[1][1]*u.Y + am.B.Y,
	}
}

func (am AffineMap) ApplyInverse(x Point) Point {
	d := x.Sub(am.B)
	return Point{
		am.AInv[0][0]*d.X + am.AInv[0][1]*d.Y,
		am.AInv[1][0]*d.X + am.AInv[1][1]*d.Y,
	}
}
