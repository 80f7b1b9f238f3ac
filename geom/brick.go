package geom

import (
	"fmt"

	"github.com/notargets/gopic/utils"
)

/*
Brick is one axis-aligned structured sub-grid of the overlay grid. Node
(i,j) of a brick sits at origin + (i*dx, j*dy) and owns the flattened grid
index StartIndex + i*Dims[1] + j. Bricks are ordered; StartIndex of brick
n+1 equals StartIndex+NodeCount of brick n.
*/
type Brick struct {
	Number     int
	StartIndex int
	Origin     Point
	StepWidths Point
	Dims       [2]int
}

func NewBrick(number, startIndex int, origin, stepWidths Point, dims [2]int) (b Brick, err error) {
	if stepWidths.X <= 0 || stepWidths.Y <= 0 {
		err = fmt.Errorf("brick %d: step widths must be positive, got %v", number, stepWidths)
		return
	}
	if dims[0] < 1 || dims[1] < 1 {
		err = fmt.Errorf("brick %d: dims must be at least 1, got %v", number, dims)
		return
	}
	b = Brick{
		Number:     number,
		StartIndex: startIndex,
		Origin:     origin,
		StepWidths: stepWidths,
		Dims:       dims,
	}
	return
}

func (b Brick) NodeCount() int {
	return b.Dims[0] * b.Dims[1]
}

func (b Brick) Point(i, j int) Point {
	return Point{
		b.Origin.X + float64(i)*b.StepWidths.X,
		b.Origin.Y + float64(j)*b.StepWidths.Y,
	}
}

func (b Brick) Index(i, j int) int {
	return b.StartIndex + i*b.Dims[1] + j
}

func (b Brick) BoundingBox() Box {
	return Box{
		Lower: b.Origin,
		Upper: Point{
			b.Origin.X + float64(b.Dims[0]-1)*b.StepWidths.X,
			b.Origin.Y + float64(b.Dims[1]-1)*b.StepWidths.Y,
		},
	}
}

// IndexRange clips a box against the brick and returns the inclusive node
// index bounds covering it. ok is false when the clip is empty.
type IndexRange struct {
	IMin, IMax, JMin, JMax int
}

func (b Brick) IndexRange(box Box) (ir IndexRange, ok bool) {
	clip := b.BoundingBox().Intersect(box)
	if clip.Lower.X > clip.Upper.X || clip.Lower.Y > clip.Upper.Y {
		return
	}
	ir.IMin = utils.MaxInt(0, int((clip.Lower.X-b.Origin.X)/b.StepWidths.X))
	ir.JMin = utils.MaxInt(0, int((clip.Lower.Y-b.Origin.Y)/b.StepWidths.Y))
	// ceil of the upper corner, clamped to the node lattice
	ir.IMax = utils.MinInt(b.Dims[0]-1, int((clip.Upper.X-b.Origin.X)/b.StepWidths.X+1))
	ir.JMax = utils.MinInt(b.Dims[1]-1, int((clip.Upper.Y-b.Origin.Y)/b.StepWidths.Y+1))
	ok = ir.IMin <= ir.IMax && ir.JMin <= ir.JMax
	return
}

// Visit calls f for every node of the brick within the index range.
func (b Brick) Visit(ir IndexRange, f func(i, j int, pt Point, gridIndex int)) {
	for i := ir.IMin; i <= ir.IMax; i++ {
		for j := ir.JMin; j <= ir.JMax; j++ {
			f(i, j, b.Point(i, j), b.Index(i, j))
		}
	}
}
