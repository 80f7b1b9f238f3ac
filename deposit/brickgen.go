package deposit

import (
	"math"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/utils"
)

/*
SingleBrick sizes one brick covering the mesh bounding box, with the node
spacing derived from the mean element volume divided by the overresolve
factor, so the overlay grid resolves below the element scale.
*/
func SingleBrick(m *mesh.Mesh, overresolve float64) (b geom.Brick, err error) {
	var (
		volume float64
		bbox   = m.ElementBoundingBox(0)
	)
	for el := 0; el < m.ElementCount(); el++ {
		volume += m.Elements[el].Jacobian / 2.
		eb := m.ElementBoundingBox(el)
		bbox = geom.NewBox(
			geom.Point{X: math.Min(bbox.Lower.X, eb.Lower.X), Y: math.Min(bbox.Lower.Y, eb.Lower.Y)},
			geom.Point{X: math.Max(bbox.Upper.X, eb.Upper.X), Y: math.Max(bbox.Upper.Y, eb.Upper.Y)})
	}
	var (
		dx   = math.Sqrt(volume/float64(m.ElementCount())) / overresolve
		size = bbox.Upper.Sub(bbox.Lower)
		// an axis thinner than the derived spacing still gets two nodes so
		// the step stays finite
		dims = [2]int{
			utils.MaxInt(2, int(size.X/dx)+1),
			utils.MaxInt(2, int(size.Y/dx)+1),
		}
		step = geom.Point{X: size.X / float64(dims[0]-1), Y: size.Y / float64(dims[1]-1)}
	)
	return geom.NewBrick(0, 0, bbox.Lower, step, dims)
}

/*
BuildAverageGroups detects coincident nodes between distinct bricks and
builds the CSR group table averaging them. Node positions are matched by
quantizing against the finest brick spacing.
*/
func BuildAverageGroups(bricks []geom.Brick) (groups utils.CSRTable, err error) {
	var (
		minStep = math.Inf(1)
	)
	for _, b := range bricks {
		minStep = math.Min(minStep, math.Min(b.StepWidths.X, b.StepWidths.Y))
	}
	type key struct{ i, j int64 }
	quant := func(p geom.Point) key {
		return key{
			int64(math.Round(p.X / (minStep * 0.5))),
			int64(math.Round(p.Y / (minStep * 0.5))),
		}
	}
	coincident := make(map[key]utils.Index)
	for _, b := range bricks {
		for i := 0; i < b.Dims[0]; i++ {
			for j := 0; j < b.Dims[1]; j++ {
				k := quant(b.Point(i, j))
				coincident[k] = append(coincident[k], b.Index(i, j))
			}
		}
	}
	var (
		starts = utils.Index{0}
		values utils.Index
	)
	for _, group := range coincident {
		if len(group) < 2 {
			continue
		}
		values = append(values, group...)
		starts = append(starts, len(values))
	}
	return utils.NewCSRTable(starts, values)
}
