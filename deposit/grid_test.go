package deposit

import (
	"math"
	"testing"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/utils"
	"github.com/stretchr/testify/assert"
)

func TestSingleBrick(t *testing.T) {
	m := testMesh(t, 4)
	b, err := SingleBrick(m, 1.5)
	assert.NoError(t, err)
	assert.True(t, b.StepWidths.X > 0 && b.StepWidths.Y > 0)

	// the brick spans the mesh bounding box
	bb := b.BoundingBox()
	assert.InDelta(t, -1., bb.Lower.X, 1.e-12)
	assert.InDelta(t, -1., bb.Lower.Y, 1.e-12)
	assert.InDelta(t, 1., bb.Upper.X, 1.e-12)
	assert.InDelta(t, 1., bb.Upper.Y, 1.e-12)

	// overresolve refines below the element scale
	assert.True(t, b.StepWidths.X < 0.5)
}

func TestSingleBrickThinMesh(t *testing.T) {
	// a mesh axis thinner than the derived spacing still gets a finite
	// two-node axis
	m, err := mesh.NewRectMesh(
		geom.NewBox(geom.Point{X: 0, Y: 0}, geom.Point{X: 10, Y: 0.05}), 4, 1)
	assert.NoError(t, err)
	b, err := SingleBrick(m, 1.5)
	assert.NoError(t, err)
	assert.True(t, b.Dims[1] >= 2)
	assert.False(t, math.IsInf(b.StepWidths.Y, 0) || math.IsNaN(b.StepWidths.Y))
	bb := b.BoundingBox()
	assert.InDelta(t, 0.05, bb.Upper.Y, 1.e-12)
	assert.InDelta(t, 10., bb.Upper.X, 1.e-12)
}

// fillField samples f at every grid node, regular and extra.
func fillField(gd *GridDepositor, f func(geom.Point) float64) (g utils.Vector) {
	g = utils.NewVector(gd.GridNodeCount())
	for _, b := range gd.Bricks {
		for i := 0; i < b.Dims[0]; i++ {
			for j := 0; j < b.Dims[1]; j++ {
				g.Set(b.Index(i, j), f(b.Point(i, j)))
			}
		}
	}
	for k, pt := range gd.ExtraPoints {
		g.Set(gd.FirstExtraPoint+k, f(pt))
	}
	return
}

func TestGridRemapLinearExact(t *testing.T) {
	var (
		m      = testMesh(t, 4)
		b, err = SingleBrick(m, 1.5)
	)
	assert.NoError(t, err)
	gd, err := NewGridDepositor(m, []geom.Brick{b})
	assert.NoError(t, err)

	// remap before preparation fails
	{
		_, err = gd.RemapGridToMesh(utils.NewVector(gd.GridNodeCount()))
		assert.ErrorIs(t, err, ErrStaleMapping)
	}
	assert.NoError(t, gd.SetupPointwiseInterpolation(1.e-10))
	assert.Equal(t, m.ElementCount(), len(gd.ElementsOnGrid))

	// the P1 interpolation operators reproduce linear fields exactly at
	// the mesh nodes
	f := func(p geom.Point) float64 { return 2*p.X + 3*p.Y + 1 }
	g := fillField(gd, f)
	meshVals, err := gd.RemapGridToMesh(g)
	assert.NoError(t, err)
	for i, nd := range m.Nodes {
		assert.InDelta(t, f(nd), meshVals.AtVec(i), 1.e-9)
	}

	// residual against the remap itself is zero
	residual, err := gd.RemapResidual(g, meshVals)
	assert.NoError(t, err)
	assert.True(t, residual.MaxAbs() < 1.e-9)

	// mismatched reference length is rejected
	_, err = gd.RemapResidual(g, utils.NewVector(1))
	assert.ErrorIs(t, err, ErrGeometryMismatch)
}

func TestGridDepositorDeposit(t *testing.T) {
	var (
		m      = testMesh(t, 16)
		q      = 1.e-9
		b, err = SingleBrick(m, 2)
	)
	assert.NoError(t, err)
	gd, err := NewGridDepositor(m, []geom.Brick{b})
	assert.NoError(t, err)

	// grid deposition without a shape function fails
	{
		_, err = gd.DepositGridRho([]Particle{{Charge: q}})
		assert.ErrorIs(t, err, ErrNoShapeFunction)
	}
	gd.SetShapeFunction(testShape(t, 0.3))
	var groupErr error
	gd.AverageGroups, groupErr = BuildAverageGroups(gd.Bricks)
	assert.NoError(t, groupErr)
	assert.Equal(t, 0, gd.AverageGroups.NumRows()) // single brick has no seams

	assert.NoError(t, gd.SetupPointwiseInterpolation(1.e-10))

	// zero particles produce all-zero grid and mesh outputs
	{
		g, err := gd.DepositGridRho(nil)
		assert.NoError(t, err)
		assert.Equal(t, 0., g.MaxAbs())
		rho, err := gd.DepositRho(nil)
		assert.NoError(t, err)
		assert.Equal(t, 0., rho.MaxAbs())
	}

	// grid deposit then remap approximately conserves charge
	{
		p := Particle{ID: 0, Pos: geom.Point{X: 0.05, Y: 0.1}, Vel: geom.Point{X: 1, Y: 2}, Charge: q}
		rho, jx, jy, err := gd.DepositDensities([]Particle{p})
		assert.NoError(t, err)
		assert.InDelta(t, q, m.Integral(rho), 0.25*q)
		assert.InDelta(t, m.Integral(rho), m.Integral(jx), 1.e-9*q)
		assert.InDelta(t, 2*m.Integral(rho), m.Integral(jy), 1.e-9*q)
	}

	// a particle missing the grid entirely is counted
	{
		before := gd.OutsideParticleCount()
		rho, err := gd.DepositRho([]Particle{{Pos: geom.Point{X: 5, Y: 5}, Charge: q}})
		assert.NoError(t, err)
		assert.Equal(t, 0., rho.MaxAbs())
		assert.Equal(t, before+1, gd.OutsideParticleCount())
	}
}

func TestGridDepositorValidation(t *testing.T) {
	m := testMesh(t, 4)
	// bricks must be contiguous in start index
	b0, _ := geom.NewBrick(0, 0, geom.Point{X: -1, Y: -1}, geom.Point{X: 0.5, Y: 0.5}, [2]int{5, 5})
	b1, _ := geom.NewBrick(1, 99, geom.Point{X: -1, Y: -1}, geom.Point{X: 0.5, Y: 0.5}, [2]int{5, 5})
	_, err := NewGridDepositor(m, []geom.Brick{b0, b1})
	assert.ErrorIs(t, err, ErrGeometryMismatch)
}

func TestAverageGroups(t *testing.T) {
	// two bricks sharing the seam column x = 1
	b0, err := geom.NewBrick(0, 0, geom.Point{X: 0, Y: 0}, geom.Point{X: 0.5, Y: 0.5}, [2]int{3, 3})
	assert.NoError(t, err)
	b1, err := geom.NewBrick(1, b0.NodeCount(), geom.Point{X: 1, Y: 0}, geom.Point{X: 0.5, Y: 0.5}, [2]int{3, 3})
	assert.NoError(t, err)

	groups, err := BuildAverageGroups([]geom.Brick{b0, b1})
	assert.NoError(t, err)
	assert.Equal(t, 3, groups.NumRows())
	for gi := 0; gi < groups.NumRows(); gi++ {
		assert.Len(t, groups.Row(gi), 2)
	}

	m, err := mesh.NewRectMesh(geom.NewBox(geom.Point{X: 0, Y: 0}, geom.Point{X: 2, Y: 1}), 4, 2)
	assert.NoError(t, err)
	gd, err := NewGridDepositor(m, []geom.Brick{b0, b1})
	assert.NoError(t, err)
	gd.AverageGroups = groups

	// averaging equalizes the seam values and preserves their sum
	g := utils.NewVector(b0.NodeCount() + b1.NodeCount())
	for gi := 0; gi < groups.NumRows(); gi++ {
		row := groups.Row(gi)
		g.Set(row[0], 1)
		g.Set(row[1], 3)
	}
	gd.ApplyAverageGroups(g)
	for gi := 0; gi < groups.NumRows(); gi++ {
		row := groups.Row(gi)
		assert.Equal(t, 2., g.AtVec(row[0]))
		assert.Equal(t, 2., g.AtVec(row[1]))
	}
}

func TestGridFindMatchesShape(t *testing.T) {
	var (
		m      = testMesh(t, 8)
		q      = 1.e-9
		sf     = testShape(t, 0.35)
		b, err = SingleBrick(m, 2)
	)
	assert.NoError(t, err)
	gf := NewGridFindDepositor(m, []geom.Brick{b})
	gf.SetShapeFunction(sf)

	// deposit against a never-built mapping fails
	{
		_, err = gf.DepositRho([]Particle{{Charge: q}})
		assert.ErrorIs(t, err, ErrStaleMapping)
	}
	assert.NoError(t, gf.SetupNodeNumberLists())

	// the precomputed node lists recover exactly the direct scatter
	sd := NewShapeDepositor(m)
	sd.SetShapeFunction(sf)
	ps := []Particle{
		{ID: 0, Pos: geom.Point{X: 0.05, Y: 0.1}, Vel: geom.Point{X: 1, Y: -1}, Charge: q},
		{ID: 1, Pos: geom.Point{X: -0.4, Y: 0.3}, Vel: geom.Point{X: 0, Y: 1}, Charge: 2 * q},
	}
	rhoG, jxG, jyG, err := gf.DepositDensities(ps)
	assert.NoError(t, err)
	rhoS, jxS, jyS, err := sd.DepositDensities(ps)
	assert.NoError(t, err)
	assert.True(t, nearVec(rhoS.RawVector().Data, rhoG.RawVector().Data, 1.e-12))
	assert.True(t, nearVec(jxS.RawVector().Data, jxG.RawVector().Data, 1.e-12))
	assert.True(t, nearVec(jyS.RawVector().Data, jyG.RawVector().Data, 1.e-12))

	// missing the grid is counted, not an error
	{
		before := gf.OutsideParticleCount()
		_, err = gf.DepositRho([]Particle{{Pos: geom.Point{X: 5, Y: 5}, Charge: q}})
		assert.NoError(t, err)
		assert.Equal(t, before+1, gf.OutsideParticleCount())
	}
}
