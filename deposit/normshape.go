package deposit

import (
	"math"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/shapefn"
	"github.com/notargets/gopic/utils"
)

/*
NormalizedShapeDepositor wraps ShapeDepositor with a per-particle
normalization pass: the raw footprint is integrated over the touched
elements and rescaled so the deposited charge equals the particle charge
exactly, correcting partial-element coverage and kernel truncation error.

Per particle, the applied normalization factor, the distance from the
particle to the centroid of its covered region and the number of elements
touched are folded into the running statistics. A factor that comes out
zero or non-finite (degenerate support) is recorded and the raw footprint
is kept unnormalized; a single degenerate particle never aborts the pass.
*/
type NormalizedShapeDepositor struct {
	*ShapeDepositor

	NormalizationStats    StatsGatherer
	CentroidDistanceStats StatsGatherer
	ElementsPerParticle   StatsGatherer
	DegenerateCount       uint64

	intWeights  utils.Vector // per-local-node integration weights
	setup       bool
	scratch     []float64
	touchedDOFs []int
}

func NewNormalizedShapeDepositor(m *mesh.Mesh) *NormalizedShapeDepositor {
	return &NormalizedShapeDepositor{
		ShapeDepositor: NewShapeDepositor(m),
		scratch:        make([]float64, m.NodeCount()),
	}
}

// SetupNormalizedShape precomputes the nodal integration weights from the
// reference mass matrix. Call once per geometry configuration and again
// whenever the mesh or the local basis changes.
func (nd *NormalizedShapeDepositor) SetupNormalizedShape(refMass utils.Matrix) {
	nd.intWeights = refMass.RowSums()
	nd.setup = true
}

func (nd *NormalizedShapeDepositor) SetShapeFunction(sf shapefn.ShapeFunction) {
	nd.ShapeDepositor.SetShapeFunction(sf)
}

// depositOne raw-deposits p into the scratch array, computes the
// normalization factor and covered-region centroid, updates the running
// statistics and streams the corrected values to accum.
func (nd *NormalizedShapeDepositor) depositOne(p Particle, accum func(dof int, v float64)) (touched bool) {
	var (
		m = nd.Mesh
	)
	nd.touchedDOFs = nd.touchedDOFs[:0]
	touched = nd.scatter(p, func(dof int, w float64) {
		if nd.scratch[dof] == 0 {
			nd.touchedDOFs = append(nd.touchedDOFs, dof)
		}
		nd.scratch[dof] += w
	})
	if !touched {
		return
	}

	var (
		integral   float64
		wsum       float64
		centroid   geom.Point
		elsTouched int
		lastEl     = -1
	)
	for _, dof := range nd.touchedDOFs {
		el := dof / mesh.Np
		if el != lastEl {
			elsTouched++
			lastEl = el
		}
		w := nd.scratch[dof]
		integral += m.Elements[el].Jacobian * nd.intWeights.AtVec(dof%mesh.Np) * w
		centroid = centroid.Add(m.Nodes[dof].Scale(w))
		wsum += w
	}

	factor := p.Charge / integral
	if math.IsNaN(factor) || math.IsInf(factor, 0) || integral <= 0 {
		nd.DegenerateCount++
		factor = p.Charge
	}
	nd.NormalizationStats.Add(factor)
	nd.CentroidDistanceStats.Add(centroid.Scale(1 / wsum).Sub(p.Pos).Norm())
	nd.ElementsPerParticle.Add(float64(elsTouched))

	for _, dof := range nd.touchedDOFs {
		accum(dof, factor*nd.scratch[dof])
		nd.scratch[dof] = 0
	}
	return
}

func (nd *NormalizedShapeDepositor) DepositRho(particles []Particle) (rho utils.Vector, err error) {
	rho = utils.NewVector(nd.Mesh.NodeCount())
	if err = nd.checkReady(); err != nil {
		return
	}
	for _, p := range particles {
		if !nd.depositOne(p, func(dof int, v float64) {
			rho.AddAt(dof, v)
		}) {
			nd.outside++
		}
	}
	return
}

func (nd *NormalizedShapeDepositor) DepositJ(particles []Particle) (jx, jy utils.Vector, err error) {
	jx = utils.NewVector(nd.Mesh.NodeCount())
	jy = utils.NewVector(nd.Mesh.NodeCount())
	if err = nd.checkReady(); err != nil {
		return
	}
	for _, p := range particles {
		vx, vy := p.Vel.X, p.Vel.Y
		if !nd.depositOne(p, func(dof int, v float64) {
			jx.AddAt(dof, v*vx)
			jy.AddAt(dof, v*vy)
		}) {
			nd.outside++
		}
	}
	return
}

func (nd *NormalizedShapeDepositor) DepositDensities(particles []Particle) (rho, jx, jy utils.Vector, err error) {
	rho = utils.NewVector(nd.Mesh.NodeCount())
	jx = utils.NewVector(nd.Mesh.NodeCount())
	jy = utils.NewVector(nd.Mesh.NodeCount())
	if err = nd.checkReady(); err != nil {
		return
	}
	for _, p := range particles {
		vx, vy := p.Vel.X, p.Vel.Y
		if !nd.depositOne(p, func(dof int, v float64) {
			rho.AddAt(dof, v)
			jx.AddAt(dof, v*vx)
			jy.AddAt(dof, v*vy)
		}) {
			nd.outside++
		}
	}
	return
}

func (nd *NormalizedShapeDepositor) checkReady() error {
	if !nd.haveSF {
		return ErrNoShapeFunction
	}
	if !nd.setup {
		return ErrStaleMapping
	}
	return nil
}
