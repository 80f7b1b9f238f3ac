package deposit

import (
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/shapefn"
	"github.com/notargets/gopic/utils"
)

/*
ShapeDepositor accumulates each particle's shape-function footprint
directly into the mesh DOF arrays: for every DOF node within the support
radius, the kernel value scaled by charge (and velocity for current) is
added. Accumulation is purely additive, so the result is independent of
particle order up to floating point summation.
*/
type ShapeDepositor struct {
	Mesh    *mesh.Mesh
	sf      shapefn.ShapeFunction
	haveSF  bool
	outside uint64
}

func NewShapeDepositor(m *mesh.Mesh) *ShapeDepositor {
	return &ShapeDepositor{Mesh: m}
}

func (sd *ShapeDepositor) SetShapeFunction(sf shapefn.ShapeFunction) {
	sd.sf = sf
	sd.haveSF = true
}

func (sd *ShapeDepositor) OutsideParticleCount() uint64 {
	return sd.outside
}

// scatter walks the DOF nodes of all elements meeting the particle's
// support disk and hands (dof, kernelWeight) pairs to accum. It reports
// whether any DOF received weight.
func (sd *ShapeDepositor) scatter(p Particle, accum func(dof int, w float64)) (touched bool) {
	var (
		m = sd.Mesh
		r = sd.sf.Radius()
	)
	for _, el := range m.ElementsInDisk(p.Pos, r) {
		e := &m.Elements[el]
		for i := 0; i < mesh.Np; i++ {
			dof := e.Start + i
			w := sd.sf.Eval(m.Nodes[dof].DistSq(p.Pos))
			if w != 0 {
				accum(dof, w)
				touched = true
			}
		}
	}
	return
}

func (sd *ShapeDepositor) DepositRho(particles []Particle) (rho utils.Vector, err error) {
	rho = utils.NewVector(sd.Mesh.NodeCount())
	if !sd.haveSF {
		err = ErrNoShapeFunction
		return
	}
	for _, p := range particles {
		q := p.Charge
		if !sd.scatter(p, func(dof int, w float64) {
			rho.AddAt(dof, w*q)
		}) {
			sd.outside++
		}
	}
	return
}

func (sd *ShapeDepositor) DepositJ(particles []Particle) (jx, jy utils.Vector, err error) {
	jx = utils.NewVector(sd.Mesh.NodeCount())
	jy = utils.NewVector(sd.Mesh.NodeCount())
	if !sd.haveSF {
		err = ErrNoShapeFunction
		return
	}
	for _, p := range particles {
		qvx, qvy := p.Charge*p.Vel.X, p.Charge*p.Vel.Y
		if !sd.scatter(p, func(dof int, w float64) {
			jx.AddAt(dof, w*qvx)
			jy.AddAt(dof, w*qvy)
		}) {
			sd.outside++
		}
	}
	return
}

func (sd *ShapeDepositor) DepositDensities(particles []Particle) (rho, jx, jy utils.Vector, err error) {
	rho = utils.NewVector(sd.Mesh.NodeCount())
	jx = utils.NewVector(sd.Mesh.NodeCount())
	jy = utils.NewVector(sd.Mesh.NodeCount())
	if !sd.haveSF {
		err = ErrNoShapeFunction
		return
	}
	for _, p := range particles {
		var (
			q        = p.Charge
			qvx, qvy = q * p.Vel.X, q * p.Vel.Y
		)
		if !sd.scatter(p, func(dof int, w float64) {
			rho.AddAt(dof, w*q)
			jx.AddAt(dof, w*qvx)
			jy.AddAt(dof, w*qvy)
		}) {
			sd.outside++
		}
	}
	return
}
