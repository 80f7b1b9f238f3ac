package deposit

import (
	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/shapefn"
	"github.com/notargets/gopic/utils"
)

/*
GridFindDepositor produces the same mesh outputs as GridDepositor for a
static geometry, but replaces the per-call geometric point location with a
mapping built once: for each overlay-grid node, the mesh DOF nodes inside
its cell neighborhood, stored in the CSR node-number-list layout. The
kernel is then evaluated directly at the mapped mesh nodes.

The mapping is immutable for the lifetime of the grid configuration; any
mesh or brick change requires the caller to rebuild it. Depositing against
a never-built mapping fails with ErrStaleMapping rather than producing
silently wrong output.
*/
type GridFindDepositor struct {
	Mesh   *mesh.Mesh
	Bricks []geom.Brick

	NodeNumberLists utils.CSRTable

	sf      shapefn.ShapeFunction
	haveSF  bool
	built   bool
	stamp   int
	visited []int
	outside uint64
}

func NewGridFindDepositor(m *mesh.Mesh, bricks []geom.Brick) *GridFindDepositor {
	return &GridFindDepositor{
		Mesh:    m,
		Bricks:  bricks,
		visited: make([]int, m.NodeCount()),
	}
}

func (gf *GridFindDepositor) SetShapeFunction(sf shapefn.ShapeFunction) {
	gf.sf = sf
	gf.haveSF = true
}

func (gf *GridFindDepositor) OutsideParticleCount() uint64 { return gf.outside }

func (gf *GridFindDepositor) GridNodeCount() (count int) {
	for _, b := range gf.Bricks {
		count += b.NodeCount()
	}
	return
}

/*
SetupNodeNumberLists builds the grid-node to mesh-node mapping: every mesh
DOF node registers itself with all grid nodes within one cell step, so a
particle support walk over grid nodes recovers every mesh node the direct
shape deposition would reach.
*/
func (gf *GridFindDepositor) SetupNodeNumberLists() error {
	lists := make([][]int, gf.GridNodeCount())
	for dof, node := range gf.Mesh.Nodes {
		for _, b := range gf.Bricks {
			box := geom.NewBox(
				geom.Point{X: node.X - b.StepWidths.X, Y: node.Y - b.StepWidths.Y},
				geom.Point{X: node.X + b.StepWidths.X, Y: node.Y + b.StepWidths.Y})
			ir, ok := b.IndexRange(box)
			if !ok {
				continue
			}
			b.Visit(ir, func(i, j int, pt geom.Point, gridIndex int) {
				lists[gridIndex] = append(lists[gridIndex], dof)
			})
		}
	}
	var (
		starts = utils.NewIndex(len(lists) + 1)
		values utils.Index
	)
	for gi, l := range lists {
		values = append(values, l...)
		starts[gi+1] = len(values)
	}
	var err error
	if gf.NodeNumberLists, err = utils.NewCSRTable(starts, values); err != nil {
		return err
	}
	gf.built = true
	return nil
}

// scatter evaluates the kernel at every mesh node reachable through the
// node number lists of the grid nodes within the particle's support,
// deduplicated with a visit stamp.
func (gf *GridFindDepositor) scatter(p Particle, accum func(dof int, w float64)) (touched bool) {
	var (
		r   = gf.sf.Radius()
		box = geom.NewBox(
			geom.Point{X: p.Pos.X - r, Y: p.Pos.Y - r},
			geom.Point{X: p.Pos.X + r, Y: p.Pos.Y + r})
	)
	gf.stamp++
	for _, b := range gf.Bricks {
		ir, ok := b.IndexRange(box)
		if !ok {
			continue
		}
		b.Visit(ir, func(i, j int, pt geom.Point, gridIndex int) {
			for _, dof := range gf.NodeNumberLists.Row(gridIndex) {
				if gf.visited[dof] == gf.stamp {
					continue
				}
				gf.visited[dof] = gf.stamp
				if w := gf.sf.Eval(gf.Mesh.Nodes[dof].DistSq(p.Pos)); w != 0 {
					accum(dof, w)
					touched = true
				}
			}
		})
	}
	return
}

func (gf *GridFindDepositor) checkReady() error {
	if !gf.haveSF {
		return ErrNoShapeFunction
	}
	if !gf.built {
		return ErrStaleMapping
	}
	return nil
}

func (gf *GridFindDepositor) DepositRho(particles []Particle) (rho utils.Vector, err error) {
	rho = utils.NewVector(gf.Mesh.NodeCount())
	if err = gf.checkReady(); err != nil {
		return
	}
	for _, p := range particles {
		q := p.Charge
		if !gf.scatter(p, func(dof int, w float64) {
			rho.AddAt(dof, w*q)
		}) {
			gf.outside++
		}
	}
	return
}

func (gf *GridFindDepositor) DepositJ(particles []Particle) (jx, jy utils.Vector, err error) {
	jx = utils.NewVector(gf.Mesh.NodeCount())
	jy = utils.NewVector(gf.Mesh.NodeCount())
	if err = gf.checkReady(); err != nil {
		return
	}
	for _, p := range particles {
		qvx, qvy := p.Charge*p.Vel.X, p.Charge*p.Vel.Y
		if !gf.scatter(p, func(dof int, w float64) {
			jx.AddAt(dof, w*qvx)
			jy.AddAt(dof, w*qvy)
		}) {
			gf.outside++
		}
	}
	return
}

func (gf *GridFindDepositor) DepositDensities(particles []Particle) (rho, jx, jy utils.Vector, err error) {
	rho = utils.NewVector(gf.Mesh.NodeCount())
	jx = utils.NewVector(gf.Mesh.NodeCount())
	jy = utils.NewVector(gf.Mesh.NodeCount())
	if err = gf.checkReady(); err != nil {
		return
	}
	for _, p := range particles {
		var (
			q        = p.Charge
			qvx, qvy = q * p.Vel.X, q * p.Vel.Y
		)
		if !gf.scatter(p, func(dof int, w float64) {
			rho.AddAt(dof, w*q)
			jx.AddAt(dof, w*qvx)
			jy.AddAt(dof, w*qvy)
		}) {
			gf.outside++
		}
	}
	return
}
