package deposit

import (
	"fmt"
	"math"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/shapefn"
	"github.com/notargets/gopic/utils"
	"gonum.org/v1/gonum/mat"
)

// ElementOnGrid ties a mesh element to the overlay-grid nodes inside it
// and the interpolation operator taking their values to the element's
// nodal DOFs.
type ElementOnGrid struct {
	ElementID     int
	GridNodes     utils.Index
	Interpolation utils.Matrix // Np x len(GridNodes)
}

/*
GridDepositor deposits particle quantities onto a structured overlay grid
composed of one or more bricks, then remaps the grid values back onto the
unstructured mesh through per-element pseudoinverse interpolation
operators prepared once per geometry.

Average groups resolve double-counted values at brick seams and are
applied after raw grid deposition and before remap; remapping ungrouped
raw values would carry seam artifacts onto the mesh.

Extra points are auxiliary sample locations appended past the regular
grid nodes wherever the regular nodes alone leave an element's structured
Vandermonde matrix singular.
*/
type GridDepositor struct {
	Mesh   *mesh.Mesh
	Bricks []geom.Brick

	FirstExtraPoint       int
	ExtraPoints           []geom.Point
	ExtraPointBrickStarts utils.Index

	AverageGroups utils.CSRTable

	ElementsOnGrid []ElementOnGrid

	sf       shapefn.ShapeFunction
	haveSF   bool
	prepared bool
	outside  uint64
}

func NewGridDepositor(m *mesh.Mesh, bricks []geom.Brick) (gd *GridDepositor, err error) {
	var start int
	for i, b := range bricks {
		if b.StartIndex != start {
			err = fmt.Errorf("%w: brick %d start index %d, want %d",
				ErrGeometryMismatch, i, b.StartIndex, start)
			return
		}
		start += b.NodeCount()
	}
	gd = &GridDepositor{
		Mesh:                  m,
		Bricks:                bricks,
		FirstExtraPoint:       start,
		ExtraPointBrickStarts: utils.NewIndex(len(bricks) + 1),
	}
	return
}

func (gd *GridDepositor) SetShapeFunction(sf shapefn.ShapeFunction) {
	gd.sf = sf
	gd.haveSF = true
}

func (gd *GridDepositor) OutsideParticleCount() uint64 { return gd.outside }

// GridNodeCount is the total node count across all bricks plus the extra
// points.
func (gd *GridDepositor) GridNodeCount() int {
	return gd.FirstExtraPoint + len(gd.ExtraPoints)
}

// FindPointsInElement returns the regular grid points lying inside
// element el, with their flattened grid indices.
func (gd *GridDepositor) FindPointsInElement(el int, tol float64) (points []geom.Point, indices utils.Index) {
	bbox := gd.Mesh.ElementBoundingBox(el).Enlarge(tol)
	for _, brk := range gd.Bricks {
		ir, ok := brk.IndexRange(bbox)
		if !ok {
			continue
		}
		brk.Visit(ir, func(i, j int, pt geom.Point, gridIndex int) {
			if gd.Mesh.IsInElement(el, pt, tol) {
				points = append(points, pt)
				indices = append(indices, gridIndex)
			}
		})
	}
	return
}

/*
SetupPointwiseInterpolation prepares, per element, the interpolation
operator from covering grid-point values to nodal DOF values: the
pseudoinverse of the structured Vandermonde matrix (basis functions
evaluated at the in-element grid points). Zero singular values mean some
mode vanishes on the structured points; the element node carrying that
mode's extremum is appended as an extra point and the factorization
retried, up to five rounds.
*/
func (gd *GridDepositor) SetupPointwiseInterpolation(tol float64) error {
	var (
		m             = gd.Mesh
		gridNodeCount = gd.FirstExtraPoint
		// per brick: extra points waiting for final index assignment
		epBrickMap = make(map[int][]pendingExtraPoint)
	)
	gd.ElementsOnGrid = gd.ElementsOnGrid[:0]
	gd.ExtraPoints = gd.ExtraPoints[:0]

	for el := 0; el < m.ElementCount(); el++ {
		points, indices := gd.FindPointsInElement(el, tol)
		if len(points) < mesh.Np {
			return fmt.Errorf("%w: element %d has too few structured grid points (#nodes=%d #sgridpt=%d)",
				ErrGeometryMismatch, el, mesh.Np, len(points))
		}

		eog := ElementOnGrid{ElementID: el, GridNodes: indices}
		var (
			pinv    utils.Matrix
			epCount int
		)
		for {
			svdm := structuredVandermonde(m, el, points)
			var svd mat.SVD
			if !svd.Factorize(svdm.M, mat.SVDThin) {
				return fmt.Errorf("%w: SVD of structured Vandermonde failed, element %d",
					ErrGeometryMismatch, el)
			}
			s := svd.Values(nil)
			thresh := 2.220446049250313e-16 * float64(len(points)) * s[0]
			var zeroIndices []int
			for i, si := range s {
				if math.Abs(si) < thresh {
					zeroIndices = append(zeroIndices, i)
				}
			}
			if len(zeroIndices) == 0 {
				pinv = pseudoInverse(&svd, s, len(points))
				break
			}
			epCount += len(zeroIndices)
			if epCount > 5 {
				return fmt.Errorf("%w: could not regularize structured Vandermonde matrix, element %d",
					ErrGeometryMismatch, el)
			}
			var rsv mat.Dense
			svd.VTo(&rsv)
			for _, zi := range zeroIndices {
				// the zeroed mode, expressed nodally, peaks at the node
				// to add as an extra sample point
				maxNode, maxVal := 0, 0.
				for i := 0; i < mesh.Np; i++ {
					if v := math.Abs(rsv.At(i, zi)); v > maxVal {
						maxNode, maxVal = i, v
					}
				}
				newPoint := m.Nodes[m.Elements[el].Start+maxNode]
				bn, err := gd.findContainingBrick(newPoint)
				if err != nil {
					return err
				}
				epBrickMap[bn] = append(epBrickMap[bn], pendingExtraPoint{
					point: newPoint, element: el, slot: len(points),
				})
				points = append(points, newPoint)
				// final grid node number unknown until all bricks are
				// walked; placeholder patched below
				eog.GridNodes = append(eog.GridNodes, -1)
			}
		}
		eog.Interpolation = pinv
		gd.ElementsOnGrid = append(gd.ElementsOnGrid, eog)
	}

	// assign extra point indices in brick order and patch placeholders
	gd.ExtraPointBrickStarts = utils.NewIndex(len(gd.Bricks) + 1)
	for bi := range gd.Bricks {
		for _, pep := range epBrickMap[bi] {
			gd.ElementsOnGrid[pep.element].GridNodes[pep.slot] = gridNodeCount + len(gd.ExtraPoints)
			gd.ExtraPoints = append(gd.ExtraPoints, pep.point)
		}
		gd.ExtraPointBrickStarts[bi+1] = len(gd.ExtraPoints)
	}
	gd.prepared = true
	return nil
}

type pendingExtraPoint struct {
	point   geom.Point
	element int
	slot    int
}

func (gd *GridDepositor) findContainingBrick(pt geom.Point) (int, error) {
	for _, brk := range gd.Bricks {
		if brk.BoundingBox().Contains(pt) {
			return brk.Number, nil
		}
	}
	return 0, fmt.Errorf("%w: no containing brick found for point %v", ErrGeometryMismatch, pt)
}

// structuredVandermonde evaluates the element's basis functions at the
// unit-coordinate images of the given points.
func structuredVandermonde(m *mesh.Mesh, el int, points []geom.Point) (V utils.Matrix) {
	V = utils.NewMatrix(len(points), mesh.Np)
	for i, pt := range points {
		b := m.Ref.Basis(m.Elements[el].Map.ApplyInverse(pt))
		for j := 0; j < mesh.Np; j++ {
			V.Set(i, j, b[j])
		}
	}
	return
}

// pseudoInverse assembles V * diag(1/s) * U^T from a thin SVD; with the
// nodal P1 basis the reference Vandermonde is the identity, so this is
// directly the grid-to-nodal interpolation operator.
func pseudoInverse(svd *mat.SVD, s []float64, npts int) (R utils.Matrix) {
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	R = utils.NewMatrix(mesh.Np, npts)
	for i := 0; i < mesh.Np; i++ {
		for j := 0; j < npts; j++ {
			var sum float64
			for k := 0; k < len(s); k++ {
				if s[k] == 0 {
					continue
				}
				sum += v.At(i, k) / s[k] * u.At(j, k)
			}
			R.Set(i, j, sum)
		}
	}
	return
}

// scatterGrid walks grid nodes and extra points within the particle's
// support and hands (gridIndex, kernelWeight) pairs to accum.
func (gd *GridDepositor) scatterGrid(p Particle, accum func(idx int, w float64)) (touched bool) {
	var (
		r   = gd.sf.Radius()
		box = geom.NewBox(
			geom.Point{X: p.Pos.X - r, Y: p.Pos.Y - r},
			geom.Point{X: p.Pos.X + r, Y: p.Pos.Y + r})
	)
	for _, brk := range gd.Bricks {
		ir, ok := brk.IndexRange(box)
		if !ok {
			continue
		}
		brk.Visit(ir, func(i, j int, pt geom.Point, gridIndex int) {
			if w := gd.sf.Eval(pt.DistSq(p.Pos)); w != 0 {
				accum(gridIndex, w)
				touched = true
			}
		})
		// this brick's extra points, addressed through the CSR starts
		for k := gd.ExtraPointBrickStarts[brk.Number]; k < gd.ExtraPointBrickStarts[brk.Number+1]; k++ {
			if w := gd.sf.Eval(gd.ExtraPoints[k].DistSq(p.Pos)); w != 0 {
				accum(gd.FirstExtraPoint+k, w)
				touched = true
			}
		}
	}
	return
}

func (gd *GridDepositor) DepositGridRho(particles []Particle) (gRho utils.Vector, err error) {
	gRho = utils.NewVector(gd.GridNodeCount())
	if !gd.haveSF {
		err = ErrNoShapeFunction
		return
	}
	for _, p := range particles {
		q := p.Charge
		if !gd.scatterGrid(p, func(idx int, w float64) {
			gRho.AddAt(idx, w*q)
		}) {
			gd.outside++
		}
	}
	return
}

func (gd *GridDepositor) DepositGridJ(particles []Particle) (gJx, gJy utils.Vector, err error) {
	gJx = utils.NewVector(gd.GridNodeCount())
	gJy = utils.NewVector(gd.GridNodeCount())
	if !gd.haveSF {
		err = ErrNoShapeFunction
		return
	}
	for _, p := range particles {
		qvx, qvy := p.Charge*p.Vel.X, p.Charge*p.Vel.Y
		if !gd.scatterGrid(p, func(idx int, w float64) {
			gJx.AddAt(idx, w*qvx)
			gJy.AddAt(idx, w*qvy)
		}) {
			gd.outside++
		}
	}
	return
}

func (gd *GridDepositor) DepositGridDensities(particles []Particle) (gRho, gJx, gJy utils.Vector, err error) {
	gRho = utils.NewVector(gd.GridNodeCount())
	gJx = utils.NewVector(gd.GridNodeCount())
	gJy = utils.NewVector(gd.GridNodeCount())
	if !gd.haveSF {
		err = ErrNoShapeFunction
		return
	}
	for _, p := range particles {
		var (
			q        = p.Charge
			qvx, qvy = q * p.Vel.X, q * p.Vel.Y
		)
		if !gd.scatterGrid(p, func(idx int, w float64) {
			gRho.AddAt(idx, w*q)
			gJx.AddAt(idx, w*qvx)
			gJy.AddAt(idx, w*qvy)
		}) {
			gd.outside++
		}
	}
	return
}

// ApplyAverageGroups replaces every node value within each configured
// group by the group mean, resolving seam discontinuities between bricks.
func (gd *GridDepositor) ApplyAverageGroups(g utils.Vector) {
	for gi := 0; gi < gd.AverageGroups.NumRows(); gi++ {
		group := gd.AverageGroups.Row(gi)
		if len(group) == 0 {
			continue
		}
		var sum float64
		for _, idx := range group {
			sum += g.AtVec(idx)
		}
		avg := sum / float64(len(group))
		for _, idx := range group {
			g.Set(idx, avg)
		}
	}
}

// RemapGridToMesh interpolates grid-node values onto the mesh DOFs.
func (gd *GridDepositor) RemapGridToMesh(g utils.Vector) (meshVals utils.Vector, err error) {
	meshVals = utils.NewVector(gd.Mesh.NodeCount())
	if !gd.prepared {
		err = ErrStaleMapping
		return
	}
	for _, eog := range gd.ElementsOnGrid {
		var (
			e    = &gd.Mesh.Elements[eog.ElementID]
			vals = g.Subset(eog.GridNodes)
			nod  = eog.Interpolation.MulVec(vals)
		)
		for i := 0; i < mesh.Np; i++ {
			meshVals.Set(e.Start+i, nod.AtVec(i))
		}
	}
	return
}

// RemapResidual returns the difference between the grid-based
// reconstruction and a reference mesh field (typically a direct shape
// deposition), quantifying remap error for diagnostics.
func (gd *GridDepositor) RemapResidual(g, reference utils.Vector) (residual utils.Vector, err error) {
	if residual, err = gd.RemapGridToMesh(g); err != nil {
		return
	}
	if reference.Len() != residual.Len() {
		err = fmt.Errorf("%w: reference length %d, mesh DOF count %d",
			ErrGeometryMismatch, reference.Len(), residual.Len())
		return
	}
	for i := 0; i < residual.Len(); i++ {
		residual.AddAt(i, -reference.AtVec(i))
	}
	return
}

func (gd *GridDepositor) DepositRho(particles []Particle) (rho utils.Vector, err error) {
	var g utils.Vector
	if g, err = gd.DepositGridRho(particles); err != nil {
		rho = utils.NewVector(gd.Mesh.NodeCount())
		return
	}
	gd.ApplyAverageGroups(g)
	return gd.RemapGridToMesh(g)
}

func (gd *GridDepositor) DepositJ(particles []Particle) (jx, jy utils.Vector, err error) {
	var gx, gy utils.Vector
	if gx, gy, err = gd.DepositGridJ(particles); err != nil {
		jx = utils.NewVector(gd.Mesh.NodeCount())
		jy = utils.NewVector(gd.Mesh.NodeCount())
		return
	}
	gd.ApplyAverageGroups(gx)
	gd.ApplyAverageGroups(gy)
	if jx, err = gd.RemapGridToMesh(gx); err != nil {
		jy = utils.NewVector(gd.Mesh.NodeCount())
		return
	}
	jy, err = gd.RemapGridToMesh(gy)
	return
}

func (gd *GridDepositor) DepositDensities(particles []Particle) (rho, jx, jy utils.Vector, err error) {
	var g, gx, gy utils.Vector
	if g, gx, gy, err = gd.DepositGridDensities(particles); err != nil {
		rho = utils.NewVector(gd.Mesh.NodeCount())
		jx = utils.NewVector(gd.Mesh.NodeCount())
		jy = utils.NewVector(gd.Mesh.NodeCount())
		return
	}
	gd.ApplyAverageGroups(g)
	gd.ApplyAverageGroups(gx)
	gd.ApplyAverageGroups(gy)
	if rho, err = gd.RemapGridToMesh(g); err != nil {
		return
	}
	if jx, err = gd.RemapGridToMesh(gx); err != nil {
		return
	}
	jy, err = gd.RemapGridToMesh(gy)
	return
}
