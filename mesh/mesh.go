package mesh

import (
	"math"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/utils"
)

// InvalidElement marks the absence of a neighbor across a boundary face.
const InvalidElement = -1

/*
ElementInfo is the per-element record the depositors consume: the DOF range
into the global (discontinuous) node numbering, the affine map to unit
coordinates, geometric factors and face-aligned neighbor data.

FaceNodeMap[f] holds, for each of the two face nodes (local vertices
FaceVertices[f]), the neighbor's local node index carrying the same global
vertex; -1 on boundary faces.
*/
type ElementInfo struct {
	ID          int
	Start, End  int // DOF index range [Start, End)
	Verts       [3]int
	Map         geom.AffineMap
	Jacobian    float64
	FaceNormals [3]geom.Point
	FaceLengths [3]float64
	Neighbors   [3]int
	FaceNodeMap [3][2]int
}

type Mesh struct {
	Elements  []ElementInfo
	Verts     []geom.Point
	Nodes     []geom.Point // DOF node coordinates, Np per element
	VertexAdj utils.CSRTable
	Ref       *RefTriangle
}

func (m *Mesh) NodeCount() int {
	return len(m.Nodes)
}

func (m *Mesh) ElementCount() int {
	return len(m.Elements)
}

// IsInElement tests pt against the unit coordinates of element el, with tol
// allowing points just outside the edges to count as inside.
func (m *Mesh) IsInElement(el int, pt geom.Point, tol float64) bool {
	u := m.Elements[el].Map.ApplyInverse(pt)
	return u.X >= -tol && u.Y >= -tol && u.X+u.Y <= 1+tol
}

/*
FindElement locates the element containing pt, or InvalidElement when pt
lies outside the mesh. A walk through the vertex adjacency descends the
centroid distance to pt from a seed element; points the walk cannot reach
(outside the mesh, or past a concavity) fall back to the exhaustive scan.
*/
func (m *Mesh) FindElement(pt geom.Point, tol float64) int {
	if len(m.Elements) == 0 {
		return InvalidElement
	}
	var (
		cur  = 0
		dist = m.ElementCentroid(cur).DistSq(pt)
	)
	for steps := 0; steps <= len(m.Elements); steps++ {
		if m.IsInElement(cur, pt, tol) {
			return cur
		}
		next, nextDist := cur, dist
		for _, vi := range m.Elements[cur].Verts {
			for _, adj := range m.VertexAdj.Row(vi) {
				if d := m.ElementCentroid(adj).DistSq(pt); d < nextDist {
					next, nextDist = adj, d
				}
			}
		}
		if next == cur {
			break
		}
		cur, dist = next, nextDist
	}
	return m.findElementExhaustive(pt, tol)
}

func (m *Mesh) findElementExhaustive(pt geom.Point, tol float64) int {
	for i := range m.Elements {
		if !m.ElementBoundingBox(i).Enlarge(tol).Contains(pt) {
			continue
		}
		if m.IsInElement(i, pt, tol) {
			return i
		}
	}
	return InvalidElement
}

func (m *Mesh) ElementBoundingBox(el int) geom.Box {
	var (
		e  = &m.Elements[el]
		v0 = m.Verts[e.Verts[0]]
		lo = v0
		hi = v0
	)
	for _, vi := range e.Verts[1:] {
		v := m.Verts[vi]
		lo = geom.Point{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y)}
		hi = geom.Point{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y)}
	}
	return geom.NewBox(lo, hi)
}

func (m *Mesh) ElementCentroid(el int) geom.Point {
	var (
		e = &m.Elements[el]
		c geom.Point
	)
	for _, vi := range e.Verts {
		c = c.Add(m.Verts[vi])
	}
	return c.Scale(1. / 3.)
}

// ElementsInDisk returns the IDs of elements whose bounding box meets the
// disk of radius r about center. Over-inclusion is harmless to the kernel
// scatter loops, which see zero weight outside the support.
func (m *Mesh) ElementsInDisk(center geom.Point, r float64) (els utils.Index) {
	for i := range m.Elements {
		if m.ElementBoundingBox(i).IntersectsDisk(center, r) {
			els = append(els, i)
		}
	}
	return
}

// ElementIntegral computes the integral of a nodal field over element el
// via the mass matrix row sums scaled by the jacobian.
func (m *Mesh) ElementIntegral(el int, dof utils.Vector) (sum float64) {
	var (
		e = &m.Elements[el]
	)
	for i := 0; i < Np; i++ {
		sum += dof.AtVec(e.Start + i)
	}
	// row sums of the reference mass matrix are all 1/6
	return sum * e.Jacobian / 6.
}

// Integral computes the mesh-wide integral of a DOF vector.
func (m *Mesh) Integral(dof utils.Vector) (sum float64) {
	for i := range m.Elements {
		sum += m.ElementIntegral(i, dof)
	}
	return
}
