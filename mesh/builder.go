package mesh

import (
	"fmt"
	"math"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/utils"
)

/*
NewMesh assembles the element table from vertex coordinates and triangle
vertex indices. Triangle orientation is normalized to counterclockwise so
that the face normals computed here point outward.

The DOF numbering is discontinuous: Np consecutive DOFs per element, node
coordinates coincident with the element vertices.
*/
func NewMesh(verts []geom.Point, tris [][3]int) (m *Mesh, err error) {
	var (
		K = len(tris)
	)
	if K == 0 {
		err = fmt.Errorf("mesh has no elements")
		return
	}
	oriented := make([][3]int, K)
	copy(oriented, tris)
	for k := range oriented {
		v0, v1, v2 := verts[oriented[k][0]], verts[oriented[k][1]], verts[oriented[k][2]]
		if cross(v1.Sub(v0), v2.Sub(v0)) < 0 {
			oriented[k][1], oriented[k][2] = oriented[k][2], oriented[k][1]
		}
	}

	m = &Mesh{
		Elements: make([]ElementInfo, K),
		Verts:    verts,
		Nodes:    make([]geom.Point, 0, Np*K),
		Ref:      NewRefTriangle(),
	}

	neighbors := buildNeighbors(oriented, len(verts))

	for k := 0; k < K; k++ {
		var (
			e          = &m.Elements[k]
			v0, v1, v2 = verts[oriented[k][0]], verts[oriented[k][1]], verts[oriented[k][2]]
		)
		e.ID = k
		e.Verts = oriented[k]
		e.Start = Np * k
		e.End = Np*k + Np
		if e.Map, err = geom.NewAffineMap(v1.Sub(v0), v2.Sub(v0), v0); err != nil {
			err = fmt.Errorf("element %d: %v", k, err)
			return
		}
		e.Jacobian = math.Abs(e.Map.Det)
		for face := 0; face < 3; face++ {
			var (
				a    = verts[e.Verts[FaceVertices[face][0]]]
				b    = verts[e.Verts[FaceVertices[face][1]]]
				edge = b.Sub(a)
			)
			e.FaceLengths[face] = edge.Norm()
			// CCW orientation puts the outward normal at (edge.Y, -edge.X)
			e.FaceNormals[face] = geom.Point{X: edge.Y, Y: -edge.X}.Scale(1. / e.FaceLengths[face])
			e.Neighbors[face] = neighbors[k][face]
			e.FaceNodeMap[face] = [2]int{-1, -1}
		}
		m.Nodes = append(m.Nodes, v0, v1, v2)
	}

	// align face nodes with the neighbor's local numbering via shared
	// global vertices
	for k := 0; k < K; k++ {
		e := &m.Elements[k]
		for face := 0; face < 3; face++ {
			n := e.Neighbors[face]
			if n == InvalidElement {
				continue
			}
			for fn := 0; fn < 2; fn++ {
				gv := e.Verts[FaceVertices[face][fn]]
				for ln := 0; ln < 3; ln++ {
					if m.Elements[n].Verts[ln] == gv {
						e.FaceNodeMap[face][fn] = ln
					}
				}
			}
		}
	}

	if m.VertexAdj, err = buildVertexAdjacency(oriented, len(verts)); err != nil {
		return
	}
	return
}

// buildVertexAdjacency produces the vertex-to-element table in the CSR
// starts/values layout shared with the grid depositors.
func buildVertexAdjacency(tris [][3]int, nVerts int) (adj utils.CSRTable, err error) {
	lists := make([][]int, nVerts)
	for k, tri := range tris {
		for _, v := range tri {
			lists[v] = append(lists[v], k)
		}
	}
	var (
		starts = utils.NewIndex(nVerts + 1)
		values utils.Index
	)
	for v, l := range lists {
		values = append(values, l...)
		starts[v+1] = len(values)
	}
	return utils.NewCSRTable(starts, values)
}

/*
NewRectMesh builds a structured triangulation of the box with nx by ny
quads split along their diagonals, standing in for an externally generated
mesh in the drivers and tests.
*/
func NewRectMesh(box geom.Box, nx, ny int) (m *Mesh, err error) {
	if nx < 1 || ny < 1 {
		err = fmt.Errorf("rect mesh needs nx, ny >= 1, got %d, %d", nx, ny)
		return
	}
	var (
		dx    = (box.Upper.X - box.Lower.X) / float64(nx)
		dy    = (box.Upper.Y - box.Lower.Y) / float64(ny)
		verts = make([]geom.Point, 0, (nx+1)*(ny+1))
		tris  = make([][3]int, 0, 2*nx*ny)
	)
	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			verts = append(verts, geom.Point{
				X: box.Lower.X + float64(i)*dx,
				Y: box.Lower.Y + float64(j)*dy,
			})
		}
	}
	vid := func(i, j int) int { return i*(ny+1) + j }
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			tris = append(tris,
				[3]int{vid(i, j), vid(i+1, j), vid(i+1, j+1)},
				[3]int{vid(i, j), vid(i+1, j+1), vid(i, j+1)})
		}
	}
	return NewMesh(verts, tris)
}

func cross(a, b geom.Point) float64 {
	return a.X*b.Y - a.Y*b.X
}
