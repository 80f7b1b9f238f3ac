package mesh

import (
	"fmt"
	"math"
	"testing"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/utils"
	"github.com/stretchr/testify/assert"
)

func TestRefTriangle(t *testing.T) {
	rt := NewRefTriangle()
	// mass integrates the basis over the unit triangle: row sums are 1/6,
	// total is the unit triangle area 1/2
	{
		rs := rt.Mass.RowSums()
		var total float64
		for i := 0; i < Np; i++ {
			assert.InDelta(t, 1./6., rs.AtVec(i), 1.e-14)
			total += rs.AtVec(i)
		}
		assert.InDelta(t, 0.5, total, 1.e-14)
	}
	// InvMass inverts Mass
	{
		P := rt.InvMass.Mul(rt.Mass)
		for i := 0; i < Np; i++ {
			for j := 0; j < Np; j++ {
				want := 0.
				if i == j {
					want = 1.
				}
				assert.InDelta(t, want, P.At(i, j), 1.e-12)
			}
		}
	}
	// Dr, Ds differentiate the linear basis exactly: u = 2r + 3s + 1 at the
	// nodes (0,0), (1,0), (0,1)
	{
		u := utils.NewVector(Np, []float64{1, 3, 4})
		du := rt.Dr.MulVec(u)
		for i := 0; i < Np; i++ {
			assert.InDelta(t, 2., du.AtVec(i), 1.e-14)
		}
		du = rt.Ds.MulVec(u)
		for i := 0; i < Np; i++ {
			assert.InDelta(t, 3., du.AtVec(i), 1.e-14)
		}
	}
	// basis is nodal and sums to one
	{
		b := rt.Basis(geom.Point{X: 0.25, Y: 0.5})
		assert.InDelta(t, 1., b[0]+b[1]+b[2], 1.e-14)
		assert.Equal(t, [3]float64{1, 0, 0}, rt.Basis(geom.Point{X: 0, Y: 0}))
		assert.Equal(t, [3]float64{0, 1, 0}, rt.Basis(geom.Point{X: 1, Y: 0}))
		assert.Equal(t, [3]float64{0, 0, 1}, rt.Basis(geom.Point{X: 0, Y: 1}))
	}
}

func TestMeshConnectivity(t *testing.T) {
	// unit square split along the diagonal: one interior face each
	verts := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	tris := [][3]int{{0, 1, 2}, {0, 2, 3}}
	m, err := NewMesh(verts, tris)
	assert.NoError(t, err)
	assert.Equal(t, 2, m.ElementCount())
	assert.Equal(t, 2*Np, m.NodeCount())

	for k := 0; k < 2; k++ {
		var interior int
		for face := 0; face < 3; face++ {
			if m.Elements[k].Neighbors[face] != InvalidElement {
				interior++
				assert.Equal(t, 1-k, m.Elements[k].Neighbors[face])
			}
		}
		assert.Equal(t, 1, interior)
	}

	// outward unit normals, opposite across the shared face
	for k := 0; k < 2; k++ {
		e := &m.Elements[k]
		c := m.ElementCentroid(k)
		for face := 0; face < 3; face++ {
			n := e.FaceNormals[face]
			assert.InDelta(t, 1., n.Norm(), 1.e-12)
			var (
				a   = m.Verts[e.Verts[FaceVertices[face][0]]]
				b   = m.Verts[e.Verts[FaceVertices[face][1]]]
				mid = a.Add(b).Scale(0.5)
			)
			assert.True(t, n.Dot(mid.Sub(c)) > 0,
				fmt.Sprintf("normal %v points inward, element %d face %d", n, k, face))
		}
	}

	// FaceNodeMap carries matching global vertices on interior faces
	for k := 0; k < 2; k++ {
		e := &m.Elements[k]
		for face := 0; face < 3; face++ {
			nbr := e.Neighbors[face]
			if nbr == InvalidElement {
				continue
			}
			for fn := 0; fn < 2; fn++ {
				ln := e.FaceNodeMap[face][fn]
				assert.True(t, ln >= 0)
				assert.Equal(t,
					e.Verts[FaceVertices[face][fn]],
					m.Elements[nbr].Verts[ln])
			}
		}
	}

	// vertex adjacency: corner vertices 0 and 2 sit on both elements
	assert.ElementsMatch(t, utils.Index{0, 1}, m.VertexAdj.Row(0))
	assert.ElementsMatch(t, utils.Index{0, 1}, m.VertexAdj.Row(2))
	assert.ElementsMatch(t, utils.Index{0}, m.VertexAdj.Row(1))
	assert.ElementsMatch(t, utils.Index{1}, m.VertexAdj.Row(3))
}

func TestMeshGeometry(t *testing.T) {
	box := geom.NewBox(geom.Point{X: -1, Y: -1}, geom.Point{X: 1, Y: 1})
	m, err := NewRectMesh(box, 4, 4)
	assert.NoError(t, err)
	assert.Equal(t, 32, m.ElementCount())

	// jacobians sum to twice the domain area
	var jsum float64
	for k := 0; k < m.ElementCount(); k++ {
		jsum += m.Elements[k].Jacobian
	}
	assert.InDelta(t, 2*4., jsum, 1.e-12)

	// point location
	{
		pt := geom.Point{X: 0.3, Y: -0.2}
		el := m.FindElement(pt, 1.e-10)
		assert.NotEqual(t, InvalidElement, el)
		assert.True(t, m.IsInElement(el, pt, 1.e-10))
		assert.Equal(t, InvalidElement, m.FindElement(geom.Point{X: 1.5, Y: 0}, 1.e-10))
	}

	// every element's vertices locate inside with tolerance
	for k := 0; k < m.ElementCount(); k++ {
		c := m.ElementCentroid(k)
		assert.True(t, m.IsInElement(k, c, 1.e-10))
		assert.True(t, m.ElementBoundingBox(k).Contains(c))
	}

	// ElementsInDisk over-includes but never misses the containing element
	{
		pt := geom.Point{X: 0.1, Y: 0.1}
		els := m.ElementsInDisk(pt, 0.2)
		assert.True(t, els.Contains(m.FindElement(pt, 1.e-10)))
	}

	// integral of the constant one field is the domain area
	{
		one := utils.NewVector(m.NodeCount()).Apply(func(float64) float64 { return 1 })
		assert.InDelta(t, 4., m.Integral(one), 1.e-12)
	}

	// integral of a linear field: x over [-1,1]^2 integrates to zero
	{
		f := utils.NewVector(m.NodeCount())
		for i, nd := range m.Nodes {
			f.Set(i, nd.X)
		}
		assert.InDelta(t, 0., m.Integral(f), 1.e-12)
	}
}

func TestFindElementWalk(t *testing.T) {
	m, err := NewRectMesh(geom.NewBox(geom.Point{X: -1, Y: -1}, geom.Point{X: 1, Y: 1}), 8, 8)
	assert.NoError(t, err)

	// the adjacency walk lands on the containing element from any seed
	// distance: every centroid locates its own element
	for k := 0; k < m.ElementCount(); k++ {
		assert.Equal(t, k, m.FindElement(m.ElementCentroid(k), 1.e-10))
	}

	// interior sample grid
	for x := -0.95; x < 1; x += 0.19 {
		for y := -0.95; y < 1; y += 0.23 {
			pt := geom.Point{X: x, Y: y}
			el := m.FindElement(pt, 1.e-10)
			assert.NotEqual(t, InvalidElement, el)
			assert.True(t, m.IsInElement(el, pt, 1.e-10))
		}
	}

	// outside points fail through either path
	assert.Equal(t, InvalidElement, m.FindElement(geom.Point{X: 2, Y: 2}, 1.e-10))
	assert.Equal(t, InvalidElement, m.FindElement(geom.Point{X: -1.2, Y: 0}, 1.e-10))
}

func TestMeshErrors(t *testing.T) {
	_, err := NewMesh(nil, nil)
	assert.Error(t, err)

	// degenerate (collinear) triangle
	verts := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	_, err = NewMesh(verts, [][3]int{{0, 1, 2}})
	assert.Error(t, err)

	_, err = NewRectMesh(geom.NewBox(geom.Point{X: 0, Y: 0}, geom.Point{X: 1, Y: 1}), 0, 4)
	assert.Error(t, err)
}

func TestElementIntegralLinearExact(t *testing.T) {
	// the nodal rule J/6 * sum(u_i) integrates linears exactly on a single
	// element
	verts := []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}
	m, err := NewMesh(verts, [][3]int{{0, 1, 2}})
	assert.NoError(t, err)

	// f = x: exact integral over the triangle (0,0)-(2,0)-(0,2) is 4/3
	f := utils.NewVector(m.NodeCount())
	for i, nd := range m.Nodes {
		f.Set(i, nd.X)
	}
	assert.InDelta(t, 4./3., m.ElementIntegral(0, f), 1.e-12)
	assert.InDelta(t, math.Abs(m.Elements[0].Map.Det)/2., 2., 1.e-12)
}
