package mesh

import (
	"github.com/james-bowman/sparse"
)

/*
buildNeighbors derives the element neighbor table from face-to-vertex
incidence: with one row per element face holding a 1 at each of its two
vertices, the product FToV * FToV^T scores shared vertices per face pair.
Off-diagonal entries equal to 2 identify coincident faces.
*/
func buildNeighbors(tris [][3]int, nVerts int) (neighbors [][3]int) {
	var (
		K          = len(tris)
		totalFaces = 3 * K
	)
	SpFToVTmp := sparse.NewDOK(totalFaces, nVerts)
	var sk int
	for k := 0; k < K; k++ {
		for face := 0; face < 3; face++ {
			SpFToVTmp.Set(sk, tris[k][FaceVertices[face][0]], 1)
			SpFToVTmp.Set(sk, tris[k][FaceVertices[face][1]], 1)
			sk++
		}
	}
	SpFToV := SpFToVTmp.ToCSR()
	SpFToF := sparse.NewCSR(totalFaces, totalFaces, nil, nil, nil)
	SpFToF.Mul(SpFToV, SpFToV.T())

	neighbors = make([][3]int, K)
	for k := 0; k < K; k++ {
		for face := 0; face < 3; face++ {
			neighbors[k][face] = InvalidElement
		}
	}
	SpFToF.DoNonZero(func(i, j int, v float64) {
		if i == j || v != 2 {
			return
		}
		k1, f1 := i/3, i%3
		k2 := j / 3
		if k1 == k2 {
			// two faces of one element always share a vertex
			return
		}
		neighbors[k1][f1] = k2
	})
	return
}
