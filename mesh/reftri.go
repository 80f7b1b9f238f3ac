package mesh

import (
	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/utils"
)

// Np is the nodal count of the P1 triangle basis used for mesh DOFs.
const Np = 3

/*
RefTriangle carries the local operators of the linear (P1) reference
triangle with vertices (0,0), (1,0), (0,1):

	mass matrix      M_ij = integral(phi_i phi_j)
	differentiation  (Dr u)_i = du/dr, (Ds u)_i = du/ds
	face mass        unit-length edge mass matrix

Physical-element operators follow by scaling with the element jacobian
(mass), its inverse (inverse mass) and the face length (face mass).
*/
type RefTriangle struct {
	Mass, InvMass utils.Matrix
	Dr, Ds        utils.Matrix
	FaceMass      utils.Matrix
}

// FaceVertices maps a local face index to its two local vertex indices,
// ordered counterclockwise.
var FaceVertices = [3][2]int{{0, 1}, {1, 2}, {2, 0}}

func NewRefTriangle() (rt *RefTriangle) {
	rt = &RefTriangle{
		Mass: NewScaledMatrix(3, 3, 1./24., []float64{
			2, 1, 1,
			1, 2, 1,
			1, 1, 2,
		}),
		InvMass: NewScaledMatrix(3, 3, 6, []float64{
			3, -1, -1,
			-1, 3, -1,
			-1, -1, 3,
		}),
		Dr: utils.NewMatrix(3, 3, []float64{
			-1, 1, 0,
			-1, 1, 0,
			-1, 1, 0,
		}),
		Ds: utils.NewMatrix(3, 3, []float64{
			-1, 0, 1,
			-1, 0, 1,
			-1, 0, 1,
		}),
		FaceMass: NewScaledMatrix(2, 2, 1./6., []float64{
			2, 1,
			1, 2,
		}),
	}
	return
}

func NewScaledMatrix(nr, nc int, scale float64, data []float64) (R utils.Matrix) {
	R = utils.NewMatrix(nr, nc, data).Scale(scale)
	return
}

// Basis evaluates the three nodal basis functions at unit coordinates.
func (rt *RefTriangle) Basis(u geom.Point) [3]float64 {
	return [3]float64{1 - u.X - u.Y, u.X, u.Y}
}
