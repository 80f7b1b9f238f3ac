/*
Package deposit maps discrete particle state onto continuous charge and
current densities sampled at the DOFs of an unstructured mesh.

Five interchangeable strategies share the Depositor contract and differ in
internal representation: direct shape-function scatter, its charge-
normalized variant, an advective per-element modal representation, and two
structured-overlay-grid methods.
*/
package deposit

import (
	"errors"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/shapefn"
	"github.com/notargets/gopic/utils"
)

// Particle is the read-only view of one particle the depositors consume.
type Particle struct {
	ID     int
	Pos    geom.Point
	Vel    geom.Point
	Charge float64
}

/*
Depositor is the capability set shared by all five strategies. Strategy
specific operations (normalization setup, activation upkeep, grid remap)
live on the concrete types.

Particles whose shape support touches no mesh DOF are skipped and counted
in OutsideParticleCount; the count is monotonic and never reset
internally.
*/
type Depositor interface {
	DepositRho(particles []Particle) (rho utils.Vector, err error)
	DepositJ(particles []Particle) (jx, jy utils.Vector, err error)
	DepositDensities(particles []Particle) (rho, jx, jy utils.Vector, err error)
	SetShapeFunction(sf shapefn.ShapeFunction)
	OutsideParticleCount() uint64
}

var (
	// ErrGeometryMismatch: particle support or grid/brick configuration is
	// inconsistent with the mesh bounds. Fatal for the current call.
	ErrGeometryMismatch = errors.New("deposit: geometry mismatch")

	// ErrActivationFailure: an element required by the advective
	// representation cannot be activated.
	ErrActivationFailure = errors.New("deposit: element activation failure")

	// ErrStaleMapping: a grid method was invoked before its geometry
	// mapping was built, or after it was invalidated.
	ErrStaleMapping = errors.New("deposit: stale or missing grid mapping")

	// ErrNoShapeFunction: deposition was requested before a shape function
	// was installed.
	ErrNoShapeFunction = errors.New("deposit: shape function never set")
)
