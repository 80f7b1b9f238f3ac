package deposit

import (
	"fmt"
	"math"

	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/shapefn"
	"github.com/notargets/gopic/utils"
)

/*
DOFShiftListener is notified, synchronously and before the shift takes
visible effect, whenever the advective DOF numbering changes: NoteMove for
a block of size coefficients relocating from orig to dest, NoteResize when
the total DOF count changes. External code holding DOF-indexed state
(e.g. an RK stepper's stage storage) remaps on these calls.
*/
type DOFShiftListener interface {
	NoteMove(orig, dest, size int)
	NoteResize(newSize int)
}

// advBlock is one particle's nodal density coefficients on one active
// element, stored at state[start : start+Np].
type advBlock struct {
	particle int
	element  int
	start    int
}

type advParticle struct {
	Particle
	refMag float64     // peak initial coefficient, scales both thresholds
	blocks map[int]int // element ID -> block index
}

/*
AdvectiveDepositor represents rho as per-element nodal coefficients that
are advected through the local differentiation operators as particles
drift. Elements follow an Inactive -> Active -> Inactive (killed) state
machine per particle: activation happens when outgoing face flux first
pushes density toward an element, kills happen during upkeep when a
block's coefficients drop below the kill threshold.

The RHS evaluation and its application are split so an external
multi-stage integrator (e.g. RK4) owns the scheme; the depositor never
assumes one.
*/
type AdvectiveDepositor struct {
	Mesh *mesh.Mesh

	ActivationThreshold float64
	KillThreshold       float64
	UpwindAlpha         float64

	// monotonic transition counters, never reset or decremented
	ElementActivationCounter uint64
	ElementKillCounter       uint64

	Listener DOFShiftListener

	sf      shapefn.ShapeFunction
	haveSF  bool
	diff    [2]utils.Matrix // nodal differentiation operators, unit coords
	hasDiff [2]bool
	setup   bool

	particles []advParticle
	blocks    []advBlock
	state     []float64
	outside   uint64
}

func NewAdvectiveDepositor(m *mesh.Mesh) *AdvectiveDepositor {
	return &AdvectiveDepositor{Mesh: m}
}

// SetupAdvective installs the thresholds and flux parameter. UpwindAlpha=1
// is full upwinding, 0 a central flux.
func (ad *AdvectiveDepositor) SetupAdvective(activationThreshold, killThreshold, upwindAlpha float64) {
	ad.ActivationThreshold = activationThreshold
	ad.KillThreshold = killThreshold
	ad.UpwindAlpha = upwindAlpha
	ad.setup = true
}

// AddLocalDiffMatrix installs the unit-coordinate differentiation operator
// for one axis (0 = r, 1 = s). Both must be set before any RHS
// computation.
func (ad *AdvectiveDepositor) AddLocalDiffMatrix(axis int, M utils.Matrix) error {
	if axis < 0 || axis > 1 {
		return fmt.Errorf("%w: diff matrix axis %d out of range", ErrGeometryMismatch, axis)
	}
	ad.diff[axis] = M.Copy()
	ad.hasDiff[axis] = true
	return nil
}

func (ad *AdvectiveDepositor) SetShapeFunction(sf shapefn.ShapeFunction) {
	ad.sf = sf
	ad.haveSF = true
}

func (ad *AdvectiveDepositor) OutsideParticleCount() uint64 { return ad.outside }

func (ad *AdvectiveDepositor) CountAdvectiveParticles() int { return len(ad.particles) }

// ActiveElements reports the total number of active (particle, element)
// blocks.
func (ad *AdvectiveDepositor) ActiveElements() int { return len(ad.blocks) }

/*
AddAdvectiveParticle samples the particle's shape onto every element its
support overlaps, normalizes the sampled footprint to the particle charge
and activates those elements. A particle whose support overlaps no element
cannot be represented advectively and fails with ErrActivationFailure.
*/
func (ad *AdvectiveDepositor) AddAdvectiveParticle(p Particle) error {
	if !ad.haveSF {
		return ErrNoShapeFunction
	}
	if !ad.setup {
		return ErrStaleMapping
	}
	var (
		m        = ad.Mesh
		els      = m.ElementsInDisk(p.Pos, ad.sf.Radius())
		pn       = len(ad.particles)
		newState []float64
		newEls   []int
		integral float64
	)
	for _, el := range els {
		var (
			e     = &m.Elements[el]
			vals  [mesh.Np]float64
			nonz  bool
			elInt float64
		)
		for i := 0; i < mesh.Np; i++ {
			vals[i] = ad.sf.Eval(m.Nodes[e.Start+i].DistSq(p.Pos))
			nonz = nonz || vals[i] != 0
			elInt += vals[i]
		}
		if !nonz {
			continue
		}
		integral += elInt * e.Jacobian / 6.
		newEls = append(newEls, el)
		newState = append(newState, vals[:]...)
	}
	if len(newEls) == 0 || integral <= 0 || math.IsNaN(integral) {
		ad.outside++
		return fmt.Errorf("%w: particle %d support overlaps no active-capable element",
			ErrActivationFailure, p.ID)
	}

	scale := p.Charge / integral
	var refMag float64
	for i := range newState {
		newState[i] *= scale
		refMag = math.Max(refMag, math.Abs(newState[i]))
	}

	ap := advParticle{Particle: p, refMag: refMag, blocks: make(map[int]int)}
	ad.particles = append(ad.particles, ap)
	for bi, el := range newEls {
		ad.appendBlock(pn, el, newState[bi*mesh.Np:(bi+1)*mesh.Np])
	}
	return nil
}

// appendBlock activates element el for particle pn, growing the state
// vector. The listener sees the resize before any dependent use.
func (ad *AdvectiveDepositor) appendBlock(pn, el int, coeffs []float64) (blockIdx int) {
	start := len(ad.state)
	if ad.Listener != nil {
		ad.Listener.NoteResize(start + mesh.Np)
	}
	if coeffs == nil {
		coeffs = make([]float64, mesh.Np)
	}
	ad.state = append(ad.state, coeffs...)
	blockIdx = len(ad.blocks)
	ad.blocks = append(ad.blocks, advBlock{particle: pn, element: el, start: start})
	ad.particles[pn].blocks[el] = blockIdx
	ad.ElementActivationCounter++
	return
}

// ClearAdvectiveParticles releases all per-particle coefficient storage.
func (ad *AdvectiveDepositor) ClearAdvectiveParticles() {
	if ad.Listener != nil {
		ad.Listener.NoteResize(0)
	}
	ad.particles = ad.particles[:0]
	ad.blocks = ad.blocks[:0]
	ad.state = ad.state[:0]
}

/*
GetAdvectiveParticleRHS evaluates d(rho)/dt for the current advective
state under the given per-particle velocities: an upwind DG advection
right-hand side per active block. Outgoing face flux toward an inactive
neighbor above the activation threshold activates it first (the new block
enters this same evaluation with zero state), so the returned vector is
sized to the possibly-grown DOF count.

velocities must hold one entry per advective particle; it also refreshes
the stored particle velocities used by DepositJ.
*/
func (ad *AdvectiveDepositor) GetAdvectiveParticleRHS(velocities []geom.Point) (rhs utils.Vector, err error) {
	if !ad.hasDiff[0] || !ad.hasDiff[1] {
		err = fmt.Errorf("%w: local diff matrices not installed", ErrGeometryMismatch)
		return
	}
	if len(velocities) != len(ad.particles) {
		err = fmt.Errorf("%w: %d velocities for %d advective particles",
			ErrGeometryMismatch, len(velocities), len(ad.particles))
		return
	}
	for pn := range ad.particles {
		ad.particles[pn].Vel = velocities[pn]
	}

	var out []float64
	// blocks may grow through activation while iterating; newly activated
	// blocks are processed in the same pass and carry zero state
	for bi := 0; bi < len(ad.blocks); bi++ {
		blockRHS := ad.blockRHS(bi)
		out = append(out, blockRHS[:]...)
	}
	rhs = utils.NewVector(len(out), out)
	return
}

// blockRHS computes the advection RHS for one (particle, element) block,
// activating downwind neighbors as a side effect.
func (ad *AdvectiveDepositor) blockRHS(bi int) (rhs [mesh.Np]float64) {
	var (
		b  = ad.blocks[bi]
		ap = &ad.particles[b.particle]
		e  = &ad.Mesh.Elements[b.element]
		u  = ad.state[b.start : b.start+mesh.Np]
		v  = ap.Vel
	)
	// volume term: -(v.grad) u with physical derivatives assembled from
	// the unit-coordinate operators through the inverse map
	var (
		ai = e.Map.AInv
		cr = v.X*ai[0][0] + v.Y*ai[0][1] // v.X*dr/dx + v.Y*dr/dy
		cs = v.X*ai[1][0] + v.Y*ai[1][1]
	)
	for i := 0; i < mesh.Np; i++ {
		var dr, ds float64
		for j := 0; j < mesh.Np; j++ {
			dr += ad.diff[0].At(i, j) * u[j]
			ds += ad.diff[1].At(i, j) * u[j]
		}
		rhs[i] = -(cr*dr + cs*ds)
	}

	// face terms: lift of (f_interior - f_upwind) through the face mass
	// and inverse mass operators
	var (
		faceAccum [mesh.Np]float64
		fm        = ad.Mesh.Ref.FaceMass
		alpha     = ad.UpwindAlpha
	)
	for face := 0; face < 3; face++ {
		var (
			vn     = v.Dot(e.FaceNormals[face])
			la     = mesh.FaceVertices[face][0]
			lb     = mesh.FaceVertices[face][1]
			uM     = [2]float64{u[la], u[lb]}
			uP     [2]float64
			nbr    = e.Neighbors[face]
			faceMx = math.Max(math.Abs(uM[0]), math.Abs(uM[1]))
		)
		if nbr != mesh.InvalidElement {
			nbi, active := ap.blocks[nbr]
			if !active && vn > 0 && vn*faceMx > ad.ActivationThreshold*ap.refMag {
				nbi = ad.appendBlock(b.particle, nbr, nil)
				active = true
			}
			if active {
				nb := ad.blocks[nbi]
				nu := ad.state[nb.start : nb.start+mesh.Np]
				uP[0] = nu[e.FaceNodeMap[face][0]]
				uP[1] = nu[e.FaceNodeMap[face][1]]
			}
		}
		// f_interior - f_upwind = ((vn - alpha*|vn|)/2) * (uM - uP)
		fac := 0.5 * (vn - alpha*math.Abs(vn))
		var g [2]float64
		g[0] = fac * (uM[0] - uP[0])
		g[1] = fac * (uM[1] - uP[1])
		// face mass scaled by face length
		l := e.FaceLengths[face]
		faceAccum[la] += l * (fm.At(0, 0)*g[0] + fm.At(0, 1)*g[1])
		faceAccum[lb] += l * (fm.At(1, 0)*g[0] + fm.At(1, 1)*g[1])
	}
	var (
		invM = ad.Mesh.Ref.InvMass
		invJ = 1. / e.Jacobian
	)
	for i := 0; i < mesh.Np; i++ {
		var lift float64
		for j := 0; j < mesh.Np; j++ {
			lift += invM.At(i, j) * faceAccum[j]
		}
		rhs[i] += invJ * lift
	}
	return
}

// ApplyAdvectiveParticleRHS adds a pre-scaled RHS (the integrator applies
// dt and stage weights) into the advective state.
func (ad *AdvectiveDepositor) ApplyAdvectiveParticleRHS(rhs utils.Vector) error {
	if rhs.Len() != len(ad.state) {
		return fmt.Errorf("%w: rhs length %d does not match advective DOF count %d",
			ErrGeometryMismatch, rhs.Len(), len(ad.state))
	}
	data := rhs.RawVector().Data
	for i := range ad.state {
		ad.state[i] += data[i]
	}
	return nil
}

/*
PerformUpkeep reconciles the active element set after an integration step:
blocks whose coefficients have decayed below the kill threshold are
deactivated and the DOF vector compacted, and elements whose faces carry
significant density get their inactive neighbors activated so the next
RHS evaluation finds them present. Must run before the next deposition or
results are stale.
*/
func (ad *AdvectiveDepositor) PerformUpkeep() {
	// activation sweep: density present at a face means the support is
	// touching the neighbor
	for bi := 0; bi < len(ad.blocks); bi++ {
		var (
			b  = ad.blocks[bi]
			ap = &ad.particles[b.particle]
			e  = &ad.Mesh.Elements[b.element]
			u  = ad.state[b.start : b.start+mesh.Np]
		)
		for face := 0; face < 3; face++ {
			nbr := e.Neighbors[face]
			if nbr == mesh.InvalidElement {
				continue
			}
			if _, active := ap.blocks[nbr]; active {
				continue
			}
			faceMx := math.Max(
				math.Abs(u[mesh.FaceVertices[face][0]]),
				math.Abs(u[mesh.FaceVertices[face][1]]))
			if faceMx > ad.ActivationThreshold*ap.refMag {
				ad.appendBlock(b.particle, nbr, nil)
			}
		}
	}

	// kill sweep
	for bi := 0; bi < len(ad.blocks); {
		var (
			b  = ad.blocks[bi]
			ap = &ad.particles[b.particle]
			u  = ad.state[b.start : b.start+mesh.Np]
			mx float64
		)
		for _, val := range u {
			mx = math.Max(mx, math.Abs(val))
		}
		if mx >= ad.KillThreshold*ap.refMag || len(ap.blocks) == 1 {
			bi++
			continue
		}
		ad.killBlock(bi)
		// bi now holds the relocated last block; re-examine it
	}
}

// killBlock deactivates block bi, compacting the block table and the
// state vector by moving the last block into the hole. Listener
// notifications precede the data movement.
func (ad *AdvectiveDepositor) killBlock(bi int) {
	var (
		last   = len(ad.blocks) - 1
		dying  = ad.blocks[bi]
		newLen = len(ad.state) - mesh.Np
	)
	delete(ad.particles[dying.particle].blocks, dying.element)
	if bi != last {
		moving := ad.blocks[last]
		if ad.Listener != nil {
			ad.Listener.NoteMove(moving.start, dying.start, mesh.Np)
		}
		copy(ad.state[dying.start:dying.start+mesh.Np], ad.state[moving.start:moving.start+mesh.Np])
		moving.start = dying.start
		ad.blocks[bi] = moving
		ad.particles[moving.particle].blocks[moving.element] = bi
	}
	if ad.Listener != nil {
		ad.Listener.NoteResize(newLen)
	}
	ad.blocks = ad.blocks[:last]
	ad.state = ad.state[:newLen]
	ad.ElementKillCounter++
}

func (ad *AdvectiveDepositor) DepositRho(_ []Particle) (rho utils.Vector, err error) {
	rho = utils.NewVector(ad.Mesh.NodeCount())
	for _, b := range ad.blocks {
		e := &ad.Mesh.Elements[b.element]
		for i := 0; i < mesh.Np; i++ {
			rho.AddAt(e.Start+i, ad.state[b.start+i])
		}
	}
	return
}

func (ad *AdvectiveDepositor) DepositJ(_ []Particle) (jx, jy utils.Vector, err error) {
	jx = utils.NewVector(ad.Mesh.NodeCount())
	jy = utils.NewVector(ad.Mesh.NodeCount())
	for _, b := range ad.blocks {
		var (
			e = &ad.Mesh.Elements[b.element]
			v = ad.particles[b.particle].Vel
		)
		for i := 0; i < mesh.Np; i++ {
			jx.AddAt(e.Start+i, ad.state[b.start+i]*v.X)
			jy.AddAt(e.Start+i, ad.state[b.start+i]*v.Y)
		}
	}
	return
}

func (ad *AdvectiveDepositor) DepositDensities(particles []Particle) (rho, jx, jy utils.Vector, err error) {
	if rho, err = ad.DepositRho(particles); err != nil {
		return
	}
	jx, jy, err = ad.DepositJ(particles)
	return
}

// GetDebugQuantityOnMesh samples a named internal field for visualization:
// "rho" and "active_elements" on the mesh DOF numbering, "advective_rho"
// as the raw per-block coefficients on the advective DOF numbering.
func (ad *AdvectiveDepositor) GetDebugQuantityOnMesh(name string) (q utils.Vector, err error) {
	switch name {
	case "rho":
		return ad.DepositRho(nil)
	case "advective_rho":
		q = utils.NewVector(len(ad.state))
		copy(q.RawVector().Data, ad.state)
		return
	case "active_elements":
		q = utils.NewVector(ad.Mesh.NodeCount())
		for _, b := range ad.blocks {
			e := &ad.Mesh.Elements[b.element]
			for i := 0; i < mesh.Np; i++ {
				q.Set(e.Start+i, 1)
			}
		}
		return
	default:
		err = fmt.Errorf("unknown debug quantity %q", name)
		return
	}
}
