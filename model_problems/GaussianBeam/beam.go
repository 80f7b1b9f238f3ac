package GaussianBeam

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/notargets/gopic/config"
	"github.com/notargets/gopic/deposit"
	"github.com/notargets/gopic/geom"
	"github.com/notargets/gopic/mesh"
	"github.com/notargets/gopic/shapefn"
	"github.com/notargets/gopic/utils"
)

/*
BeamProblem drives the deposition layer end to end: a Gaussian particle
beam sampled over a triangulated rectangle, deposited with the selected
strategy (or all of them) and summarized by charge conservation and the
per-strategy statistics.
*/
type BeamProblem struct {
	Params    config.DepositionParameters
	Mesh      *mesh.Mesh
	SF        shapefn.PolynomialShape
	Particles []deposit.Particle
}

func NewBeamProblem(params config.DepositionParameters) (bp *BeamProblem, err error) {
	bp = &BeamProblem{Params: params}
	box := geom.NewBox(
		geom.Point{X: params.XMin, Y: params.YMin},
		geom.Point{X: params.XMax, Y: params.YMax})
	if bp.Mesh, err = mesh.NewRectMesh(box, params.MeshNx, params.MeshNy); err != nil {
		return
	}
	if bp.SF, err = shapefn.NewPolynomialShape(params.ShapeRadius, params.ShapeAlpha); err != nil {
		return
	}
	bp.sampleBeam()
	return
}

func (bp *BeamProblem) sampleBeam() {
	var (
		params = bp.Params
		src    = rand.NewPCG(params.RandomSeed, 0)
		dist   = distuv.Normal{Mu: 0, Sigma: params.BeamSigma, Src: src}
		qEach  = params.TotalCharge / float64(params.ParticleCount)
	)
	bp.Particles = make([]deposit.Particle, 0, params.ParticleCount)
	for i := 0; i < params.ParticleCount; i++ {
		bp.Particles = append(bp.Particles, deposit.Particle{
			ID:     i,
			Pos:    geom.Point{X: dist.Rand(), Y: dist.Rand()},
			Vel:    geom.Point{X: 1, Y: 0},
			Charge: qEach,
		})
	}
}

func (bp *BeamProblem) Run() (err error) {
	bp.Params.Print()
	fmt.Printf("mesh: %d elements, %d DOFs\n", bp.Mesh.ElementCount(), bp.Mesh.NodeCount())
	switch bp.Params.Method {
	case "Shape":
		err = bp.runShape()
	case "NormShape":
		err = bp.runNormShape()
	case "Advective":
		err = bp.runAdvective()
	case "Grid":
		err = bp.runGrid()
	case "GridFind":
		err = bp.runGridFind()
	case "All":
		for _, run := range []func() error{
			bp.runShape, bp.runNormShape, bp.runAdvective, bp.runGrid, bp.runGridFind,
		} {
			if err = run(); err != nil {
				return
			}
		}
	default:
		err = fmt.Errorf("unknown deposition method %q", bp.Params.Method)
	}
	return
}

func (bp *BeamProblem) report(name string, rho utils.Vector, outside uint64) {
	var (
		integral = bp.Mesh.Integral(rho)
		total    = bp.Params.TotalCharge
		data     = rho.RawVector().Data
	)
	fmt.Printf("[%s] integral(rho) = %10.6g, sum(q) = %10.6g, relative error = %8.3g\n",
		name, integral, total, math.Abs(integral-total)/math.Abs(total))
	fmt.Printf("[%s] rho DOF mean = %10.6g, stddev = %10.6g, outside particles = %d\n",
		name, stat.Mean(data, nil), stat.StdDev(data, nil), outside)
}

func (bp *BeamProblem) runShape() (err error) {
	sd := deposit.NewShapeDepositor(bp.Mesh)
	sd.SetShapeFunction(bp.SF)
	rho, _, _, err := sd.DepositDensities(bp.Particles)
	if err != nil {
		return
	}
	bp.report("Shape", rho, sd.OutsideParticleCount())
	return
}

func (bp *BeamProblem) runNormShape() (err error) {
	nd := deposit.NewNormalizedShapeDepositor(bp.Mesh)
	nd.SetShapeFunction(bp.SF)
	nd.SetupNormalizedShape(bp.Mesh.Ref.Mass)
	rho, err := nd.DepositRho(bp.Particles)
	if err != nil {
		return
	}
	bp.report("NormShape", rho, nd.OutsideParticleCount())
	fmt.Printf("[NormShape] normalization: mean = %8.4g sigma = %8.4g, el/particle: mean = %6.2f max = %4.0f, centroid dist mean = %8.4g\n",
		nd.NormalizationStats.Mean(), math.Sqrt(nd.NormalizationStats.Variance()),
		nd.ElementsPerParticle.Mean(), nd.ElementsPerParticle.Max(),
		nd.CentroidDistanceStats.Mean())
	return
}

// rkStage is the low-storage RK residual, kept aligned with the advective
// DOF numbering through activations and kills via the shift listener.
type rkStage struct {
	resid []float64
}

func (s *rkStage) NoteMove(orig, dest, size int) {
	copy(s.resid[dest:dest+size], s.resid[orig:orig+size])
}

func (s *rkStage) NoteResize(newSize int) {
	for len(s.resid) < newSize {
		s.resid = append(s.resid, 0)
	}
	s.resid = s.resid[:newSize]
}

func (bp *BeamProblem) runAdvective() (err error) {
	var (
		params = bp.Params
		ad     = deposit.NewAdvectiveDepositor(bp.Mesh)
		stage  = &rkStage{}
	)
	ad.Listener = stage
	ad.SetShapeFunction(bp.SF)
	ad.SetupAdvective(params.ActivationThreshold, params.KillThreshold, params.UpwindAlpha)
	if err = ad.AddLocalDiffMatrix(0, bp.Mesh.Ref.Dr); err != nil {
		return
	}
	if err = ad.AddLocalDiffMatrix(1, bp.Mesh.Ref.Ds); err != nil {
		return
	}
	velocities := make([]geom.Point, 0, len(bp.Particles))
	for _, p := range bp.Particles {
		if err = ad.AddAdvectiveParticle(p); err != nil {
			if errors.Is(err, deposit.ErrActivationFailure) {
				// sampled outside the mesh, counted by the depositor
				err = nil
				continue
			}
			return
		}
		velocities = append(velocities, p.Vel)
	}

	// advect the carried density for a few steps of low-storage RK4
	var (
		hmin   = (params.XMax - params.XMin) / float64(params.MeshNx)
		dt     = 0.2 * hmin // unit beam velocity
		nsteps = 5
	)
	for step := 0; step < nsteps; step++ {
		for intrk := 0; intrk < 5; intrk++ {
			var rhs utils.Vector
			if rhs, err = ad.GetAdvectiveParticleRHS(velocities); err != nil {
				return
			}
			var (
				rhsData = rhs.RawVector().Data
				update  = utils.NewVector(len(stage.resid))
			)
			for i := range stage.resid {
				stage.resid[i] = utils.RK4a[intrk]*stage.resid[i] + dt*rhsData[i]
				update.Set(i, utils.RK4b[intrk]*stage.resid[i])
			}
			if err = ad.ApplyAdvectiveParticleRHS(update); err != nil {
				return
			}
		}
		ad.PerformUpkeep()
	}

	rho, err := ad.DepositRho(nil)
	if err != nil {
		return
	}
	bp.report("Advective", rho, ad.OutsideParticleCount())
	fmt.Printf("[Advective] active elements = %d, activations = %d, kills = %d\n",
		ad.ActiveElements(), ad.ElementActivationCounter, ad.ElementKillCounter)
	return
}

func (bp *BeamProblem) gridSetup() (bricks []geom.Brick, err error) {
	brk, err := deposit.SingleBrick(bp.Mesh, bp.Params.Overresolve)
	if err != nil {
		return
	}
	bricks = []geom.Brick{brk}
	return
}

func (bp *BeamProblem) runGrid() (err error) {
	bricks, err := bp.gridSetup()
	if err != nil {
		return
	}
	gd, err := deposit.NewGridDepositor(bp.Mesh, bricks)
	if err != nil {
		return
	}
	gd.SetShapeFunction(bp.SF)
	if gd.AverageGroups, err = deposit.BuildAverageGroups(bricks); err != nil {
		return
	}
	if err = gd.SetupPointwiseInterpolation(bp.Params.ElementTolerance); err != nil {
		return
	}
	fmt.Printf("[Grid] %d grid nodes (%d extra points)\n",
		gd.GridNodeCount(), len(gd.ExtraPoints))
	rho, err := gd.DepositRho(bp.Particles)
	if err != nil {
		return
	}
	bp.report("Grid", rho, gd.OutsideParticleCount())

	// remap residual against the direct shape deposition
	sd := deposit.NewShapeDepositor(bp.Mesh)
	sd.SetShapeFunction(bp.SF)
	ref, err := sd.DepositRho(bp.Particles)
	if err != nil {
		return
	}
	g, err := gd.DepositGridRho(bp.Particles)
	if err != nil {
		return
	}
	gd.ApplyAverageGroups(g)
	residual, err := gd.RemapResidual(g, ref)
	if err != nil {
		return
	}
	fmt.Printf("[Grid] max |remap residual| = %10.6g\n", residual.MaxAbs())
	return
}

func (bp *BeamProblem) runGridFind() (err error) {
	bricks, err := bp.gridSetup()
	if err != nil {
		return
	}
	gf := deposit.NewGridFindDepositor(bp.Mesh, bricks)
	gf.SetShapeFunction(bp.SF)
	if err = gf.SetupNodeNumberLists(); err != nil {
		return
	}
	rho, err := gf.DepositRho(bp.Particles)
	if err != nil {
		return
	}
	bp.report("GridFind", rho, gf.OutsideParticleCount())
	return
}
