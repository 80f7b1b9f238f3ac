package utils

// Carpenter/Kennedy low-storage five-stage fourth-order RK coefficients
var (
	RK4a = []float64{
		0,
		-567301805773. / 1357537059087.,
		-2404267990393. / 2016746695238.,
		-3550918686646. / 2061075847436.,
		-1275806237668. / 842570457699.,
	}
	RK4b = []float64{
		1432997174477. / 9575080441755.,
		5161836677717. / 13612745070265.,
		1720146321549. / 2090206949498.,
		3134564353537. / 4481467310338.,
		2277821191437. / 14882151754819.,
	}
	RK4c = []float64{
		0,
		1432997174477. / 9575080441755.,
		2526269341429. / 6820363962896.,
		2006345519317. / 3224310063776.,
		2802321613138. / 2924317926251.,
	}
)
