package deposit

import "math"

/*
StatsGatherer folds a stream of samples into running count/min/max and
Welford mean/variance aggregates. It is updated once per particle per
deposition pass and is read-only to external callers; any reset is the
surrounding driver's policy, never applied internally.
*/
type StatsGatherer struct {
	count    uint64
	min, max float64
	mean, m2 float64
}

func (s *StatsGatherer) Add(v float64) {
	s.count++
	if s.count == 1 {
		s.min, s.max = v, v
	} else {
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
	delta := v - s.mean
	s.mean += delta / float64(s.count)
	s.m2 += delta * (v - s.mean)
}

func (s *StatsGatherer) Count() uint64 { return s.count }
func (s *StatsGatherer) Min() float64  { return s.min }
func (s *StatsGatherer) Max() float64  { return s.max }
func (s *StatsGatherer) Mean() float64 { return s.mean }

func (s *StatsGatherer) Variance() float64 {
	if s.count < 2 {
		return 0
	}
	return s.m2 / float64(s.count-1)
}
