package kinematics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// parallelEpsilon is the squared relative speed below which two tracks are
// treated as having no closing motion.
const parallelEpsilon = 1e-8

// ClosestApproach returns the CPA distance (m) and TCPA (s) between two
// constant-velocity tracks. ok is false when the tracks are effectively
// parallel, the closest approach is not in the future, lies beyond
// horizon, or the solution is not finite.
func ClosestApproach(selfPos, selfVel, otherPos, otherVel r2.Vec, horizon float64) (cpa, tcpa float64, ok bool) {
	dv := r2.Sub(otherVel, selfVel)
	w0 := r2.Sub(otherPos, selfPos)

	dv2 := r2.Dot(dv, dv)
	if dv2 < parallelEpsilon {
		return 0, 0, false
	}

	t := -r2.Dot(w0, dv) / dv2
	if t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) || t > horizon {
		return 0, 0, false
	}

	selfAt := r2.Add(selfPos, r2.Scale(t, selfVel))
	otherAt := r2.Add(otherPos, r2.Scale(t, otherVel))
	d := r2.Norm(r2.Sub(otherAt, selfAt))
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, 0, false
	}

	return math.Round(d), math.Round(t), true
}
