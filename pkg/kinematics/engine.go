package kinematics

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

// DefaultHorizon is the furthest future closest approach that is reported
const DefaultHorizon = 3 * time.Hour

// NoFixError reports that the self target is missing or has no position.
// Every range, bearing and CPA depends on the self fix, so the whole
// recompute is abandoned.
type NoFixError struct {
	SelfID  string
	Missing bool
}

func (e *NoFixError) Error() string {
	if e.Missing {
		return fmt.Sprintf("no fix: self target %s not found", e.SelfID)
	}
	return fmt.Sprintf("no fix: self target %s has no position", e.SelfID)
}

// Solution is the kinematic state of one target relative to self
type Solution struct {
	Position      r2.Vec
	Velocity      r2.Vec
	VelocityKnown bool

	Range   *float64
	Bearing *float64
	CPA     *float64
	TCPA    *float64
}

// Compute solves every target against the self target. The self target
// only receives its projection and velocity.
func Compute(targets []target.Target, selfID string, horizon time.Duration) (map[string]Solution, error) {
	var self *target.Target
	for i := range targets {
		if targets[i].ID == selfID {
			self = &targets[i]
			break
		}
	}
	if self == nil {
		return nil, &NoFixError{SelfID: selfID, Missing: true}
	}
	if !self.Raw.HasPosition() {
		return nil, &NoFixError{SelfID: selfID}
	}

	refLat := *self.Raw.Latitude
	selfSol := project(self.Raw, refLat)

	out := make(map[string]Solution, len(targets))
	out[selfID] = selfSol

	for i := range targets {
		t := &targets[i]
		if t.ID == selfID {
			continue
		}
		out[t.ID] = solve(self.Raw, selfSol, t.Raw, refLat, horizon.Seconds())
	}
	return out, nil
}

func project(r target.Raw, refLat float64) Solution {
	var s Solution
	if r.HasPosition() {
		s.Position = Project(*r.Latitude, *r.Longitude, refLat)
	}
	if r.SOG != nil && r.COG != nil {
		s.Velocity = Velocity(*r.SOG, *r.COG)
		s.VelocityKnown = true
	}
	return s
}

func solve(selfRaw target.Raw, selfSol Solution, r target.Raw, refLat, horizon float64) Solution {
	s := project(r, refLat)
	if !r.HasPosition() {
		return s
	}

	lat1, lon1 := *selfRaw.Latitude, *selfRaw.Longitude
	lat2, lon2 := *r.Latitude, *r.Longitude

	rng := Haversine(lat1, lon1, lat2, lon2)
	brg := NormalizeDegrees(math.Round(RhumbBearing(lat1, lon1, lat2, lon2)))
	if isFinite(rng) && isFinite(brg) {
		s.Range = &rng
		s.Bearing = &brg
	}

	if !s.VelocityKnown || !selfSol.VelocityKnown {
		return s
	}
	if cpa, tcpa, ok := ClosestApproach(selfSol.Position, selfSol.Velocity, s.Position, s.Velocity, horizon); ok {
		s.CPA = &cpa
		s.TCPA = &tcpa
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
