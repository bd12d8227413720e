// Package kinematics computes planar projections, range, bearing and
// closest point of approach between the self target and other targets.
//
// The planar frame is a local equirectangular projection centred on the
// self latitude. It is accurate only at collision-avoidance ranges (tens of
// nautical miles) and must not be used for long-range navigation.
package kinematics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MetersPerDegree is the length of one degree of latitude
	MetersPerDegree = 111120.0
	// EarthRadius is the mean earth radius used by the haversine formula
	EarthRadius = 6371000.0
	// MaxLatitude bounds the latitude used for the longitude scale
	MaxLatitude = 89.9
)

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// ClampLatitude bounds lat to [-MaxLatitude, MaxLatitude]
func ClampLatitude(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

// Project maps a position into the planar frame defined by refLat
func Project(lat, lon, refLat float64) r2.Vec {
	scale := math.Cos(toRadians(ClampLatitude(refLat)))
	return r2.Vec{
		X: lon * MetersPerDegree * scale,
		Y: lat * MetersPerDegree,
	}
}

// Velocity returns the planar velocity for speed (m/s) and course (radians,
// 0 = north, clockwise positive).
func Velocity(speed, course float64) r2.Vec {
	return r2.Vec{
		X: speed * math.Sin(course),
		Y: speed * math.Cos(course),
	}
}

// Haversine returns the great-circle distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// RhumbBearing returns the constant-heading bearing from the first position
// to the second in degrees, in [0,360).
func RhumbBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(ClampLatitude(lat1))
	phi2 := toRadians(ClampLatitude(lat2))
	dLambda := toRadians(lon2 - lon1)

	// take the shorter way round the antimeridian
	if math.Abs(dLambda) > math.Pi {
		if dLambda > 0 {
			dLambda = -(2*math.Pi - dLambda)
		} else {
			dLambda = 2*math.Pi + dLambda
		}
	}

	dPsi := math.Log(math.Tan(math.Pi/4+phi2/2) / math.Tan(math.Pi/4+phi1/2))
	theta := math.Atan2(dLambda, dPsi)

	return NormalizeDegrees(toDegrees(theta))
}

// NormalizeDegrees folds deg into [0,360)
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
