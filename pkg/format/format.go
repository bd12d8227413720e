// Package format renders target fields as fixed-format display strings
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/agile-defense/vesselwatch/pkg/risk"
)

// Null is shown for any unknown value
const Null = "---"

// Latitude renders degrees as "N 39° 57.0689"
func Latitude(deg *float64) string {
	if !known(deg) {
		return Null
	}
	hemi := "N"
	if *deg < 0 {
		hemi = "S"
	}
	return hemi + " " + degreesMinutes(math.Abs(*deg), 2)
}

// Longitude renders degrees as "W 075° 10.1234"
func Longitude(deg *float64) string {
	if !known(deg) {
		return Null
	}
	hemi := "E"
	if *deg < 0 {
		hemi = "W"
	}
	return hemi + " " + degreesMinutes(math.Abs(*deg), 3)
}

func degreesMinutes(abs float64, width int) string {
	d := math.Floor(abs)
	m := math.Round((abs-d)*60*10000) / 10000
	if m >= 60 {
		d++
		m = 0
	}
	return fmt.Sprintf("%0*d° %07.4f", width, int(d), m)
}

// CPA renders meters as nautical miles, "0.42 NM"
func CPA(meters *float64) string {
	if !known(meters) {
		return Null
	}
	return fmt.Sprintf("%.2f NM", *meters/risk.MetersPerNM)
}

// Range renders meters as nautical miles, "3.10 NM"
func Range(meters *float64) string {
	return CPA(meters)
}

// TCPA renders seconds as hh:mm:ss from one hour up, else mm:ss
func TCPA(seconds *float64) string {
	if !known(seconds) || *seconds < 0 {
		return Null
	}
	total := int(math.Round(*seconds))
	h, m, s := total/3600, (total%3600)/60, total%60
	if total >= 3600 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Speed renders m/s as knots, "12.3 kn"
func Speed(mps *float64) string {
	if !known(mps) {
		return Null
	}
	return fmt.Sprintf("%.1f kn", *mps*risk.KnotsPerMPS)
}

// Course renders an angle in radians as integer degrees, "87 T"
func Course(rad *float64) string {
	if !known(rad) {
		return Null
	}
	return angle(*rad * 180 / math.Pi)
}

// Bearing renders an angle already in degrees
func Bearing(deg *float64) string {
	if !known(deg) {
		return Null
	}
	return angle(*deg)
}

func angle(deg float64) string {
	d := int(math.Round(deg)) % 360
	if d < 0 {
		d += 360
	}
	return fmt.Sprintf("%d T", d)
}

// Alarm renders the alarm type list, or Null when nothing fired
func Alarm(types []string) string {
	if len(types) == 0 {
		return Null
	}
	return strings.ToUpper(strings.Join(types, ","))
}

func known(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
