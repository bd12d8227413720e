package risk

import (
	"math"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

// Alarm type names, in reporting order
const (
	AlarmGuard = "guard"
	AlarmCPA   = "cpa"
	AlarmSART  = "sart"
	AlarmMOB   = "mob"
	AlarmEPIRB = "epirb"
)

// Input is what the classifier reads for one target
type Input struct {
	ID    string
	SOG   *float64 // m/s
	Range *float64 // meters
	CPA   *float64 // meters
	TCPA  *float64 // seconds
}

// InputFor builds classifier input from a target's raw and derived fields
func InputFor(t target.Target) Input {
	return Input{
		ID:    t.ID,
		SOG:   t.Raw.SOG,
		Range: t.Derived.Range,
		CPA:   t.Derived.CPA,
		TCPA:  t.Derived.TCPA,
	}
}

// Assessment is the alarm state and priority of one target
type Assessment struct {
	Guard     bool
	Collision bool
	Warning   bool
	SART      bool
	MOB       bool
	EPIRB     bool

	State target.AlarmState
	Types []string
	Order int
}

// Apply copies the assessment into derived fields
func (a Assessment) Apply(d *target.Derived) {
	d.GuardAlarm = a.Guard
	d.CollisionAlarm = a.Collision
	d.CollisionWarn = a.Warning
	d.SARTAlarm = a.SART
	d.MOBAlarm = a.MOB
	d.EPIRBAlarm = a.EPIRB
	d.State = a.State
	d.AlarmTypes = a.Types
	d.Order = a.Order
}

// Classify evaluates alarms and priority for one target under profile p.
// Every rule is evaluated independently; there is no hysteresis.
func Classify(in Input, p Profile) Assessment {
	var a Assessment

	a.Guard = known(in.Range) &&
		*in.Range < p.Guard.Range*MetersPerNM &&
		speedGate(in.SOG, p.Guard.Speed)

	a.Collision = cpaAlarm(in, p.Danger)
	a.Warning = cpaAlarm(in, p.Warning)

	switch DeviceClassOf(in.ID) {
	case DeviceSART:
		a.SART = true
	case DeviceMOB:
		a.MOB = true
	case DeviceEPIRB:
		a.EPIRB = true
	}

	switch {
	case a.Guard || a.Collision || a.SART || a.MOB || a.EPIRB:
		a.State = target.StateDanger
	case a.Warning:
		a.State = target.StateWarning
	default:
		a.State = target.StateNone
	}

	if a.Guard {
		a.Types = append(a.Types, AlarmGuard)
	}
	if a.Collision || a.Warning {
		a.Types = append(a.Types, AlarmCPA)
	}
	if a.SART {
		a.Types = append(a.Types, AlarmSART)
	}
	if a.MOB {
		a.Types = append(a.Types, AlarmMOB)
	}
	if a.EPIRB {
		a.Types = append(a.Types, AlarmEPIRB)
	}

	a.Order = Priority(in, a.State)
	return a
}

func cpaAlarm(in Input, th Threshold) bool {
	return known(in.CPA) && *in.CPA < th.CPA*MetersPerNM &&
		known(in.TCPA) && *in.TCPA > 0 && *in.TCPA < th.TCPA &&
		speedGate(in.SOG, th.Speed)
}

// speedGate passes when the gate is zero or the target is faster than it
func speedGate(sog *float64, knots float64) bool {
	if knots == 0 {
		return true
	}
	return known(sog) && *sog > knots/KnotsPerMPS
}

func known(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
