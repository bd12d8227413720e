// Package target defines tracked AIS targets and the keyed store that holds them
package target

import (
	"time"
)

// Class tags reported by AIS transponders
const (
	ClassA    = "A"
	ClassB    = "B"
	ClassBase = "BASE"
	ClassAtoN = "ATON"
)

// AlarmState is the composite alarm state of a target
type AlarmState string

const (
	StateNone    AlarmState = ""
	StateWarning AlarmState = "warning"
	StateDanger  AlarmState = "danger"
)

// Raw holds the fields reported for a target. Numeric fields use nil for
// unknown; zero is a legitimate value.
type Raw struct {
	Class    string  `json:"class,omitempty"`
	TypeID   *int    `json:"type_id,omitempty"`
	TypeName string  `json:"type_name,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`  // degrees
	Longitude *float64 `json:"longitude,omitempty"` // degrees
	SOG       *float64 `json:"sog,omitempty"`       // m/s
	COG       *float64 `json:"cog,omitempty"`       // radians, 0 = north, clockwise
	Heading   *float64 `json:"heading,omitempty"`   // radians
	ROT       *float64 `json:"rot,omitempty"`

	Name        string   `json:"name,omitempty"`
	Callsign    string   `json:"callsign,omitempty"`
	IMO         string   `json:"imo,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Length      *float64 `json:"length,omitempty"` // meters
	Beam        *float64 `json:"beam,omitempty"`   // meters
	Draft       *float64 `json:"draft,omitempty"`  // meters
	Status      string   `json:"status,omitempty"`

	OffPosition *bool `json:"off_position,omitempty"`
	Virtual     *bool `json:"virtual,omitempty"`

	LastSeen time.Time `json:"last_seen"` // last position report
	Updated  time.Time `json:"updated"`   // last update of any field
}

// HasPosition reports whether both latitude and longitude are known
func (r Raw) HasPosition() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Derived holds fields recomputed every tick from the target's raw fields
// and the self target's raw fields.
type Derived struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	Range   *float64 `json:"range,omitempty"`   // meters
	Bearing *float64 `json:"bearing,omitempty"` // degrees [0,360)
	CPA     *float64 `json:"cpa,omitempty"`     // meters
	TCPA    *float64 `json:"tcpa,omitempty"`    // seconds

	GuardAlarm     bool `json:"guard_alarm"`
	CollisionAlarm bool `json:"collision_alarm"`
	CollisionWarn  bool `json:"collision_warning"`
	SARTAlarm      bool `json:"sart_alarm"`
	MOBAlarm       bool `json:"mob_alarm"`
	EPIRBAlarm     bool `json:"epirb_alarm"`

	State      AlarmState `json:"alarm_state,omitempty"`
	AlarmTypes []string   `json:"alarm_types,omitempty"`
	Order      int        `json:"order"`

	Age   float64 `json:"age"` // seconds since last position report
	Valid bool    `json:"valid"`
	Lost  bool    `json:"lost"`
}

// Target is a single tracked entity keyed by its 9-digit identity code
type Target struct {
	ID      string  `json:"id"`
	Raw     Raw     `json:"raw"`
	Derived Derived `json:"derived"`
	Muted   bool    `json:"muted"`
}

// Clone returns a deep copy safe to hand out of the store
func (t *Target) Clone() Target {
	c := *t
	c.Raw = t.Raw.clone()
	c.Derived = t.Derived.clone()
	return c
}

func (r Raw) clone() Raw {
	c := r
	c.TypeID = cloneInt(r.TypeID)
	c.Latitude = cloneFloat(r.Latitude)
	c.Longitude = cloneFloat(r.Longitude)
	c.SOG = cloneFloat(r.SOG)
	c.COG = cloneFloat(r.COG)
	c.Heading = cloneFloat(r.Heading)
	c.ROT = cloneFloat(r.ROT)
	c.Length = cloneFloat(r.Length)
	c.Beam = cloneFloat(r.Beam)
	c.Draft = cloneFloat(r.Draft)
	c.OffPosition = cloneBool(r.OffPosition)
	c.Virtual = cloneBool(r.Virtual)
	return c
}

func (d Derived) clone() Derived {
	c := d
	c.Range = cloneFloat(d.Range)
	c.Bearing = cloneFloat(d.Bearing)
	c.CPA = cloneFloat(d.CPA)
	c.TCPA = cloneFloat(d.TCPA)
	if d.AlarmTypes != nil {
		c.AlarmTypes = append([]string(nil), d.AlarmTypes...)
	}
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Bool returns a pointer to v
func Bool(v bool) *bool { return &v }
