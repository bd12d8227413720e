package messages

import (
	"time"

	"github.com/agile-defense/vesselwatch/pkg/format"
	"github.com/agile-defense/vesselwatch/pkg/target"
)

// TargetReport is the ranked target list published after every tick
type TargetReport struct {
	Envelope Envelope `json:"envelope"`

	SelfID  string             `json:"self_id"`
	Profile string             `json:"profile"`
	NoFix   bool               `json:"no_fix"`
	Self    *format.TargetRow  `json:"self,omitempty"`
	Targets []format.TargetRow `json:"targets"`
}

func (r *TargetReport) GetEnvelope() Envelope {
	return r.Envelope
}

func (r *TargetReport) SetEnvelope(e Envelope) {
	r.Envelope = e
}

func (r *TargetReport) Subject() string {
	return "target.report." + r.SelfID
}

// NewTargetReport builds a report from ranked targets. self is nil until
// the first own-ship update arrives.
func NewTargetReport(source, selfID string, self *target.Target, ranked []target.Target, profile string, noFix bool) *TargetReport {
	r := &TargetReport{
		Envelope: NewEnvelope(source, "tracker"),
		SelfID:   selfID,
		Profile:  profile,
		NoFix:    noFix,
		Targets:  format.Rows(ranked),
	}
	if self != nil {
		row := format.Row(*self)
		r.Self = &row
	}
	return r
}

// AlarmEvent is published when a target enters the danger state
type AlarmEvent struct {
	Envelope Envelope `json:"envelope"`

	TargetID string            `json:"target_id"`
	Name     string            `json:"name,omitempty"`
	State    target.AlarmState `json:"state"`
	Types    []string          `json:"types"`

	Range *float64 `json:"range,omitempty"` // meters
	CPA   *float64 `json:"cpa,omitempty"`   // meters
	TCPA  *float64 `json:"tcpa,omitempty"`  // seconds

	RaisedAt time.Time `json:"raised_at"`
}

func (a *AlarmEvent) GetEnvelope() Envelope {
	return a.Envelope
}

func (a *AlarmEvent) SetEnvelope(e Envelope) {
	a.Envelope = e
}

func (a *AlarmEvent) Subject() string {
	return "alarm." + string(a.State) + "." + a.TargetID
}

// NewAlarmEvent creates an alarm event for t
func NewAlarmEvent(source string, t target.Target) *AlarmEvent {
	return &AlarmEvent{
		Envelope: NewEnvelope(source, "tracker").WithCorrelation(t.ID),
		TargetID: t.ID,
		Name:     t.Raw.Name,
		State:    t.Derived.State,
		Types:    t.Derived.AlarmTypes,
		Range:    t.Derived.Range,
		CPA:      t.Derived.CPA,
		TCPA:     t.Derived.TCPA,
		RaisedAt: time.Now().UTC(),
	}
}
