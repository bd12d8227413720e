package format

import (
	"github.com/agile-defense/vesselwatch/pkg/target"
)

// TargetRow is the display form of one target
type TargetRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Class     string `json:"class"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	SOG       string `json:"sog"`
	COG       string `json:"cog"`
	Heading   string `json:"heading"`
	Range     string `json:"range"`
	Bearing   string `json:"bearing"`
	CPA       string `json:"cpa"`
	TCPA      string `json:"tcpa"`
	Alarm     string `json:"alarm"`

	State string `json:"state,omitempty"`
	Order int    `json:"order"`
	Age   int    `json:"age"`
	Valid bool   `json:"valid"`
	Lost  bool   `json:"lost"`
	Muted bool   `json:"muted"`
}

// Row renders every displayed field of t
func Row(t target.Target) TargetRow {
	name := t.Raw.Name
	if name == "" {
		name = t.ID
	}
	return TargetRow{
		ID:        t.ID,
		Name:      name,
		Class:     t.Raw.Class,
		Latitude:  Latitude(t.Raw.Latitude),
		Longitude: Longitude(t.Raw.Longitude),
		SOG:       Speed(t.Raw.SOG),
		COG:       Course(t.Raw.COG),
		Heading:   Course(t.Raw.Heading),
		Range:     Range(t.Derived.Range),
		Bearing:   Bearing(t.Derived.Bearing),
		CPA:       CPA(t.Derived.CPA),
		TCPA:      TCPA(t.Derived.TCPA),
		Alarm:     Alarm(t.Derived.AlarmTypes),
		State:     string(t.Derived.State),
		Order:     t.Derived.Order,
		Age:       int(t.Derived.Age),
		Valid:     t.Derived.Valid,
		Lost:      t.Derived.Lost,
		Muted:     t.Muted,
	}
}

// Rows renders a slice of targets, keeping order
func Rows(targets []target.Target) []TargetRow {
	rows := make([]TargetRow, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, Row(t))
	}
	return rows
}
