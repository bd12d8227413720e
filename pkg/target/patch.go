package target

import "time"

// Position is a latitude/longitude pair in degrees
type Position struct {
	Latitude  float64
	Longitude float64
}

// Patch carries one optional field per recognised update path. A nil
// field is left untouched when the patch is applied.
type Patch struct {
	Position *Position
	COG      *float64
	SOG      *float64
	Heading  *float64
	ROT      *float64

	Name        *string
	Callsign    *string
	IMO         *string
	TypeID      *int
	TypeName    *string
	Status      *string
	Class       *string
	Destination *string
	Length      *float64
	Beam        *float64
	Draft       *float64
	OffPosition *bool
	Virtual     *bool

	// Timestamp of the update, used for LastSeen on position reports
	Timestamp time.Time
}

// Apply merges the fields present in the patch into r
func (p Patch) Apply(r *Raw) {
	if p.Position != nil {
		r.Latitude = Float(p.Position.Latitude)
		r.Longitude = Float(p.Position.Longitude)
		if p.Timestamp.After(r.LastSeen) {
			r.LastSeen = p.Timestamp
		}
	}
	if p.COG != nil {
		r.COG = Float(*p.COG)
	}
	if p.SOG != nil {
		r.SOG = Float(*p.SOG)
	}
	if p.Heading != nil {
		r.Heading = Float(*p.Heading)
	}
	if p.ROT != nil {
		r.ROT = Float(*p.ROT)
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Callsign != nil {
		r.Callsign = *p.Callsign
	}
	if p.IMO != nil {
		r.IMO = *p.IMO
	}
	if p.TypeID != nil {
		r.TypeID = Int(*p.TypeID)
	}
	if p.TypeName != nil {
		r.TypeName = *p.TypeName
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Class != nil {
		r.Class = *p.Class
	}
	if p.Destination != nil {
		r.Destination = *p.Destination
	}
	if p.Length != nil {
		r.Length = Float(*p.Length)
	}
	if p.Beam != nil {
		r.Beam = Float(*p.Beam)
	}
	if p.Draft != nil {
		r.Draft = Float(*p.Draft)
	}
	if p.OffPosition != nil {
		r.OffPosition = Bool(*p.OffPosition)
	}
	if p.Virtual != nil {
		r.Virtual = Bool(*p.Virtual)
	}
	if !p.Timestamp.IsZero() && p.Timestamp.After(r.Updated) {
		r.Updated = p.Timestamp
	}
}
