package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

// Recognised update paths
const (
	PathPosition    = "navigation.position"
	PathCOG         = "navigation.courseOverGroundTrue"
	PathSOG         = "navigation.speedOverGround"
	PathHeading     = "navigation.headingTrue"
	PathROT         = "navigation.rateOfTurn"
	PathState       = "navigation.state"
	PathDestination = "navigation.destination.commonName"
	PathName        = "name"
	PathIdentity    = ""
	PathCallsign    = "communication.callsignVhf"
	PathIMO         = "registrations.imo"
	PathShipType    = "design.aisShipType"
	PathAtoNType    = "atonType"
	PathAISClass    = "sensors.ais.class"
	PathLength      = "design.length"
	PathBeam        = "design.beam"
	PathDraft       = "design.draft"
	PathOffPosition = "offPosition"
	PathVirtual     = "virtual"
)

// PathValue is a single (path, value) pair of an update
type PathValue struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

type positionValue struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type typeValue struct {
	ID   *int   `json:"id"`
	Name string `json:"name"`
}

type identityValue struct {
	Name          *string `json:"name"`
	Communication *struct {
		CallsignVhf *string `json:"callsignVhf"`
	} `json:"communication"`
	Registrations *struct {
		IMO *string `json:"imo"`
	} `json:"registrations"`
}

type lengthValue struct {
	Overall *float64 `json:"overall"`
}

type draftValue struct {
	Current *float64 `json:"current"`
	Maximum *float64 `json:"maximum"`
}

// ParsePatch converts update values into a patch. Unrecognised paths and
// values that fail to parse are skipped. Returns the number of fields
// recognised.
func ParsePatch(values []PathValue, ts time.Time) (target.Patch, int) {
	p := target.Patch{Timestamp: ts}
	n := 0
	for _, v := range values {
		if applyValue(&p, v) {
			n++
		}
	}
	return p, n
}

func applyValue(p *target.Patch, v PathValue) bool {
	switch v.Path {
	case PathPosition:
		var pos positionValue
		if !decode(v.Value, &pos) || !finite(pos.Latitude) || !finite(pos.Longitude) {
			return false
		}
		p.Position = &target.Position{Latitude: *pos.Latitude, Longitude: *pos.Longitude}
	case PathCOG:
		return decodeFloat(v.Value, &p.COG)
	case PathSOG:
		return decodeFloat(v.Value, &p.SOG)
	case PathHeading:
		return decodeFloat(v.Value, &p.Heading)
	case PathROT:
		return decodeFloat(v.Value, &p.ROT)
	case PathName:
		return decodeString(v.Value, &p.Name)
	case PathCallsign:
		return decodeString(v.Value, &p.Callsign)
	case PathIMO:
		return decodeString(v.Value, &p.IMO)
	case PathState:
		return decodeString(v.Value, &p.Status)
	case PathAISClass:
		return decodeString(v.Value, &p.Class)
	case PathDestination:
		return decodeString(v.Value, &p.Destination)
	case PathIdentity:
		return applyIdentity(p, v.Value)
	case PathShipType, PathAtoNType:
		var tv typeValue
		if !decode(v.Value, &tv) || tv.ID == nil {
			return false
		}
		id := *tv.ID
		name := tv.Name
		p.TypeID = &id
		p.TypeName = &name
	case PathLength:
		var lv lengthValue
		if decode(v.Value, &lv) && finite(lv.Overall) {
			p.Length = lv.Overall
			return true
		}
		return decodeFloat(v.Value, &p.Length)
	case PathBeam:
		return decodeFloat(v.Value, &p.Beam)
	case PathDraft:
		var dv draftValue
		if decode(v.Value, &dv) {
			switch {
			case finite(dv.Current):
				p.Draft = dv.Current
				return true
			case finite(dv.Maximum):
				p.Draft = dv.Maximum
				return true
			}
		}
		return decodeFloat(v.Value, &p.Draft)
	case PathOffPosition:
		return decodeBool(v.Value, &p.OffPosition)
	case PathVirtual:
		return decodeBool(v.Value, &p.Virtual)
	default:
		return false
	}
	return true
}

func applyIdentity(p *target.Patch, raw json.RawMessage) bool {
	var id identityValue
	if !decode(raw, &id) {
		return false
	}
	ok := false
	if id.Name != nil {
		p.Name = id.Name
		ok = true
	}
	if id.Communication != nil && id.Communication.CallsignVhf != nil {
		p.Callsign = id.Communication.CallsignVhf
		ok = true
	}
	if id.Registrations != nil && id.Registrations.IMO != nil {
		p.IMO = id.Registrations.IMO
		ok = true
	}
	return ok
}

func decode(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func decodeFloat(raw json.RawMessage, dst **float64) bool {
	var f *float64
	if !decode(raw, &f) || !finite(f) {
		return false
	}
	*dst = f
	return true
}

func decodeString(raw json.RawMessage, dst **string) bool {
	var s string
	if !decode(raw, &s) {
		return false
	}
	*dst = &s
	return true
}

func decodeBool(raw json.RawMessage, dst **bool) bool {
	var b bool
	if !decode(raw, &b) {
		return false
	}
	*dst = &b
	return true
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
