package messages

import (
	"strings"
	"time"

	"github.com/agile-defense/vesselwatch/pkg/ingest"
)

// DeltaUpdate is a partial field update for one target
type DeltaUpdate struct {
	Envelope Envelope `json:"envelope"`

	Context   string             `json:"context"` // ends in the 9-digit target id
	Timestamp time.Time          `json:"timestamp"`
	Updates   []ingest.PathValue `json:"updates"`
}

func (d *DeltaUpdate) GetEnvelope() Envelope {
	return d.Envelope
}

func (d *DeltaUpdate) SetEnvelope(e Envelope) {
	d.Envelope = e
}

// Subject routes the update by the trailing id of its context
func (d *DeltaUpdate) Subject() string {
	if id, ok := ingest.ExtractID(d.Context); ok {
		return "vessel.delta." + id
	}
	return "vessel.delta.invalid"
}

// Delta converts the message to the form applied to the store
func (d *DeltaUpdate) Delta() ingest.Delta {
	return ingest.Delta{
		Context:   d.Context,
		Timestamp: d.Timestamp,
		Values:    d.Updates,
	}
}

// NewDeltaUpdate creates a delta update for the given context
func NewDeltaUpdate(source, sourceType, context string, ts time.Time) *DeltaUpdate {
	return &DeltaUpdate{
		Envelope:  NewEnvelope(source, sourceType),
		Context:   strings.TrimSpace(context),
		Timestamp: ts.UTC(),
	}
}

// Add appends a (path, value) pair
func (d *DeltaUpdate) Add(path string, value []byte) *DeltaUpdate {
	d.Updates = append(d.Updates, ingest.PathValue{Path: path, Value: value})
	return d
}
