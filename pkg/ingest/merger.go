// Package ingest applies incremental and bulk updates onto the target store
package ingest

import (
	"time"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

// IDLength is the length of a target identity code
const IDLength = 9

// Delta is a partial update for a single target
type Delta struct {
	Context   string      `json:"context"`
	Timestamp time.Time   `json:"timestamp"`
	Values    []PathValue `json:"values"`
}

// ExtractID returns the last 9 characters of context when they are all
// ASCII digits.
func ExtractID(context string) (string, bool) {
	if len(context) < IDLength {
		return "", false
	}
	id := context[len(context)-IDLength:]
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return "", false
		}
	}
	return id, true
}

// Result describes the outcome of applying a delta
type Result struct {
	ID         string
	Created    bool
	Recognised int
}

// ProcessUpdate merges d into store. It returns ok == false without
// touching the store when the context does not end in a valid id.
// A delta without a timestamp is stamped with the time it was received.
func ProcessUpdate(d Delta, store *target.Store) (Result, bool) {
	id, ok := ExtractID(d.Context)
	if !ok {
		return Result{}, false
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}

	created := store.Seed(id)
	patch, n := ParsePatch(d.Values, d.Timestamp)
	store.UpsertFromDelta(id, patch)

	return Result{ID: id, Created: created, Recognised: n}, true
}
