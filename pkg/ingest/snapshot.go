package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

// Snapshot maps a context identifier to a nested field object in which
// leaves are either plain values or {"value": ..., "timestamp": ...}
// objects.
type Snapshot map[string]json.RawMessage

// DecodeSnapshot reads a snapshot document
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}

// LoadStats summarises a bulk load
type LoadStats struct {
	Loaded    int
	Stale     int
	Malformed int
}

// BulkLoad seeds store from s. Entries whose position report is older than
// maxAge, or that carry no position timestamp, are discarded; the self
// target is always loaded.
func BulkLoad(s Snapshot, store *target.Store, maxAge time.Duration, now time.Time) LoadStats {
	var stats LoadStats

	contexts := make([]string, 0, len(s))
	for c := range s {
		contexts = append(contexts, c)
	}
	sort.Strings(contexts)

	for _, c := range contexts {
		id, ok := ExtractID(c)
		if !ok {
			stats.Malformed++
			continue
		}

		values, stamps, err := flatten(s[c])
		if err != nil {
			stats.Malformed++
			continue
		}

		ts, hasFix := stamps[PathPosition]
		if id != store.SelfID() && (!hasFix || now.Sub(ts) > maxAge) {
			stats.Stale++
			continue
		}
		if !hasFix {
			ts = latest(stamps)
		}

		patch, _ := ParsePatch(values, ts)
		var raw target.Raw
		patch.Apply(&raw)
		store.UpsertFromSnapshot(id, raw)
		stats.Loaded++
	}

	return stats
}

type leaf struct {
	Value     json.RawMessage `json:"value"`
	Timestamp *time.Time      `json:"timestamp"`
}

// flatten walks a nested object and returns its leaves as path/value pairs
// together with the timestamp attached to each leaf that has one.
func flatten(raw json.RawMessage) ([]PathValue, map[string]time.Time, error) {
	var values []PathValue
	stamps := make(map[string]time.Time)

	var walk func(prefix string, raw json.RawMessage) error
	walk = func(prefix string, raw json.RawMessage) error {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			// Not an object: a plain leaf
			values = append(values, PathValue{Path: prefix, Value: raw})
			return nil
		}

		if v, ok := obj["value"]; ok {
			var l leaf
			if err := json.Unmarshal(raw, &l); err != nil {
				return err
			}
			values = append(values, PathValue{Path: prefix, Value: v})
			if l.Timestamp != nil {
				stamps[prefix] = *l.Timestamp
			}
			return nil
		}

		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := walk(joinPath(prefix, k), obj[k]); err != nil {
				return err
			}
		}
		return nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, nil, fmt.Errorf("snapshot entry is not an object: %w", err)
	}
	if err := walk("", raw); err != nil {
		return nil, nil, err
	}
	return values, stamps, nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.Join([]string{prefix, key}, ".")
}

func latest(stamps map[string]time.Time) time.Time {
	var t time.Time
	for _, s := range stamps {
		if s.After(t) {
			t = s
		}
	}
	return t
}
