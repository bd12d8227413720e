package target

import (
	"sort"
	"sync"
)

// Store is the keyed collection of targets. The self id is fixed for the
// lifetime of the store and can never be removed.
type Store struct {
	mu      sync.RWMutex
	selfID  string
	targets map[string]*Target
}

// NewStore creates an empty store protecting selfID from removal
func NewStore(selfID string) *Store {
	return &Store{
		selfID:  selfID,
		targets: make(map[string]*Target),
	}
}

// SelfID returns the id of the self target
func (s *Store) SelfID() string {
	return s.selfID
}

// UpsertFromSnapshot replaces all raw fields for id, creating the target if
// absent. Derived and session fields are preserved.
func (s *Store) UpsertFromSnapshot(id string, raw Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[id]
	if !ok {
		t = &Target{ID: id}
		s.targets[id] = t
	}
	t.Raw = raw.clone()
}

// UpsertFromDelta merges the fields present in p into the target for id.
// Reports whether the target was created by this call.
func (s *Store) UpsertFromDelta(id string, p Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[id]
	if !ok {
		t = &Target{ID: id}
		s.targets[id] = t
	}
	p.Apply(&t.Raw)
	return !ok
}

// Seed creates a target with zeroed speed and course if id is unknown.
// Reports whether a target was created.
func (s *Store) Seed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.targets[id]; ok {
		return false
	}
	s.targets[id] = &Target{
		ID:  id,
		Raw: Raw{SOG: Float(0), COG: Float(0)},
	}
	return true
}

// Get returns a copy of the target for id
func (s *Store) Get(id string) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.targets[id]
	if !ok {
		return Target{}, false
	}
	return t.Clone(), true
}

// All returns copies of every target ordered by id
func (s *Store) All() []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Target, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of targets
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targets)
}

// Remove deletes the target for id. The self target is never removed.
func (s *Store) Remove(id string) bool {
	if id == s.selfID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.targets[id]; !ok {
		return false
	}
	delete(s.targets, id)
	return true
}

// SetDerived replaces the derived fields of an existing target. Targets
// removed since the tick snapshot was taken are skipped.
func (s *Store) SetDerived(id string, d Derived) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[id]
	if !ok {
		return false
	}
	t.Derived = d.clone()
	return true
}

// SetMuted sets the operator mute flag
func (s *Store) SetMuted(id string, muted bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[id]
	if !ok {
		return false
	}
	t.Muted = muted
	return true
}
