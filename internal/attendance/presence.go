package attendance

import (
	"slices"
)

// PresenceSet accumulates the ids confirmed present during a session.
// Insertion is idempotent.
type PresenceSet struct {
	ids map[CanonicalID]struct{}
}

// NewPresenceSet returns an empty set.
func NewPresenceSet() *PresenceSet {
	return &PresenceSet{ids: make(map[CanonicalID]struct{})}
}

// Add inserts id and reports whether it was newly added.
func (p *PresenceSet) Add(id CanonicalID) bool {
	if p.ids == nil {
		p.ids = make(map[CanonicalID]struct{})
	}
	if _, ok := p.ids[id]; ok {
		return false
	}
	p.ids[id] = struct{}{}
	return true
}

// Has reports whether id is present.
func (p *PresenceSet) Has(id CanonicalID) bool {
	if p == nil {
		return false
	}
	_, ok := p.ids[id]
	return ok
}

// Len returns the number of present ids.
func (p *PresenceSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.ids)
}

// Clear empties the set.
func (p *PresenceSet) Clear() {
	clear(p.ids)
}

// Sorted returns the ids in lexical order.
func (p *PresenceSet) Sorted() []CanonicalID {
	if p == nil {
		return nil
	}
	out := make([]CanonicalID, 0, len(p.ids))
	for id := range p.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
