package attendance

import (
	"context"
	"fmt"
)

// RosterSource loads the enrolled students of a course.
type RosterSource interface {
	LoadRoster(ctx context.Context, courseID string) (*Roster, error)
}

// Roster is an ordered, read-only snapshot of a course's students, unique by ID.
type Roster struct {
	students []Student
	index    map[CanonicalID]int
}

// NewRoster builds a roster snapshot. Students keep their given order.
func NewRoster(students []Student) (*Roster, error) {
	r := &Roster{
		students: make([]Student, 0, len(students)),
		index:    make(map[CanonicalID]int, len(students)),
	}
	for _, s := range students {
		if s.ID == "" {
			return nil, fmt.Errorf("student %q has an empty id", s.Name)
		}
		if _, dup := r.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStudent, s.ID)
		}
		r.index[s.ID] = len(r.students)
		r.students = append(r.students, s)
	}
	return r, nil
}

// Len returns the number of students.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.students)
}

// Students returns a copy of the students in roster order.
func (r *Roster) Students() []Student {
	if r == nil {
		return nil
	}
	out := make([]Student, len(r.students))
	copy(out, r.students)
	return out
}

// Lookup returns the student with the given id.
func (r *Roster) Lookup(id CanonicalID) (Student, bool) {
	if r == nil {
		return Student{}, false
	}
	i, ok := r.index[id]
	if !ok {
		return Student{}, false
	}
	return r.students[i], true
}

// Contains reports whether id is a roster member.
func (r *Roster) Contains(id CanonicalID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// IDs returns all roster ids in roster order.
func (r *Roster) IDs() []CanonicalID {
	if r == nil {
		return nil
	}
	ids := make([]CanonicalID, len(r.students))
	for i, s := range r.students {
		ids[i] = s.ID
	}
	return ids
}
