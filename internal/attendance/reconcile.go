package attendance

import (
	"context"
	"slices"
)

// Persister durably records a finalized attendance record.
type Persister interface {
	SubmitAttendance(ctx context.Context, record FinalizationRecord) (*FinalizationReceipt, error)
}

// Reconcile partitions the roster into present and absent ids. Each roster id
// is tested once against present, so the two sides are disjoint and together
// cover the roster. Both sides keep roster order; unmatched ids are copied
// and sorted.
func Reconcile(courseID string, roster *Roster, present *PresenceSet, unmatched []CanonicalID) FinalizationRecord {
	record := FinalizationRecord{
		CourseID:   courseID,
		PresentIDs: make([]CanonicalID, 0, present.Len()),
		AbsentIDs:  make([]CanonicalID, 0, roster.Len()),
	}
	for _, id := range roster.IDs() {
		if present.Has(id) {
			record.PresentIDs = append(record.PresentIDs, id)
		} else {
			record.AbsentIDs = append(record.AbsentIDs, id)
		}
	}
	if len(unmatched) > 0 {
		record.UnmatchedIDs = slices.Clone(unmatched)
		slices.Sort(record.UnmatchedIDs)
	}
	return record
}
