package backend

import (
	"context"
	"fmt"

	"github.com/kozaktomas/attendance/internal/attendance"
)

// SubmitAttendance implements attendance.Persister. The backend stores the
// record and emails the course instructor when an address is on file.
func (c *Client) SubmitAttendance(ctx context.Context, record attendance.FinalizationRecord) (*attendance.FinalizationReceipt, error) {
	body := finalizeRequest{
		CourseID:  record.CourseID,
		Present:   idStrings(record.PresentIDs),
		Absent:    idStrings(record.AbsentIDs),
		Unmatched: idStrings(record.UnmatchedIDs),
	}
	if len(body.Unmatched) == 0 {
		body.Unmatched = nil
	}

	resp, err := doPostJSON[finalizeResponse](ctx, c, "api/presences/interactive/finalize", body)
	if err != nil {
		return nil, fmt.Errorf("submit attendance: %w", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = resp.ErrorEN
		}
		if msg == "" {
			msg = "backend reported failure"
		}
		return nil, fmt.Errorf("submit attendance: %s", msg)
	}

	receipt := &attendance.FinalizationReceipt{
		EmailSent: resp.EmailSent,
		Message:   resp.Message,
	}
	if resp.PresenceID != nil {
		receipt.RecordID = *resp.PresenceID
	}
	if resp.EmailRecipient != nil {
		receipt.EmailRecipient = *resp.EmailRecipient
	}
	return receipt, nil
}

func idStrings(ids []attendance.CanonicalID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
