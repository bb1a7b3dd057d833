// Package attendance implements the live-capture attendance session: roster
// snapshot, identifier normalization, presence accumulation, the session state
// machine and the final present/absent reconciliation.
package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CanonicalID is the roster-side identity of a student.
type CanonicalID string

// Student is one enrolled member of a course roster.
type Student struct {
	ID   CanonicalID `json:"id"`
	Name string      `json:"name"`
}

// Frame is one encoded still image of a burst.
type Frame []byte

// RawID is an identifier as reported by the recognition service. The service
// may encode it as a JSON string or a JSON number.
type RawID struct {
	text     string
	isNumber bool
}

// NewRawID wraps a textual identifier.
func NewRawID(s string) RawID {
	return RawID{text: s}
}

// NewNumericRawID wraps a numeric identifier.
func NewNumericRawID(n int64) RawID {
	return RawID{text: strconv.FormatInt(n, 10), isNumber: true}
}

// String returns the identifier's textual form.
func (r RawID) String() string {
	return r.text
}

// IsNumber reports whether the identifier was encoded as a JSON number.
func (r RawID) IsNumber() bool {
	return r.isNumber
}

// IsZero reports whether the identifier is empty.
func (r RawID) IsZero() bool {
	return r.text == ""
}

// UnmarshalJSON accepts both "42" and 42.
func (r *RawID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = RawID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal raw id: %w", err)
		}
		*r = RawID{text: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unmarshal raw id: %w", err)
	}
	*r = RawID{text: n.String(), isNumber: true}
	return nil
}

// MarshalJSON writes the identifier back in the encoding it arrived in.
func (r RawID) MarshalJSON() ([]byte, error) {
	if r.isNumber {
		return []byte(r.text), nil
	}
	return json.Marshal(r.text)
}

// RecognitionResult is the verdict of one burst submission.
type RecognitionResult struct {
	Recognized  bool   `json:"recognized"`
	RawID       *RawID `json:"raw_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Detections  int    `json:"detections"`
	TotalFrames int    `json:"total_frames"`
}

// FinalizationRecord is the reconciled payload submitted once per session.
// PresentIDs and AbsentIDs partition the roster; UnmatchedIDs are recognized
// identifiers that were not found in it.
type FinalizationRecord struct {
	CourseID     string        `json:"course_id"`
	PresentIDs   []CanonicalID `json:"present_ids"`
	AbsentIDs    []CanonicalID `json:"absent_ids"`
	UnmatchedIDs []CanonicalID `json:"unmatched_ids,omitempty"`
}

// FinalizationReceipt is the persistence service's acknowledgement.
type FinalizationReceipt struct {
	RecordID       string `json:"record_id,omitempty"`
	EmailSent      bool   `json:"email_sent"`
	EmailRecipient string `json:"email_recipient,omitempty"`
	Message        string `json:"message,omitempty"`
}
