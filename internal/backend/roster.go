package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kozaktomas/attendance/internal/attendance"
)

// ListStudents returns the raw student records enrolled in a course.
func (c *Client) ListStudents(ctx context.Context, courseID string) ([]StudentRecord, error) {
	endpoint := "api/etudiants?code_cours=" + url.QueryEscape(courseID)
	resp, err := doGetJSON[studentsResponse](ctx, c, endpoint)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if resp.Success != nil && !*resp.Success {
		if resp.Error == "" {
			resp.Error = "backend reported failure"
		}
		return nil, fmt.Errorf("list students: %s", resp.Error)
	}

	// Older backends return the list under "data".
	if len(resp.Students) == 0 {
		return resp.Data, nil
	}
	return resp.Students, nil
}

// LoadRoster implements attendance.RosterSource.
func (c *Client) LoadRoster(ctx context.Context, courseID string) (*attendance.Roster, error) {
	records, err := c.ListStudents(ctx, courseID)
	if IsNotFoundError(err) {
		return nil, fmt.Errorf("%w %s: %w", attendance.ErrUnknownCourse, courseID, err)
	}
	if err != nil {
		return nil, err
	}

	students := make([]attendance.Student, 0, len(records))
	seen := make(map[attendance.CanonicalID]struct{}, len(records))
	for _, r := range records {
		id := attendance.CanonicalID(r.ID())
		if id == "" {
			continue
		}
		// The backend keys students by number; a repeated number is the same student.
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		students = append(students, attendance.Student{ID: id, Name: r.Name})
	}

	roster, err := attendance.NewRoster(students)
	if err != nil {
		return nil, fmt.Errorf("build roster for %s: %w", courseID, err)
	}
	return roster, nil
}
