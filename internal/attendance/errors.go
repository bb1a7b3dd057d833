package attendance

import "errors"

var (
	// ErrDeviceUnavailable means the camera could not be acquired.
	ErrDeviceUnavailable = errors.New("camera unavailable")
	// ErrNetwork wraps any failed boundary call (roster, recognition, persistence).
	ErrNetwork = errors.New("network error")
	// ErrUnknownIdentifier marks a recognized id that is not in the roster.
	ErrUnknownIdentifier = errors.New("recognized student is not in the roster")
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrCaptureInProgress rejects a capture while another one is outstanding.
	ErrCaptureInProgress = errors.New("capture already in progress")
	// ErrCaptureAbandoned is returned to a capture whose result arrived after the session stopped.
	ErrCaptureAbandoned = errors.New("capture abandoned: session stopped")
	// ErrFinalizeInProgress rejects a concurrent finalization attempt.
	ErrFinalizeInProgress = errors.New("finalization already in progress")
	// ErrInvalidCourse is returned for an empty course id.
	ErrInvalidCourse = errors.New("course id is required")
	// ErrUnknownCourse is returned when the backend does not know the course.
	ErrUnknownCourse = errors.New("unknown course")
	// ErrDuplicateStudent is returned when a roster lists the same id twice.
	ErrDuplicateStudent = errors.New("duplicate student id in roster")
	// ErrNoFrames is returned when a burst is empty.
	ErrNoFrames = errors.New("burst contains no frames")
)
