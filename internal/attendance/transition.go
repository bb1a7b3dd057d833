package attendance

import "fmt"

// State is the lifecycle position of a session.
type State string

// Session states.
const (
	StateIdle                 State = "idle"
	StateActive               State = "active"
	StateCapturing            State = "capturing"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateFinalizing           State = "finalizing"
	StateClosed               State = "closed"
)

// Terminal reports whether the state only allows a reset.
func (s State) Terminal() bool {
	return s == StateClosed
}

// Live reports whether the session holds the camera and accepts stop.
func (s State) Live() bool {
	return s == StateActive || s == StateCapturing || s == StateAwaitingConfirmation
}

// Event is an input to the session state machine.
type Event string

// Session events.
const (
	EventStart            Event = "start"
	EventStartFailed      Event = "start_failed"
	EventBeginCapture     Event = "begin_capture"
	EventCaptureSucceeded Event = "capture_succeeded"
	EventCaptureFailed    Event = "capture_failed"
	EventConfirm          Event = "confirm"
	EventStop             Event = "stop"
	EventFinalized        Event = "finalized"
	EventFinalizeFailed   Event = "finalize_failed"
	EventReset            Event = "reset"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart:       StateActive,
		EventStartFailed: StateIdle,
		EventReset:       StateIdle,
	},
	StateActive: {
		EventBeginCapture: StateCapturing,
		EventStop:         StateFinalizing,
	},
	StateCapturing: {
		EventCaptureSucceeded: StateAwaitingConfirmation,
		EventCaptureFailed:    StateActive,
		EventStop:             StateFinalizing,
	},
	StateAwaitingConfirmation: {
		EventConfirm: StateActive,
		EventStop:    StateFinalizing,
	},
	StateFinalizing: {
		EventFinalized:      StateClosed,
		EventFinalizeFailed: StateFinalizing,
		EventStop:           StateFinalizing,
	},
	StateClosed: {
		EventReset: StateIdle,
	},
}

// Transition returns the state reached by applying ev in from. It has no side
// effects; the Session applies the effects that accompany each transition.
func Transition(from State, ev Event) (State, error) {
	if from == StateCapturing && ev == EventBeginCapture {
		return from, ErrCaptureInProgress
	}
	next, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev, from)
	}
	return next, nil
}
