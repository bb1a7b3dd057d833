package attendance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Recognizer submits one burst to the recognition service.
type Recognizer interface {
	SubmitBurst(ctx context.Context, frames []Frame) (RecognitionResult, error)
}

// Device is the camera a session captures bursts from.
// Release must return without waiting on in-flight bursts.
type Device interface {
	Acquire(ctx context.Context) error
	Burst(ctx context.Context) ([]Frame, error)
	Release()
}

// Dependencies are the external collaborators of a Session.
type Dependencies struct {
	Roster     RosterSource
	Recognizer Recognizer
	Persister  Persister
	Device     Device
}

// Observer is notified after each applied transition.
type Observer func(ev Event, snap Snapshot)

// Option configures a Session.
type Option func(*Session)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// CaptureOutcome is a recognition result resolved against the roster and
// waiting for the operator's confirmation.
type CaptureOutcome struct {
	Result         RecognitionResult `json:"result"`
	StudentID      CanonicalID       `json:"student_id,omitempty"`
	StudentName    string            `json:"student_name,omitempty"`
	InRoster       bool              `json:"in_roster"`
	AlreadyPresent bool              `json:"already_present"`
}

// ConfirmKind describes what a confirmation did.
type ConfirmKind string

// Confirmation kinds.
const (
	ConfirmAdded          ConfirmKind = "added"
	ConfirmAlreadyPresent ConfirmKind = "already_present"
	ConfirmNoMatch        ConfirmKind = "no_match"
	ConfirmUnknown        ConfirmKind = "unknown_identifier"
)

// Confirmation is the result of ConfirmNext.
type Confirmation struct {
	Kind         ConfirmKind `json:"kind"`
	StudentID    CanonicalID `json:"student_id,omitempty"`
	StudentName  string      `json:"student_name,omitempty"`
	PresentCount int         `json:"present_count"`
}

// Err returns ErrUnknownIdentifier for unknown confirmations and nil otherwise.
func (c Confirmation) Err() error {
	if c.Kind == ConfirmUnknown {
		return fmt.Errorf("%w: %s", ErrUnknownIdentifier, c.StudentID)
	}
	return nil
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State      State                `json:"state"`
	CourseID   string               `json:"course_id,omitempty"`
	RosterSize int                  `json:"roster_size"`
	Present    []Student            `json:"present"`
	Absent     []Student            `json:"absent"`
	Unmatched  []CanonicalID        `json:"unmatched,omitempty"`
	Pending    *CaptureOutcome      `json:"pending,omitempty"`
	Record     *FinalizationRecord  `json:"record,omitempty"`
	Receipt    *FinalizationReceipt `json:"receipt,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
}

// Session is one live attendance session. Its methods may be called from
// several goroutines; network calls run without holding the lock and at most
// one capture is outstanding at a time.
type Session struct {
	deps       Dependencies
	normalizer Normalizer
	observers  []Observer

	mu            sync.Mutex
	state         State
	courseID      string
	roster        *Roster
	present       *PresenceSet
	unmatched     map[CanonicalID]struct{}
	pending       *CaptureOutcome
	record        *FinalizationRecord
	receipt       *FinalizationReceipt
	lastErr       string
	epoch         uint64
	cancelCapture context.CancelFunc
	starting      bool
	finalizing    bool
	deviceHeld    bool
}

// NewSession creates an idle session.
func NewSession(deps Dependencies, opts ...Option) *Session {
	s := &Session{
		deps:      deps,
		state:     StateIdle,
		present:   NewPresenceSet(),
		unmatched: make(map[CanonicalID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CourseID returns the course of the running session.
func (s *Session) CourseID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.courseID
}

// Start loads the course roster and acquires the camera. On any failure the
// session stays idle.
func (s *Session) Start(ctx context.Context, courseID string) error {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return ErrInvalidCourse
	}

	s.mu.Lock()
	if s.starting {
		s.mu.Unlock()
		return fmt.Errorf("%w: start already in progress", ErrInvalidTransition)
	}
	if _, err := Transition(s.state, EventStart); err != nil {
		s.mu.Unlock()
		return err
	}
	s.starting = true
	s.mu.Unlock()

	roster, err := s.deps.Roster.LoadRoster(ctx, courseID)
	if err != nil {
		if !errors.Is(err, ErrUnknownCourse) {
			err = networkError("load roster for "+courseID, err)
		}
		return s.failStart(err)
	}
	if err := s.deps.Device.Acquire(ctx); err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		return s.failStart(err)
	}

	s.mu.Lock()
	s.starting = false
	s.state, _ = Transition(s.state, EventStart)
	s.courseID = courseID
	s.roster = roster
	s.present.Clear()
	clear(s.unmatched)
	s.pending = nil
	s.record = nil
	s.receipt = nil
	s.lastErr = ""
	s.deviceHeld = true
	s.mu.Unlock()

	s.notify(EventStart)
	return nil
}

func (s *Session) failStart(err error) error {
	s.mu.Lock()
	s.starting = false
	s.state, _ = Transition(s.state, EventStartFailed)
	s.lastErr = err.Error()
	s.mu.Unlock()

	s.notify(EventStartFailed)
	return err
}

// BeginCapture takes a burst from the camera, submits it for recognition and
// holds the resolved outcome for confirmation. A call made while another
// capture is outstanding returns ErrCaptureInProgress and changes nothing.
func (s *Session) BeginCapture(ctx context.Context) (*CaptureOutcome, error) {
	return s.beginCapture(ctx, nil)
}

// BeginCaptureFrames is BeginCapture for a burst the caller already holds,
// such as frames uploaded by a browser camera. The frames are recognized
// only if the capture is admitted; a rejected call drops them.
func (s *Session) BeginCaptureFrames(ctx context.Context, frames []Frame) (*CaptureOutcome, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return s.beginCapture(ctx, frames)
}

func (s *Session) beginCapture(ctx context.Context, frames []Frame) (*CaptureOutcome, error) {
	s.mu.Lock()
	next, err := Transition(s.state, EventBeginCapture)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = next
	s.epoch++
	epoch := s.epoch
	captureCtx, cancel := context.WithCancel(ctx)
	s.cancelCapture = cancel
	s.mu.Unlock()
	defer cancel()

	s.notify(EventBeginCapture)

	result, err := s.captureAndRecognize(captureCtx, frames)

	s.mu.Lock()
	if s.epoch != epoch || s.state != StateCapturing {
		s.mu.Unlock()
		return nil, ErrCaptureAbandoned
	}
	s.cancelCapture = nil
	if err != nil {
		s.state, _ = Transition(s.state, EventCaptureFailed)
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.notify(EventCaptureFailed)
		return nil, err
	}
	outcome := s.resolve(result)
	s.pending = &outcome
	s.state, _ = Transition(s.state, EventCaptureSucceeded)
	s.lastErr = ""
	s.mu.Unlock()

	s.notify(EventCaptureSucceeded)
	return &outcome, nil
}

func (s *Session) captureAndRecognize(ctx context.Context, frames []Frame) (RecognitionResult, error) {
	if frames == nil {
		var err error
		frames, err = s.deps.Device.Burst(ctx)
		if err != nil {
			if errors.Is(err, ErrDeviceUnavailable) {
				return RecognitionResult{}, err
			}
			return RecognitionResult{}, fmt.Errorf("%w: burst: %w", ErrDeviceUnavailable, err)
		}
	}
	if len(frames) == 0 {
		return RecognitionResult{}, ErrNoFrames
	}
	result, err := s.deps.Recognizer.SubmitBurst(ctx, frames)
	if err != nil {
		return RecognitionResult{}, networkError("recognize burst", err)
	}
	return result, nil
}

// resolve normalizes a recognition result against the roster. Callers hold s.mu.
func (s *Session) resolve(result RecognitionResult) CaptureOutcome {
	if result.Recognized && (result.RawID == nil || result.RawID.IsZero()) {
		result.Recognized = false
	}
	outcome := CaptureOutcome{Result: result}
	if !result.Recognized {
		return outcome
	}

	id, ok := s.normalizer.Normalize(*result.RawID, s.roster)
	outcome.StudentID = id
	outcome.InRoster = ok
	outcome.StudentName = result.DisplayName
	if ok {
		if st, found := s.roster.Lookup(id); found && st.Name != "" {
			outcome.StudentName = st.Name
		}
		outcome.AlreadyPresent = s.present.Has(id)
	}
	return outcome
}

// ConfirmNext accepts the pending outcome and returns to the active state.
// A recognized roster member is added to the presence set; confirming an id
// that is already present reports ConfirmAlreadyPresent.
func (s *Session) ConfirmNext() (Confirmation, error) {
	s.mu.Lock()
	next, err := Transition(s.state, EventConfirm)
	if err != nil {
		s.mu.Unlock()
		return Confirmation{}, err
	}
	pending := s.pending
	s.pending = nil
	s.state = next

	var conf Confirmation
	switch {
	case pending == nil || !pending.Result.Recognized:
		conf.Kind = ConfirmNoMatch
	case !pending.InRoster:
		s.unmatched[pending.StudentID] = struct{}{}
		conf.Kind = ConfirmUnknown
	case s.present.Add(pending.StudentID):
		conf.Kind = ConfirmAdded
	default:
		conf.Kind = ConfirmAlreadyPresent
	}
	if pending != nil {
		conf.StudentID = pending.StudentID
		conf.StudentName = pending.StudentName
	}
	conf.PresentCount = s.present.Len()
	s.mu.Unlock()

	s.notify(EventConfirm)
	return conf, nil
}

// Stop ends capturing: an in-flight capture is cancelled and its result
// discarded, the camera is released, and the roster is reconciled against the
// confirmed presences. Stop performs no network I/O; call Finalize to submit.
// Stopping a session that is already finalizing returns its record unchanged.
func (s *Session) Stop() (FinalizationRecord, error) {
	s.mu.Lock()
	next, err := Transition(s.state, EventStop)
	if err != nil {
		s.mu.Unlock()
		return FinalizationRecord{}, err
	}
	if s.state == StateFinalizing && s.record != nil {
		record := cloneRecord(*s.record)
		s.mu.Unlock()
		return record, nil
	}
	if s.cancelCapture != nil {
		s.cancelCapture()
		s.cancelCapture = nil
	}
	s.epoch++
	s.pending = nil
	s.state = next
	if s.deviceHeld {
		s.deps.Device.Release()
		s.deviceHeld = false
	}
	record := Reconcile(s.courseID, s.roster, s.present, s.unmatchedIDs())
	s.record = &record
	s.mu.Unlock()

	s.notify(EventStop)
	return cloneRecord(record), nil
}

// Finalize submits the reconciled record. On failure the session stays in the
// finalizing state with its roster and presences intact, and Finalize may be
// called again.
func (s *Session) Finalize(ctx context.Context) (*FinalizationReceipt, error) {
	s.mu.Lock()
	if s.state != StateFinalizing || s.record == nil {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: finalize in state %s", ErrInvalidTransition, state)
	}
	if s.finalizing {
		s.mu.Unlock()
		return nil, ErrFinalizeInProgress
	}
	s.finalizing = true
	record := cloneRecord(*s.record)
	s.mu.Unlock()

	receipt, err := s.deps.Persister.SubmitAttendance(ctx, record)

	s.mu.Lock()
	s.finalizing = false
	if err != nil {
		err = networkError("submit attendance", err)
		s.state, _ = Transition(s.state, EventFinalizeFailed)
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.notify(EventFinalizeFailed)
		return nil, err
	}
	if receipt == nil {
		receipt = &FinalizationReceipt{}
	}
	s.state, _ = Transition(s.state, EventFinalized)
	s.receipt = receipt
	s.lastErr = ""
	s.mu.Unlock()

	s.notify(EventFinalized)
	r := *receipt
	return &r, nil
}

// Reset returns a closed session to idle, dropping its roster and presences.
func (s *Session) Reset() error {
	s.mu.Lock()
	next, err := Transition(s.state, EventReset)
	if err != nil || s.starting {
		s.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("%w: start in progress", ErrInvalidTransition)
		}
		return err
	}
	s.state = next
	s.courseID = ""
	s.roster = nil
	s.present.Clear()
	clear(s.unmatched)
	s.pending = nil
	s.record = nil
	s.receipt = nil
	s.lastErr = ""
	s.mu.Unlock()

	s.notify(EventReset)
	return nil
}

// Snapshot returns the current view of the session, including the live
// present/absent partition of the roster.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:      s.state,
		CourseID:   s.courseID,
		RosterSize: s.roster.Len(),
		Present:    []Student{},
		Absent:     []Student{},
		Unmatched:  s.unmatchedIDs(),
		LastError:  s.lastErr,
	}
	for _, st := range s.roster.Students() {
		if s.present.Has(st.ID) {
			snap.Present = append(snap.Present, st)
		} else {
			snap.Absent = append(snap.Absent, st)
		}
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	if s.record != nil {
		r := cloneRecord(*s.record)
		snap.Record = &r
	}
	if s.receipt != nil {
		r := *s.receipt
		snap.Receipt = &r
	}
	return snap
}

// unmatchedIDs returns the unmatched ids sorted. Callers hold s.mu.
func (s *Session) unmatchedIDs() []CanonicalID {
	if len(s.unmatched) == 0 {
		return nil
	}
	ids := make([]CanonicalID, 0, len(s.unmatched))
	for id := range s.unmatched {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Session) notify(ev Event) {
	if len(s.observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, o := range s.observers {
		o(ev, snap)
	}
}

func cloneRecord(r FinalizationRecord) FinalizationRecord {
	r.PresentIDs = slices.Clone(r.PresentIDs)
	r.AbsentIDs = slices.Clone(r.AbsentIDs)
	r.UnmatchedIDs = slices.Clone(r.UnmatchedIDs)
	return r
}

func networkError(op string, err error) error {
	if errors.Is(err, ErrNetwork) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
}
