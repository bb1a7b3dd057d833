package attendance

import (
	"context"
	"errors"
	"sync"
)

type fakeRoster struct {
	students []Student
	err      error
	calls    int
}

func (f *fakeRoster) LoadRoster(_ context.Context, _ string) (*Roster, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return NewRoster(f.students)
}

type fakeDevice struct {
	mu         sync.Mutex
	acquireErr error
	burstErr   error
	acquired   bool
	released   int
}

func (f *fakeDevice) Acquire(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired = true
	return nil
}

func (f *fakeDevice) Burst(_ context.Context) ([]Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.burstErr != nil {
		return nil, f.burstErr
	}
	return []Frame{Frame("a"), Frame("b"), Frame("c")}, nil
}

func (f *fakeDevice) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = false
	f.released++
}

// scriptedRecognizer returns its results in order.
type scriptedRecognizer struct {
	mu      sync.Mutex
	results []RecognitionResult
	errs    []error
	calls   int
}

func (r *scriptedRecognizer) SubmitBurst(_ context.Context, frames []Frame) (RecognitionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	r.calls++
	if len(frames) == 0 {
		return RecognitionResult{}, ErrNoFrames
	}
	if i < len(r.errs) && r.errs[i] != nil {
		return RecognitionResult{}, r.errs[i]
	}
	if i < len(r.results) {
		return r.results[i], nil
	}
	return RecognitionResult{TotalFrames: len(frames)}, nil
}

// blockingRecognizer parks each call until release is closed. When
// honorCancel is set it returns early on context cancellation.
type blockingRecognizer struct {
	entered     chan struct{}
	release     chan struct{}
	result      RecognitionResult
	honorCancel bool
}

func newBlockingRecognizer(result RecognitionResult, honorCancel bool) *blockingRecognizer {
	return &blockingRecognizer{
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
		result:      result,
		honorCancel: honorCancel,
	}
}

func (r *blockingRecognizer) SubmitBurst(ctx context.Context, _ []Frame) (RecognitionResult, error) {
	r.entered <- struct{}{}
	if r.honorCancel {
		select {
		case <-ctx.Done():
			return RecognitionResult{}, ctx.Err()
		case <-r.release:
		}
	} else {
		<-r.release
	}
	return r.result, nil
}

type fakePersister struct {
	mu       sync.Mutex
	failures int
	records  []FinalizationRecord
	attempts int
}

func (p *fakePersister) SubmitAttendance(_ context.Context, record FinalizationRecord) (*FinalizationReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failures > 0 {
		p.failures--
		return nil, errors.New("connection refused")
	}
	p.records = append(p.records, record)
	return &FinalizationReceipt{RecordID: "rec-1", EmailSent: true, EmailRecipient: "prof@example.com"}, nil
}

func recognized(id string, name string) RecognitionResult {
	raw := NewRawID(id)
	return RecognitionResult{Recognized: true, RawID: &raw, DisplayName: name, Detections: 2, TotalFrames: 3}
}

func recognizedNumber(id int64, name string) RecognitionResult {
	raw := NewNumericRawID(id)
	return RecognitionResult{Recognized: true, RawID: &raw, DisplayName: name, Detections: 3, TotalFrames: 3}
}

var anaAndBen = []Student{{ID: "S1", Name: "Ana"}, {ID: "S2", Name: "Ben"}}
