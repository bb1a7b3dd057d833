package handlers

import (
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/camera"
)

// DeviceFactory builds the capture device of a new web session. It returns
// the staging device when frames come from the browser, nil otherwise.
type DeviceFactory func(cameraReady bool) (attendance.Device, *camera.Remote)

// RemoteDevices is the DeviceFactory for browser-held cameras.
func RemoteDevices(maxSize int) DeviceFactory {
	return func(cameraReady bool) (attendance.Device, *camera.Remote) {
		r := camera.NewRemote(cameraReady, maxSize)
		return r, r
	}
}

// RegistryDeps are the collaborators shared by every web session.
type RegistryDeps struct {
	Roster     attendance.RosterSource
	Recognizer attendance.Recognizer
	Persister  attendance.Persister
	NewDevice  DeviceFactory
}

// LiveSession is an attendance session driven over the API.
type LiveSession struct {
	EventBroadcaster

	ID        string
	CreatedAt time.Time
	Session   *attendance.Session
	Remote    *camera.Remote

	stateMu   sync.Mutex
	updatedAt time.Time
}

// GetState returns the session state (implements SSESource).
func (l *LiveSession) GetState() attendance.State {
	return l.Session.State()
}

func (l *LiveSession) observe(kind attendance.Event, snap attendance.Snapshot) {
	l.stateMu.Lock()
	l.updatedAt = time.Now()
	l.stateMu.Unlock()
	l.SendEvent(SessionEvent{Type: string(kind), State: snap.State, Message: snap.LastError, Data: snap})
}

func (l *LiveSession) lastUpdate() time.Time {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.updatedAt
}

// SessionRegistry keeps the web sessions in memory.
type SessionRegistry struct {
	deps RegistryDeps
	ttl  time.Duration

	sessions map[string]*LiveSession
	mu       sync.RWMutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionRegistry creates a registry. Sessions that are closed or idle
// and untouched for ttl are dropped by Sweep.
func NewSessionRegistry(deps RegistryDeps, ttl time.Duration) *SessionRegistry {
	if deps.NewDevice == nil {
		deps.NewDevice = RemoteDevices(0)
	}
	return &SessionRegistry{
		deps:     deps,
		ttl:      ttl,
		sessions: make(map[string]*LiveSession),
		stopCh:   make(chan struct{}),
	}
}

// Create registers a new idle session.
func (m *SessionRegistry) Create(cameraReady bool) *LiveSession {
	device, remote := m.deps.NewDevice(cameraReady)
	now := time.Now()
	ls := &LiveSession{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Remote:    remote,
		updatedAt: now,
	}
	ls.Session = attendance.NewSession(attendance.Dependencies{
		Roster:     m.deps.Roster,
		Recognizer: m.deps.Recognizer,
		Persister:  m.deps.Persister,
		Device:     device,
	}, attendance.WithObserver(ls.observe))

	m.mu.Lock()
	m.sessions[ls.ID] = ls
	m.mu.Unlock()
	return ls
}

// Get retrieves a session by ID.
func (m *SessionRegistry) Get(id string) *LiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Delete removes a session and closes its listeners.
func (m *SessionRegistry) Delete(id string) {
	m.mu.Lock()
	ls, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		ls.CloseListeners()
	}
}

// List returns all sessions, oldest first.
func (m *SessionRegistry) List() []*LiveSession {
	m.mu.RLock()
	list := make([]*LiveSession, 0, len(m.sessions))
	for _, ls := range m.sessions {
		list = append(list, ls)
	}
	m.mu.RUnlock()

	slices.SortFunc(list, func(a, b *LiveSession) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return list
}

// Sweep drops closed or idle sessions last updated before now-ttl and
// returns how many were removed. Live and finalizing sessions are kept.
func (m *SessionRegistry) Sweep(now time.Time) int {
	var expired []string
	for _, ls := range m.List() {
		state := ls.Session.State()
		if state != attendance.StateClosed && state != attendance.StateIdle {
			continue
		}
		if now.Sub(ls.lastUpdate()) >= m.ttl {
			expired = append(expired, ls.ID)
		}
	}
	for _, id := range expired {
		m.Delete(id)
	}
	return len(expired)
}

// StartCleanup sweeps expired sessions every interval until Stop is called.
func (m *SessionRegistry) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case now := <-ticker.C:
				if n := m.Sweep(now); n > 0 {
					log.Printf("Removed %d finished attendance sessions", n)
				}
			}
		}
	}()
}

// Stop ends the cleanup goroutine.
func (m *SessionRegistry) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
