package session

import (
	"sync"
	"time"

	"github.com/ansel1/merry/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/cliproom/cliproom/dispatch"
)

var ErrNotFound = merry.Sentinel("session not found")

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Manager is the registry of live sessions, in memory only: a session is a
// browser tab's state and dies with the process. Sessions idle past the TTL
// are closed by a janitor, releasing their spooled files.
type Manager struct {
	dispatcher    *dispatch.Dispatcher
	spoolDir      string
	ttl           time.Duration
	maxMergeClips int
	logger        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	stop     chan struct{}
	stopOnce sync.Once
}

func NewManager(dispatcher *dispatch.Dispatcher, spoolDir string, ttl time.Duration, maxMergeClips int) *Manager {
	m := &Manager{
		dispatcher:    dispatcher,
		spoolDir:      spoolDir,
		ttl:           ttl,
		maxMergeClips: maxMergeClips,
		logger:        log.With().Str("component", "sessions").Logger(),
		sessions:      map[string]*entry{},
		stop:          make(chan struct{}),
	}
	if ttl > 0 {
		go m.janitor()
	}
	return m
}

// Create registers a fresh session in single mode.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.dispatcher, m.spoolDir, m.maxMergeClips)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{session: s, lastSeen: time.Now()}
	return s
}

// Get looks a session up and marks it seen.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, merry.Wrap(ErrNotFound)
	}
	e.lastSeen = time.Now()
	return e.session, nil
}

// Close removes one session from the registry and releases what it held.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return merry.Wrap(ErrNotFound)
	}
	e.session.Close()
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops the janitor and closes every live session.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.mu.Lock()
	remaining := lo.Values(m.sessions)
	m.sessions = map[string]*entry{}
	m.mu.Unlock()
	for _, e := range remaining {
		e.session.Close()
	}
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(m.sweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweepInterval() time.Duration {
	interval := m.ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// sweep closes sessions idle past the TTL.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	var expired []*Session
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, e.session)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.logger.Info().Str("session", s.ID).Msg("closing idle session")
		s.Close()
	}
}
