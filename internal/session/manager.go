// manager.go - Session registry
//
// This file contains:
// - Manager: owns the live sessions, enforces the session cap, and
//   reaps idle sessions in the background

package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HyphaGroup/gevulot/internal/conversation"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/metrics"
	"github.com/HyphaGroup/gevulot/internal/poll"
)

// ManagerConfig carries the shared collaborators handed to every session
type ManagerConfig struct {
	Orchestrator Orchestrator
	Store        *conversation.Store // nil disables persistence
	Tuning       poll.Tuning
	StallTimeout time.Duration
	BufferSize   int           // per-session event buffer, 0 means DefaultEventBufferSize
	MaxSessions  int           // 0 means DefaultMaxSessions
	IdleTimeout  time.Duration // 0 means DefaultSessionIdleTimeout
}

// Manager owns the set of live sessions
type Manager struct {
	orch        Orchestrator
	store       *conversation.Store
	tuning      poll.Tuning
	stall       time.Duration
	bufferSize  int
	maxSessions int
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager and starts its cleanup loop
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSessionIdleTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		orch:        cfg.Orchestrator,
		store:       cfg.Store,
		tuning:      cfg.Tuning,
		stall:       cfg.StallTimeout,
		bufferSize:  cfg.BufferSize,
		maxSessions: cfg.MaxSessions,
		idleTimeout: cfg.IdleTimeout,
		sessions:    make(map[string]*Session),
		ctx:         ctx,
		cancel:      cancel,
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Create starts a new session, enforcing the session cap
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("session limit reached (%d active)", m.maxSessions)
	}

	id := newSessionID()
	s := New(id, Config{
		Orchestrator: m.orch,
		Store:        m.store,
		Tuning:       m.tuning,
		StallTimeout: m.stall,
		BufferSize:   m.bufferSize,
	})
	m.sessions[id] = s
	m.mu.Unlock()

	if m.store != nil {
		now := time.Now()
		rec := &conversation.Session{ID: id, State: string(StateActive), CreatedAt: now, UpdatedAt: now}
		if err := m.store.CreateSession(rec); err != nil {
			logger.Error("failed to persist session %s: %v", id, err)
		}
	}
	metrics.RecordSessionStart()
	logger.Info("session %s: created", id)
	return s, nil
}

// Get returns a live session by ID
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Destroy tears a session down and removes it from the registry
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.Destroy()
	return nil
}

// List returns snapshots of all live sessions, newest first
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close destroys every session and stops the cleanup loop
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Destroy()
	}
}

// cleanupLoop destroys sessions idle past the timeout. A session with a
// request in flight counts as busy regardless of its timestamps.
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.Busy() {
			continue
		}
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		logger.Info("session %s: idle for %v, destroying", s.ID, m.idleTimeout)
		s.Destroy()
	}
}

func newSessionID() string {
	return "sess_" + uuid.New().String()[:8]
}
