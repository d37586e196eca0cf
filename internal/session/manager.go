package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig tunes a Manager.
type ManagerConfig struct {
	TTL           time.Duration // idle time before eviction
	SweepInterval time.Duration
	Debounce      time.Duration
}

// Manager keeps the server's open sessions and evicts idle ones.
type Manager struct {
	deps   Deps
	cfg    ManagerConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(deps Deps, cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		deps:     deps,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open starts a new session.
func (m *Manager) Open(ctx context.Context, opts Options) (*Session, error) {
	opts.ID = uuid.NewString()
	if opts.Debounce <= 0 {
		opts.Debounce = m.cfg.Debounce
	}
	if opts.ClientID == "" {
		opts.ClientID = opts.UserID
	}

	s, err := Open(ctx, opts, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("session opened",
		"session_id", s.ID(),
		"template_id", opts.TemplateID,
		"client_id", opts.ClientID,
		"source", s.Source(),
	)
	return s, nil
}

// Get returns the session with id and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch()
	return s, nil
}

// Close writes the session's pending draft and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start begins evicting idle sessions in the background.
func (m *Manager) Start() {
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(time.Now())
			}
		}
	}()
}

// Sweep closes sessions idle longer than the TTL at now and returns how
// many it closed.
func (m *Manager) Sweep(now time.Time) int {
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastUsed()) > m.cfg.TTL {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		m.logger.Info("session evicted", "session_id", s.ID(), "idle", now.Sub(s.LastUsed()).Round(time.Second))
	}
	return len(idle)
}

// Shutdown stops the sweeper and closes every session, flushing drafts.
func (m *Manager) Shutdown() {
	m.cancel()
	if m.done != nil {
		<-m.done
	}

	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	m.logger.Info("sessions closed", "count", len(all))
}
