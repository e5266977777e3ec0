package wizard

import (
	"context"
	"sync"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"
	"hpcredit/pkg/logger"

	"github.com/google/uuid"
)

// Manager owns the live wizard sessions. Sessions are kept in memory while
// active and snapshotted to the store after every command so an interrupted
// session survives a restart.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	deps  Deps
	store SnapshotStore
	log   logger.Logger
}

func NewManager(deps Deps, store SnapshotStore, log logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		deps:     deps,
		store:    store,
		log:      log,
	}
}

// Start opens a new wizard session for the applicant, preloading the stored
// profile and employment records when they exist.
func (m *Manager) Start(ctx context.Context, userID uuid.UUID, kind domain.FlowKind) (*Session, error) {
	var profile domain.Profile
	var employment domain.Employment

	stored, err := m.deps.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load profile")
	}
	if stored != nil {
		profile = *stored
	}

	storedEmp, err := m.deps.Profiles.GetEmployment(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load employment")
	}
	if storedEmp != nil {
		employment = *storedEmp
	}

	s := NewSession(userID, kind, profile, employment, m.deps, m.log)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.persist(ctx, s)
	return s, nil
}

// Get returns a live session, rehydrating it from the snapshot store when the
// service has restarted since the session was last touched.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := Restore(snap, m.deps, m.log)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have rehydrated in the meantime.
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	m.sessions[id] = s
	return s, nil
}

// Persist snapshots a session after a command has been applied. Snapshot
// failures are logged, not surfaced: the live session remains authoritative.
func (m *Manager) Persist(ctx context.Context, s *Session) {
	m.persist(ctx, s)
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	snap, err := s.Snapshot()
	if err != nil {
		m.log.Error("failed to snapshot session", map[string]interface{}{"session_id": s.ID.String(), "error": err.Error()})
		return
	}
	if err := m.store.Save(ctx, snap); err != nil {
		m.log.Warn("failed to persist session snapshot", map[string]interface{}{"session_id": s.ID.String(), "error": err.Error()})
	}
}

// Close removes a completed session from memory and drops its snapshot.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		m.log.Warn("failed to delete session snapshot", map[string]interface{}{"session_id": id.String(), "error": err.Error()})
	}
}
