// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facelog/internal/database"
)

// MockIdentityWriter is an in-memory implementation of database.IdentityWriter
type MockIdentityWriter struct {
	mu         sync.RWMutex
	identities map[string]database.StoredIdentity

	// Error injection
	GetError           error
	ListError          error
	CountError         error
	SaveError          error
	SaveSignatureError error
	DeleteError        error

	// Call tracking
	SaveCalls          []database.StoredIdentity
	SaveSignatureCalls []SaveSignatureCall
}

// SaveSignatureCall tracks a SaveSignature call
type SaveSignatureCall struct {
	ID          string
	ImageSHA256 string
	Stored      bool
}

// NewMockIdentityWriter creates a new mock identity writer
func NewMockIdentityWriter() *MockIdentityWriter {
	return &MockIdentityWriter{
		identities: make(map[string]database.StoredIdentity),
	}
}

// AddIdentity adds an identity to the mock store without tracking the call
func (m *MockIdentityWriter) AddIdentity(identity database.StoredIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	m.identities[identity.ID] = cloneIdentity(identity)
}

// GetIdentity retrieves an identity by ID
func (m *MockIdentityWriter) GetIdentity(ctx context.Context, id string) (*database.StoredIdentity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrIdentityNotFound, id)
	}
	out := cloneIdentity(identity)
	return &out, nil
}

// ListIdentities returns all identities ordered by creation time, then ID
func (m *MockIdentityWriter) ListIdentities(ctx context.Context) ([]database.StoredIdentity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.StoredIdentity, 0, len(m.identities))
	for _, identity := range m.identities {
		out = append(out, cloneIdentity(identity))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountIdentities returns the number of identities
func (m *MockIdentityWriter) CountIdentities(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// SaveIdentity creates or replaces an identity
func (m *MockIdentityWriter) SaveIdentity(ctx context.Context, identity database.StoredIdentity) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.identities[identity.ID]; ok {
		identity.CreatedAt = existing.CreatedAt
	} else if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	m.identities[identity.ID] = cloneIdentity(identity)
	m.SaveCalls = append(m.SaveCalls, cloneIdentity(identity))
	return nil
}

// SaveSignature caches a signature when the stored image hash still matches
func (m *MockIdentityWriter) SaveSignature(ctx context.Context, id, imageSHA256 string, signature []float32) (bool, error) {
	if m.SaveSignatureError != nil {
		return false, m.SaveSignatureError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.identities[id]
	stored := ok && identity.ImageSHA256 == imageSHA256
	if stored {
		identity.Signature = append([]float32(nil), signature...)
		m.identities[id] = identity
	}
	m.SaveSignatureCalls = append(m.SaveSignatureCalls, SaveSignatureCall{ID: id, ImageSHA256: imageSHA256, Stored: stored})
	return stored, nil
}

// DeleteIdentity removes an identity
func (m *MockIdentityWriter) DeleteIdentity(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return fmt.Errorf("%w: %s", database.ErrIdentityNotFound, id)
	}
	delete(m.identities, id)
	return nil
}

func cloneIdentity(s database.StoredIdentity) database.StoredIdentity {
	if s.Signature != nil {
		s.Signature = append([]float32(nil), s.Signature...)
	}
	return s
}

// MockRecognitionLogWriter is an in-memory implementation of database.RecognitionLogWriter
type MockRecognitionLogWriter struct {
	mu      sync.RWMutex
	entries []database.RecognitionLog

	// Error injection
	SaveError error
	ListError error
}

// NewMockRecognitionLogWriter creates a new mock recognition log writer
func NewMockRecognitionLogWriter() *MockRecognitionLogWriter {
	return &MockRecognitionLogWriter{}
}

// SaveRecognitionLog stores a log entry
func (m *MockRecognitionLogWriter) SaveRecognitionLog(ctx context.Context, entry database.RecognitionLog) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// ListRecognitionLogs returns the newest entries first
func (m *MockRecognitionLogWriter) ListRecognitionLogs(ctx context.Context, limit int) ([]database.RecognitionLog, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.RecognitionLog, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Entries returns all stored entries in insertion order
func (m *MockRecognitionLogWriter) Entries() []database.RecognitionLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.RecognitionLog(nil), m.entries...)
}

// MockSessionStore is an in-memory implementation of database.SessionStore
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]database.StoredSession

	// Error injection
	SaveError error
	GetError  error
}

// NewMockSessionStore creates a new mock session store
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[string]database.StoredSession),
	}
}

// SaveSession stores a session
func (m *MockSessionStore) SaveSession(ctx context.Context, s database.StoredSession) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// GetSession returns nil for missing or expired sessions
func (m *MockSessionStore) GetSession(ctx context.Context, id string) (*database.StoredSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &s, nil
}

// DeleteSession removes a session
func (m *MockSessionStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now
func (m *MockSessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired included
func (m *MockSessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Compile-time interface checks
var (
	_ database.IdentityWriter       = (*MockIdentityWriter)(nil)
	_ database.RecognitionLogWriter = (*MockRecognitionLogWriter)(nil)
	_ database.SessionStore         = (*MockSessionStore)(nil)
)
