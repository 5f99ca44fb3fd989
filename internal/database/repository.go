package database

import (
	"context"
	"errors"
	"time"
)

// ErrIdentityNotFound is returned when no identity has the requested ID.
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// GetIdentity retrieves an identity by ID, returns ErrIdentityNotFound if missing
	GetIdentity(ctx context.Context, id string) (*StoredIdentity, error)
	// ListIdentities returns all identities ordered by creation time, then ID
	ListIdentities(ctx context.Context) ([]StoredIdentity, error)
	// CountIdentities returns the number of enrolled identities
	CountIdentities(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to enrolled identities
type IdentityWriter interface {
	IdentityReader

	// SaveIdentity creates or replaces an identity wholesale (image, hash and signature together)
	SaveIdentity(ctx context.Context, identity StoredIdentity) error

	// SaveSignature caches a signature for an identity, but only while its reference image
	// still has the given hash. Returns false when the image changed in the meantime.
	SaveSignature(ctx context.Context, id, imageSHA256 string, signature []float32) (bool, error)

	// DeleteIdentity removes an identity, returns ErrIdentityNotFound if missing
	DeleteIdentity(ctx context.Context, id string) error
}

// RecognitionLogWriter stores login attempts
type RecognitionLogWriter interface {
	SaveRecognitionLog(ctx context.Context, entry RecognitionLog) error
	// ListRecognitionLogs returns the newest entries first
	ListRecognitionLogs(ctx context.Context, limit int) ([]RecognitionLog, error)
}

// SessionStore persists web sessions
type SessionStore interface {
	SaveSession(ctx context.Context, s StoredSession) error
	// GetSession returns nil if the session is missing or expired
	GetSession(ctx context.Context, id string) (*StoredSession, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
