package database

import (
	"time"
)

// StoredIdentity is an enrolled identity with its reference image.
type StoredIdentity struct {
	ID           string
	Name         string
	NameKey      string    // normalized name used for lookups
	ImageLocator string    // file name in the reference image store
	ImageSHA256  string    // hash of the reference image bytes
	Signature    []float32 // cached face signature, nil until computed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSignature reports whether a cached signature is stored.
func (s StoredIdentity) HasSignature() bool {
	return len(s.Signature) > 0
}

// RecognitionLog records one face login attempt.
type RecognitionLog struct {
	ID         string
	IdentityID string // best candidate, empty when nothing was compared
	Accepted   bool
	Reason     string
	Score      *float64 // nil when no valid comparison was made
	Compared   int
	Skipped    int
	CreatedAt  time.Time
}

// StoredSession is a persisted web session.
type StoredSession struct {
	ID         string
	IdentityID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
