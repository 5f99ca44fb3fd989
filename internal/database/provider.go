package database

import (
	"context"
	"fmt"
)

var (
	postgresIdentityWriter       func() IdentityWriter
	postgresRecognitionLogWriter func() RecognitionLogWriter
	postgresSessionStore         func() SessionStore
	postgresInitialized          bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	identityWriter func() IdentityWriter,
	logWriter func() RecognitionLogWriter,
	sessionStore func() SessionStore,
) {
	postgresIdentityWriter = identityWriter
	postgresRecognitionLogWriter = logWriter
	postgresSessionStore = sessionStore
	postgresInitialized = true
}

// GetIdentityWriter returns an IdentityWriter from the PostgreSQL backend
func GetIdentityWriter(ctx context.Context) (IdentityWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresIdentityWriter == nil {
		return nil, fmt.Errorf("PostgreSQL identity writer not registered")
	}
	return postgresIdentityWriter(), nil
}

// GetRecognitionLogWriter returns a RecognitionLogWriter from the PostgreSQL backend
func GetRecognitionLogWriter(ctx context.Context) (RecognitionLogWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresRecognitionLogWriter == nil {
		return nil, fmt.Errorf("PostgreSQL recognition log writer not registered")
	}
	return postgresRecognitionLogWriter(), nil
}

// GetSessionStore returns a SessionStore from the PostgreSQL backend
func GetSessionStore(ctx context.Context) (SessionStore, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresSessionStore == nil {
		return nil, fmt.Errorf("PostgreSQL session store not registered")
	}
	return postgresSessionStore(), nil
}
