package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facelog/internal/database"
)

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, name, name_key, image_locator, image_sha256, signature, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (database.StoredIdentity, error) {
	var (
		identity database.StoredIdentity
		sig      *pgvector.Vector
	)
	err := row.Scan(
		&identity.ID,
		&identity.Name,
		&identity.NameKey,
		&identity.ImageLocator,
		&identity.ImageSHA256,
		&sig,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return database.StoredIdentity{}, err
	}
	if sig != nil {
		identity.Signature = sig.Slice()
	}
	return identity, nil
}

// GetIdentity retrieves an identity by ID.
func (r *IdentityRepository) GetIdentity(ctx context.Context, id string) (*database.StoredIdentity, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+identityColumns+" FROM identities WHERE id = $1", id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &identity, nil
}

// ListIdentities returns all identities in enrollment order.
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.StoredIdentity, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+identityColumns+" FROM identities ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.StoredIdentity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// CountIdentities returns the number of enrolled identities.
func (r *IdentityRepository) CountIdentities(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// SaveIdentity creates or replaces an identity. The creation time of an existing
// identity is preserved so enrollment order stays stable.
func (r *IdentityRepository) SaveIdentity(ctx context.Context, identity database.StoredIdentity) error {
	query := `
		INSERT INTO identities (id, name, name_key, image_locator, image_sha256, signature, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			name_key = EXCLUDED.name_key,
			image_locator = EXCLUDED.image_locator,
			image_sha256 = EXCLUDED.image_sha256,
			signature = EXCLUDED.signature,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		identity.Name,
		identity.NameKey,
		identity.ImageLocator,
		identity.ImageSHA256,
		signatureValue(identity.Signature),
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// SaveSignature caches a signature while the identity still references the image
// with the given hash.
func (r *IdentityRepository) SaveSignature(ctx context.Context, id, imageSHA256 string, signature []float32) (bool, error) {
	result, err := r.pool.Exec(ctx,
		"UPDATE identities SET signature = $3 WHERE id = $1 AND image_sha256 = $2",
		id, imageSHA256, signatureValue(signature),
	)
	if err != nil {
		return false, fmt.Errorf("save signature: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteIdentity removes an identity.
func (r *IdentityRepository) DeleteIdentity(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrIdentityNotFound
	}
	return nil
}

// signatureValue maps an empty signature to SQL NULL.
func signatureValue(signature []float32) any {
	if len(signature) == 0 {
		return nil
	}
	return pgvector.NewVector(signature)
}
