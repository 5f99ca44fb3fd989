package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/facelog/internal/database"
)

// RecognitionLogRepository stores face login attempts.
type RecognitionLogRepository struct {
	pool *Pool
}

// NewRecognitionLogRepository creates a new PostgreSQL recognition log repository.
func NewRecognitionLogRepository(pool *Pool) *RecognitionLogRepository {
	return &RecognitionLogRepository{pool: pool}
}

// SaveRecognitionLog inserts an attempt. A missing ID is generated.
func (r *RecognitionLogRepository) SaveRecognitionLog(ctx context.Context, entry database.RecognitionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO recognition_logs (id, identity_id, accepted, reason, score, compared, skipped, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	`

	var identityID sql.NullString
	if entry.IdentityID != "" {
		identityID = sql.NullString{String: entry.IdentityID, Valid: true}
	}
	var createdAt sql.NullTime
	if !entry.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: entry.CreatedAt, Valid: true}
	}

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		identityID,
		entry.Accepted,
		entry.Reason,
		entry.Score,
		entry.Compared,
		entry.Skipped,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("save recognition log: %w", err)
	}
	return nil
}

// ListRecognitionLogs returns up to limit entries, newest first.
func (r *RecognitionLogRepository) ListRecognitionLogs(ctx context.Context, limit int) ([]database.RecognitionLog, error) {
	if limit <= 0 {
		limit = database.DefaultRecognitionLogLimit
	}

	query := `
		SELECT id, identity_id, accepted, reason, score, compared, skipped, created_at
		FROM recognition_logs
		ORDER BY created_at DESC, id
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recognition logs: %w", err)
	}
	defer rows.Close()

	var entries []database.RecognitionLog
	for rows.Next() {
		var (
			entry      database.RecognitionLog
			identityID sql.NullString
			score      sql.NullFloat64
		)
		err := rows.Scan(
			&entry.ID,
			&identityID,
			&entry.Accepted,
			&entry.Reason,
			&score,
			&entry.Compared,
			&entry.Skipped,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recognition log: %w", err)
		}
		entry.IdentityID = identityID.String
		if score.Valid {
			entry.Score = &score.Float64
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recognition logs: %w", err)
	}
	return entries, nil
}
