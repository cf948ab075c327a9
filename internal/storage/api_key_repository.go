package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"flowchart_gateway/internal/models"
)

// APIKeyRepository handles API key database operations. Lookups exclude
// soft-deleted rows.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

const apiKeyColumns = `id, key_value, tier, remaining_quota, total_quota, status,
       rate_limit, expires_at, remark, deleted, created_at, updated_at`

// FindByValue retrieves an API key by its value.
func (r *APIKeyRepository) FindByValue(ctx context.Context, value string) (*models.APIKey, error) {
	var key models.APIKey
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE key_value = $1 AND NOT deleted
	`

	err := r.db.conn.GetContext(ctx, &key, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	return &key, nil
}

// GetByID retrieves an API key by ID.
func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	var key models.APIKey
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE id = $1 AND NOT deleted
	`

	err := r.db.conn.GetContext(ctx, &key, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	return &key, nil
}

// Create inserts a new API key.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, key_value, tier, remaining_quota, total_quota,
		                      status, rate_limit, expires_at, remark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		key.ID, key.KeyValue, key.Tier, key.RemainingQuota, key.TotalQuota,
		key.Status, key.RateLimit, key.ExpiresAt, key.Remark,
	).Scan(&key.CreatedAt, &key.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// Save updates an existing API key's mutable fields.
func (r *APIKeyRepository) Save(ctx context.Context, key *models.APIKey) error {
	query := `
		UPDATE api_keys
		SET status = $2, rate_limit = $3, expires_at = $4, remark = $5,
		    updated_at = NOW()
		WHERE id = $1 AND NOT deleted
		RETURNING updated_at
	`

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		key.ID, key.Status, key.RateLimit, key.ExpiresAt, key.Remark,
	).Scan(&key.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("failed to update API key: %w", err)
	}

	return nil
}

// DeductQuota atomically decrements remaining quota by amount, but only when
// the remaining quota covers it. The single conditional UPDATE is what keeps
// concurrent consumers from driving the balance negative.
func (r *APIKeyRepository) DeductQuota(ctx context.Context, value string, amount int) (bool, error) {
	query := `
		UPDATE api_keys
		SET remaining_quota = remaining_quota - $2, updated_at = NOW()
		WHERE key_value = $1 AND remaining_quota >= $2 AND NOT deleted
	`

	result, err := r.db.conn.ExecContext(ctx, query, value, amount)
	if err != nil {
		return false, fmt.Errorf("failed to deduct quota: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// SoftDelete marks an API key deleted; it disappears from further lookups.
func (r *APIKeyRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE api_keys
		SET deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT deleted
	`

	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// List returns API keys, newest first, paginated.
func (r *APIKeyRepository) List(ctx context.Context, limit, offset int) ([]*models.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE NOT deleted
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var keys []*models.APIKey
	err := r.db.conn.SelectContext(ctx, &keys, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}

	return keys, nil
}
