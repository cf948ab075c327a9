package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"flowchart_gateway/internal/models"
)

// ModelConfigRepository handles model configuration database operations.
type ModelConfigRepository struct {
	db *DB
}

// NewModelConfigRepository creates a new model configuration repository
func NewModelConfigRepository(db *DB) *ModelConfigRepository {
	return &ModelConfigRepository{db: db}
}

const modelConfigColumns = `id, provider_id, model_name, endpoint, api_secret, max_tokens,
       temperature, priority, enabled, cost_per_1k_prompt_tokens,
       cost_per_1k_completion_tokens, remark, deleted, created_at, updated_at`

// ResolveByProviderID returns the enabled configuration with the highest
// priority for a provider id. At most one config resolves per request.
func (r *ModelConfigRepository) ResolveByProviderID(ctx context.Context, providerID string) (*models.ModelConfig, error) {
	var cfg models.ModelConfig
	query := `
		SELECT ` + modelConfigColumns + `
		FROM model_configs
		WHERE provider_id = $1 AND enabled AND NOT deleted
		ORDER BY priority DESC
		LIMIT 1
	`

	err := r.db.conn.GetContext(ctx, &cfg, query, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModelConfigNotFound
		}
		return nil, fmt.Errorf("failed to resolve model config: %w", err)
	}

	return &cfg, nil
}

// GetByID retrieves a model configuration by ID.
func (r *ModelConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	var cfg models.ModelConfig
	query := `
		SELECT ` + modelConfigColumns + `
		FROM model_configs
		WHERE id = $1 AND NOT deleted
	`

	err := r.db.conn.GetContext(ctx, &cfg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModelConfigNotFound
		}
		return nil, fmt.Errorf("failed to get model config: %w", err)
	}

	return &cfg, nil
}

// Create inserts a new model configuration.
func (r *ModelConfigRepository) Create(ctx context.Context, cfg *models.ModelConfig) error {
	query := `
		INSERT INTO model_configs (id, provider_id, model_name, endpoint, api_secret,
		                           max_tokens, temperature, priority, enabled,
		                           cost_per_1k_prompt_tokens, cost_per_1k_completion_tokens,
		                           remark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		cfg.ID, cfg.ProviderID, cfg.ModelName, cfg.Endpoint, cfg.APISecret,
		cfg.MaxTokens, cfg.Temperature, cfg.Priority, cfg.Enabled,
		cfg.CostPer1KPromptTokens, cfg.CostPer1KCompletionTokens, cfg.Remark,
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create model config: %w", err)
	}

	return nil
}

// Update updates an existing model configuration.
func (r *ModelConfigRepository) Update(ctx context.Context, cfg *models.ModelConfig) error {
	query := `
		UPDATE model_configs
		SET provider_id = $2, model_name = $3, endpoint = $4, api_secret = $5,
		    max_tokens = $6, temperature = $7, priority = $8, enabled = $9,
		    cost_per_1k_prompt_tokens = $10, cost_per_1k_completion_tokens = $11,
		    remark = $12, updated_at = NOW()
		WHERE id = $1 AND NOT deleted
		RETURNING updated_at
	`

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		cfg.ID, cfg.ProviderID, cfg.ModelName, cfg.Endpoint, cfg.APISecret,
		cfg.MaxTokens, cfg.Temperature, cfg.Priority, cfg.Enabled,
		cfg.CostPer1KPromptTokens, cfg.CostPer1KCompletionTokens, cfg.Remark,
	).Scan(&cfg.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrModelConfigNotFound
		}
		return fmt.Errorf("failed to update model config: %w", err)
	}

	return nil
}

// SoftDelete marks a model configuration deleted.
func (r *ModelConfigRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE model_configs
		SET deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT deleted
	`

	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete model config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrModelConfigNotFound
	}

	return nil
}

// List returns model configurations, highest priority first, paginated.
func (r *ModelConfigRepository) List(ctx context.Context, limit, offset int) ([]*models.ModelConfig, error) {
	query := `
		SELECT ` + modelConfigColumns + `
		FROM model_configs
		WHERE NOT deleted
		ORDER BY priority DESC, created_at DESC
		LIMIT $1 OFFSET $2
	`

	var cfgs []*models.ModelConfig
	err := r.db.conn.SelectContext(ctx, &cfgs, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list model configs: %w", err)
	}

	return cfgs, nil
}
