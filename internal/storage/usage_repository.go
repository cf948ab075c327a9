package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"flowchart_gateway/internal/models"
)

// UsageRepository handles usage ledger database operations. The ledger is
// append-only; records are never updated after insert.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

const usageColumns = `id, request_id, api_key_id, key_value, provider_id, model_name,
       input_text, output_xml, prompt_tokens, completion_tokens, total_tokens,
       cost, response_time_ms, outcome, error_message, ip_address, user_agent,
       created_at`

// Create inserts a usage record.
func (r *UsageRepository) Create(ctx context.Context, rec *models.UsageRecord) error {
	query := `
		INSERT INTO usage_records (id, request_id, api_key_id, key_value, provider_id,
		                           model_name, input_text, output_xml, prompt_tokens,
		                           completion_tokens, total_tokens, cost, response_time_ms,
		                           outcome, error_message, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at
	`

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		rec.ID, rec.RequestID, rec.APIKeyID, rec.KeyValue, rec.ProviderID,
		rec.ModelName, rec.InputText, rec.OutputXML, rec.PromptTokens,
		rec.CompletionTokens, rec.TotalTokens, rec.Cost, rec.ResponseTimeMS,
		rec.Outcome, rec.ErrorMessage, rec.IPAddress, rec.UserAgent,
	).Scan(&rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}

	return nil
}

// CreateBatch inserts a batch of usage records inside a single transaction.
func (r *UsageRepository) CreateBatch(ctx context.Context, recs []*models.UsageRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO usage_records (id, request_id, api_key_id, key_value, provider_id,
		                           model_name, input_text, output_xml, prompt_tokens,
		                           completion_tokens, total_tokens, cost, response_time_ms,
		                           outcome, error_message, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	for _, rec := range recs {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		_, err := tx.ExecContext(
			ctx, query,
			rec.ID, rec.RequestID, rec.APIKeyID, rec.KeyValue, rec.ProviderID,
			rec.ModelName, rec.InputText, rec.OutputXML, rec.PromptTokens,
			rec.CompletionTokens, rec.TotalTokens, rec.Cost, rec.ResponseTimeMS,
			rec.Outcome, rec.ErrorMessage, rec.IPAddress, rec.UserAgent,
		)
		if err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List returns usage records, newest first, paginated.
func (r *UsageRepository) List(ctx context.Context, limit, offset int) ([]*models.UsageRecord, error) {
	query := `
		SELECT ` + usageColumns + `
		FROM usage_records
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var recs []*models.UsageRecord
	err := r.db.conn.SelectContext(ctx, &recs, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	return recs, nil
}

// ListByKey returns usage records for a single API key, newest first.
func (r *UsageRepository) ListByKey(ctx context.Context, apiKeyID uuid.UUID, limit, offset int) ([]*models.UsageRecord, error) {
	query := `
		SELECT ` + usageColumns + `
		FROM usage_records
		WHERE api_key_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var recs []*models.UsageRecord
	err := r.db.conn.SelectContext(ctx, &recs, query, apiKeyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	return recs, nil
}
