package quota

import (
	"context"
	"errors"
	"fmt"

	"flowchart_gateway/internal/auth"
	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/storage"
	"flowchart_gateway/internal/utils"
)

var (
	// ErrInvalidKey means the key value is malformed or unknown.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrKeyDisabled means the key exists but is administratively disabled.
	ErrKeyDisabled = errors.New("API key is disabled")

	// ErrKeyExpired means the key's expiry timestamp has passed.
	ErrKeyExpired = errors.New("API key has expired")

	// ErrQuotaExhausted means the key has no remaining quota.
	ErrQuotaExhausted = errors.New("quota exhausted")
)

// KeyStore is the persistence contract the accountant relies on.
// FindByValue must return current persisted state and report a missing key
// with storage.ErrAPIKeyNotFound. DeductQuota must be a single conditional
// update, decrementing only while remaining quota covers the amount, and is
// the sole admission authority under concurrency.
type KeyStore interface {
	FindByValue(ctx context.Context, value string) (*models.APIKey, error)
	Save(ctx context.Context, key *models.APIKey) error
	DeductQuota(ctx context.Context, value string, amount int) (bool, error)
}

// Accountant reads, validates and atomically decrements API key quotas.
type Accountant struct {
	store  KeyStore
	logger *utils.Logger
}

// NewAccountant creates a quota accountant over the given store.
func NewAccountant(store KeyStore) *Accountant {
	return &Accountant{
		store:  store,
		logger: utils.NewLogger("quota"),
	}
}

// Validate checks a key value for admission and returns the key snapshot the
// decision was made on. Validation never consumes quota; the snapshot must
// not be trusted for the consumption decision itself (see TryConsume).
//
// On the first access after the expiry timestamp has passed, the key's
// status is flipped to expired and persisted.
func (a *Accountant) Validate(ctx context.Context, value string) (*models.APIKey, error) {
	// Malformed values never reach the store.
	if !auth.IsValidKeyFormat(value) {
		return nil, ErrInvalidKey
	}

	key, err := a.store.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	switch key.Status {
	case models.StatusEnabled:
		// fall through to expiry and quota checks
	case models.StatusExpired:
		return nil, ErrKeyExpired
	default:
		return nil, ErrKeyDisabled
	}

	if key.IsExpired() {
		key.Status = models.StatusExpired
		if err := a.store.Save(ctx, key); err != nil {
			// The key is still rejected; only the status flip is lost.
			a.logger.Error("Failed to persist expiry flip", "key", value, "error", err)
		} else {
			a.logger.Info("API key expired", "key", value)
		}
		return nil, ErrKeyExpired
	}

	if !key.HasQuota() {
		return nil, ErrQuotaExhausted
	}

	return key, nil
}

// TryConsume attempts to atomically deduct amount from the key's remaining
// quota. It returns false, without an error, when the store-level condition
// fails; callers treat that the same as ErrQuotaExhausted.
func (a *Accountant) TryConsume(ctx context.Context, value string, amount int) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("consume amount must be positive, got %d", amount)
	}

	ok, err := a.store.DeductQuota(ctx, value, amount)
	if err != nil {
		return false, fmt.Errorf("quota deduction failed: %w", err)
	}
	return ok, nil
}

// Remaining returns the key's current remaining quota, best effort, for
// response payloads. It never mutates state.
func (a *Accountant) Remaining(ctx context.Context, value string) (int, error) {
	key, err := a.store.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return 0, ErrInvalidKey
		}
		return 0, fmt.Errorf("failed to look up API key: %w", err)
	}
	return key.RemainingQuota, nil
}
