package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/providers"
	"flowchart_gateway/internal/queue"
	"flowchart_gateway/internal/quota"
	"flowchart_gateway/internal/ratelimit"
	"flowchart_gateway/internal/storage"
	"flowchart_gateway/internal/usage"
)

const testKeyValue = "akt_aaaaaaaaaaaaaaaaaaaaa"

// fakeKeyStore mirrors the SQL repository's conditional decrement.
type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]*models.APIKey
}

func newFakeKeyStore(keys ...*models.APIKey) *fakeKeyStore {
	s := &fakeKeyStore{keys: make(map[string]*models.APIKey)}
	for _, k := range keys {
		s.keys[k.KeyValue] = k
	}
	return s
}

func (s *fakeKeyStore) FindByValue(ctx context.Context, value string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[value]
	if !ok {
		return nil, storage.ErrAPIKeyNotFound
	}
	snapshot := *key
	return &snapshot, nil
}

func (s *fakeKeyStore) Save(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.keys[key.KeyValue]
	if !ok {
		return storage.ErrAPIKeyNotFound
	}
	stored.Status = key.Status
	return nil
}

func (s *fakeKeyStore) DeductQuota(ctx context.Context, value string, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[value]
	if !ok || key.RemainingQuota < amount {
		return false, nil
	}
	key.RemainingQuota -= amount
	return true, nil
}

func (s *fakeKeyStore) remaining(value string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[value].RemainingQuota
}

// fakeConfigStore serves one config per provider id.
type fakeConfigStore struct {
	configs map[string]*models.ModelConfig
}

func (s *fakeConfigStore) ResolveByProviderID(ctx context.Context, providerID string) (*models.ModelConfig, error) {
	cfg, ok := s.configs[providerID]
	if !ok {
		return nil, storage.ErrModelConfigNotFound
	}
	return cfg, nil
}

// scriptedAdapter returns a fixed result or error, optionally panicking.
type scriptedAdapter struct {
	id     string
	result *providers.GenerationResult
	err    error
	panics bool

	calls int64
}

func (a *scriptedAdapter) ProviderID() string { return a.id }

func (a *scriptedAdapter) Generate(ctx context.Context, prompt string, cfg *models.ModelConfig) (*providers.GenerationResult, error) {
	atomic.AddInt64(&a.calls, 1)
	if a.panics {
		panic("adapter exploded")
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

type testHarness struct {
	orchestrator *Orchestrator
	keyStore     *fakeKeyStore
	adapter      *scriptedAdapter
	usageQueue   *queue.MemoryQueue
}

func newTestHarness(t *testing.T, key *models.APIKey, adapter *scriptedAdapter) *testHarness {
	t.Helper()

	keyStore := newFakeKeyStore(key)
	registry := providers.NewRegistry()
	registry.Register(adapter)

	configs := &fakeConfigStore{configs: map[string]*models.ModelConfig{
		adapter.id: {
			ID:                        uuid.New(),
			ProviderID:                adapter.id,
			ModelName:                 "test-model",
			Enabled:                   true,
			CostPer1KPromptTokens:     0.03,
			CostPer1KCompletionTokens: 0.06,
		},
	}}

	usageQueue := queue.NewMemoryQueue(queue.DefaultConfig("test"))
	t.Cleanup(func() { usageQueue.Close() })

	orchestrator := NewOrchestrator(
		quota.NewAccountant(keyStore),
		ratelimit.NewFixedWindowLimiter(),
		registry,
		configs,
		usage.NewMeter(usageQueue),
		adapter.id,
	)

	return &testHarness{
		orchestrator: orchestrator,
		keyStore:     keyStore,
		adapter:      adapter,
		usageQueue:   usageQueue,
	}
}

func enabledKey(quotaLeft, rateLimit int) *models.APIKey {
	return &models.APIKey{
		ID:             uuid.New(),
		KeyValue:       testKeyValue,
		Tier:           models.TierTrial,
		RemainingQuota: quotaLeft,
		TotalQuota:     quotaLeft,
		Status:         models.StatusEnabled,
		RateLimit:      rateLimit,
	}
}

func goodAdapter() *scriptedAdapter {
	return &scriptedAdapter{
		id: "openai",
		result: &providers.GenerationResult{
			ArtifactXML:      "<mxGraphModel/>",
			PromptTokens:     100,
			CompletionTokens: 200,
			TotalTokens:      300,
			LatencyMillis:    50,
		},
	}
}

func TestOrchestrator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("successful pipeline", func(t *testing.T) {
		h := newTestHarness(t, enabledKey(10, 60), goodAdapter())

		resp, err := h.orchestrator.Generate(ctx, Request{
			KeyValue: testKeyValue,
			Input:    "login flow",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, resp.RequestID)
		assert.Equal(t, "<mxGraphModel/>", resp.ArtifactXML)
		assert.Equal(t, "openai", resp.ProviderID)
		assert.Equal(t, "test-model", resp.ModelName)
		assert.Equal(t, 300, resp.TotalTokens)
		assert.Equal(t, 9, resp.RemainingQuota)
		assert.Equal(t, 9, h.keyStore.remaining(testKeyValue))

		recs, err := h.usageQueue.Dequeue(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, models.UsageOutcomeSuccess, recs[0].Outcome)
		assert.Equal(t, resp.RequestID, recs[0].RequestID)
	})

	t.Run("invalid key", func(t *testing.T) {
		h := newTestHarness(t, enabledKey(10, 60), goodAdapter())

		_, err := h.orchestrator.Generate(ctx, Request{
			KeyValue: "akt_bbbbbbbbbbbbbbbbbbbbb",
			Input:    "login flow",
		})
		assert.ErrorIs(t, err, quota.ErrInvalidKey)
		assert.Zero(t, atomic.LoadInt64(&h.adapter.calls))
	})

	t.Run("empty input rejected before quota is spent", func(t *testing.T) {
		h := newTestHarness(t, enabledKey(10, 60), goodAdapter())

		_, err := h.orchestrator.Generate(ctx, Request{
			KeyValue: testKeyValue,
			Input:    "",
		})
		assert.ErrorIs(t, err, ErrInputEmpty)
		assert.Equal(t, 10, h.keyStore.remaining(testKeyValue))
	})

	t.Run("oversized input rejected before quota is spent", func(t *testing.T) {
		h := newTestHarness(t, enabledKey(10, 60), goodAdapter())

		_, err := h.orchestrator.Generate(ctx, Request{
			KeyValue: testKeyValue,
			Input:    strings.Repeat("x", MaxInputRunes+1),
		})
		assert.ErrorIs(t, err, ErrInputTooLarge)
		assert.Equal(t, 10, h.keyStore.remaining(testKeyValue))
	})

	t.Run("input at the bound is accepted", func(t *testing.T) {
		h := newTestHarness(t, enabledKey(10, 60), goodAdapter())

		_, err := h.orchestrator.Generate(ctx, Request{
			KeyValue: testKeyValue,
			Input:    strings.Repeat("x", MaxInputRunes),
		})
		assert.NoError(t, err)
	})

	t.Run("quota of one allows exactly one generation", func(t *testing.T) {
		h := newTestHarness(t, enabledKey(1, 60), goodAdapter())

		_, err := h.orchestrator.Generate(ctx, Request{KeyValue: testKeyValue, Input: "first"})
		require.NoError(t, err)

		_, err = h.orchestrator.Generate(ctx, Request{KeyValue: testKeyValue, Input: "second"})
		assert.ErrorIs(t, err, quota.ErrQuotaExhausted)
		assert.Equal(t, 0, h.keyStore.remaining(testKeyValue))
	})

	t.Run("rate limit admits exactly the limit and rejected attempts cost no quota", func(t *testing.T) {
		const limit = 10
		const attempts = 15

		h := newTestHarness(t, enabledKey(100, limit), goodAdapter())

		var succeeded, limited int64
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.orchestrator.Generate(ctx, Request{
					KeyValue: testKeyValue,
					Input:    "concurrent flow",
				})
				switch {
				case err == nil:
					atomic.AddInt64(&succeeded, 1)
				case errors.Is(err, ErrTooManyRequests):
					atomic.AddInt64(&limited, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(limit), succeeded)
		assert.Equal(t, int64(attempts-limit), limited)
		assert.Equal(t, 100-limit, h.keyStore.remaining(testKeyValue))
	})

	t.Run("provider failure keeps quota spent and records a failure", func(t *testing.T) {
		adapter := goodAdapter()
		adapter.result = nil
		adapter.err = &providers.ProviderError{StatusCode: 500, Message: "upstream down"}

		h := newTestHarness(t, enabledKey(5, 60), adapter)

		_, err := h.orchestrator.Generate(ctx, Request{KeyValue: testKeyValue, Input: "flow"})
		require.Error(t, err)

		var provErr *providers.ProviderError
		assert.True(t, errors.As(err, &provErr))

		// No refund
		assert.Equal(t, 4, h.keyStore.remaining(testKeyValue))

		recs, err := h.usageQueue.Dequeue(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, models.UsageOutcomeFailure, recs[0].Outcome)
		assert.Contains(t, recs[0].ErrorMessage, "upstream down")
	})

	t.Run("unknown provider yields ErrNoEnabledModel after quota spend", func(t *testing.T) {
		h := newTestHarness(t, enabledKey(5, 60), goodAdapter())

		_, err := h.orchestrator.Generate(ctx, Request{
			KeyValue:   testKeyValue,
			Input:      "flow",
			ProviderID: "gemini",
		})
		assert.ErrorIs(t, err, ErrNoEnabledModel)
		assert.Equal(t, 4, h.keyStore.remaining(testKeyValue))

		recs, err := h.usageQueue.Dequeue(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, models.UsageOutcomeFailure, recs[0].Outcome)
	})

	t.Run("panicking adapter surfaces as ErrInternal", func(t *testing.T) {
		adapter := goodAdapter()
		adapter.panics = true

		h := newTestHarness(t, enabledKey(5, 60), adapter)

		_, err := h.orchestrator.Generate(ctx, Request{KeyValue: testKeyValue, Input: "flow"})
		assert.ErrorIs(t, err, ErrInternal)
	})
}
