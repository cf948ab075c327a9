package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowchart_gateway/internal/models"
)

func TestGenerateKey(t *testing.T) {
	t.Run("generates valid keys per tier", func(t *testing.T) {
		cases := []struct {
			tier   models.KeyTier
			prefix string
		}{
			{models.TierTrial, "akt_"},
			{models.TierPaid, "akp_"},
			{models.TierVIP, "akv_"},
		}

		for _, tc := range cases {
			key, err := GenerateKey(tc.tier)
			require.NoError(t, err)
			assert.Len(t, key, 25)
			assert.Equal(t, tc.prefix, key[:4])
			assert.True(t, IsValidKeyFormat(key), "generated key should validate: %s", key)
		}
	})

	t.Run("generated keys are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			key, err := GenerateKey(models.TierPaid)
			require.NoError(t, err)
			assert.False(t, seen[key], "duplicate key generated")
			seen[key] = true
		}
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		_, err := GenerateKey(models.KeyTier(99))
		assert.Error(t, err)
	})
}

func TestIsValidKeyFormat(t *testing.T) {
	valid := []string{
		"akt_aaaaaaaaaaaaaaaaaaaaa",
		"akp_0123456789abcdefghijk",
		"akv_zzzzzzzzzzzzzzzzzzzz9",
	}
	for _, key := range valid {
		assert.True(t, IsValidKeyFormat(key), "expected valid: %s", key)
	}

	invalid := []string{
		"",
		"akt_",
		"akt_aaaaaaaaaaaaaaaaaaaa",    // 20 random chars
		"akt_aaaaaaaaaaaaaaaaaaaaaa", // 22 random chars
		"akx_aaaaaaaaaaaaaaaaaaaaa",  // unknown tier char
		"bkt_aaaaaaaaaaaaaaaaaaaaa",  // wrong prefix
		"akt-aaaaaaaaaaaaaaaaaaaaa",  // wrong separator
		"akt_AAAAAAAAAAAAAAAAAAAAA",  // uppercase
		"akt_aaaaaaaaaa aaaaaaaaaa",  // whitespace
	}
	for _, key := range invalid {
		assert.False(t, IsValidKeyFormat(key), "expected invalid: %s", key)
	}
}

func TestKeyTier(t *testing.T) {
	tier, ok := KeyTier("akv_aaaaaaaaaaaaaaaaaaaaa")
	require.True(t, ok)
	assert.Equal(t, models.TierVIP, tier)

	_, ok = KeyTier("not-a-key")
	assert.False(t, ok)
}
