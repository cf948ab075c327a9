package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"flowchart_gateway/internal/models"
)

// API key value layout: "ak" + tier char + "_" + 21 random chars = 25 chars.
// Example: akt_a1b2c3d4e5f6g7h8i9j0k
const (
	keyPrefix    = "ak"
	keyRandomLen = 21
	keyTotalLen  = 25
	keyCharset   = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateKey creates a fresh API key value for the given tier.
func GenerateKey(tier models.KeyTier) (string, error) {
	switch tier {
	case models.TierTrial, models.TierPaid, models.TierVIP:
	default:
		return "", fmt.Errorf("unknown key tier: %d", tier)
	}

	buf := make([]byte, keyRandomLen)
	max := big.NewInt(int64(len(keyCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = keyCharset[n.Int64()]
	}
	return keyPrefix + tier.PrefixChar() + "_" + string(buf), nil
}

// IsValidKeyFormat checks an API key value against the fixed layout without
// touching any store. Malformed values must be rejected before lookup.
func IsValidKeyFormat(value string) bool {
	if len(value) != keyTotalLen {
		return false
	}
	if value[:2] != keyPrefix {
		return false
	}
	if _, ok := models.TierFromPrefixChar(value[2]); !ok {
		return false
	}
	if value[3] != '_' {
		return false
	}
	for i := 4; i < keyTotalLen; i++ {
		c := value[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// KeyTier extracts the tier encoded in a well-formed key value.
func KeyTier(value string) (models.KeyTier, bool) {
	if !IsValidKeyFormat(value) {
		return 0, false
	}
	return models.TierFromPrefixChar(value[2])
}
