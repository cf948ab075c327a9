package models

import (
	"time"

	"github.com/google/uuid"
)

// KeyTier classifies an API key. The tier seeds the generated key value's
// prefix character and informs policy defaults; it has no runtime semantics
// beyond that.
type KeyTier int

const (
	TierTrial KeyTier = 1
	TierPaid  KeyTier = 2
	TierVIP   KeyTier = 3
)

// PrefixChar returns the single character embedded in generated key values.
func (t KeyTier) PrefixChar() string {
	switch t {
	case TierPaid:
		return "p"
	case TierVIP:
		return "v"
	default:
		return "t"
	}
}

func (t KeyTier) String() string {
	switch t {
	case TierPaid:
		return "paid"
	case TierVIP:
		return "vip"
	default:
		return "trial"
	}
}

// TierFromPrefixChar maps a key value's tier character back to its tier.
func TierFromPrefixChar(c byte) (KeyTier, bool) {
	switch c {
	case 't':
		return TierTrial, true
	case 'p':
		return TierPaid, true
	case 'v':
		return TierVIP, true
	default:
		return 0, false
	}
}

// KeyStatus is the lifecycle state of an API key. Only StatusEnabled admits
// requests. Once a key is StatusExpired it never transitions back to enabled
// automatically.
type KeyStatus int

const (
	StatusDisabled KeyStatus = 0
	StatusEnabled  KeyStatus = 1
	StatusExpired  KeyStatus = 2
)

func (s KeyStatus) String() string {
	switch s {
	case StatusEnabled:
		return "enabled"
	case StatusExpired:
		return "expired"
	default:
		return "disabled"
	}
}

// APIKey represents one issued access grant.
type APIKey struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	KeyValue       string     `db:"key_value" json:"key_value"`
	Tier           KeyTier    `db:"tier" json:"tier"`
	RemainingQuota int        `db:"remaining_quota" json:"remaining_quota"`
	TotalQuota     int        `db:"total_quota" json:"total_quota"`
	Status         KeyStatus  `db:"status" json:"status"`
	RateLimit      int        `db:"rate_limit" json:"rate_limit"` // requests per minute
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Remark         string     `db:"remark" json:"remark,omitempty"`
	Deleted        bool       `db:"deleted" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the key's expiry timestamp has passed.
// A nil ExpiresAt means the key never expires.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// HasQuota reports whether the key has any remaining quota.
func (k *APIKey) HasQuota() bool {
	return k.RemainingQuota > 0
}
