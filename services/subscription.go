package services

import (
	"time"

	"bandup/models"
)

// SubscriptionPolicy decides feature access from subscription state alone,
// independent of the credit ledger. Pure reads: it never mutates state and
// never touches CreditService.
type SubscriptionPolicy struct {
	premiumOnly map[string]bool
}

// NewSubscriptionPolicy returns the default policy: mock tests are
// premium-gated, everything else is open to any active account.
func NewSubscriptionPolicy() *SubscriptionPolicy {
	return &SubscriptionPolicy{
		premiumOnly: map[string]bool{
			models.FeatureMockTest: true,
		},
	}
}

// CanAccessFeature reports whether the user's subscription allows the
// feature at all. Credit affordability is a separate question answered by
// CreditService.
func (p *SubscriptionPolicy) CanAccessFeature(user *models.User, featureKey string) bool {
	if user == nil || !user.IsActive {
		return false
	}
	if !p.premiumOnly[featureKey] {
		return true
	}
	if !user.IsPremium {
		return false
	}
	if user.PremiumExpiresAt != nil && user.PremiumExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}
