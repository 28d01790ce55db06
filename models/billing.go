package models

import "gorm.io/gorm"

// Credit transaction types
const (
	TransactionUsageCharge = "usage_charge"
	TransactionCreditAdded = "credit_added"
	TransactionRefund      = "refund"
)

// Feature keys for AI-backed, credit-billed capabilities
const (
	FeatureWritingEvaluation  = "writing_evaluation"
	FeatureSpeakingEvaluation = "speaking_evaluation"
	FeatureTextRewriter       = "text_rewriter"
	FeatureChartAnalysis      = "chart_analysis"
	FeatureMockTest           = "mock_test"
)

// CreditTransaction is an append-only ledger entry. Rows are created only by
// services.CreditService and are never edited or deleted; a user's
// credits_balance always equals the sum of their Amount column.
type CreditTransaction struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Amount      int     `gorm:"not null" json:"amount"` // positive = credit, negative = debit
	Type        string  `gorm:"not null;index" json:"type"`
	FeatureKey  *string `gorm:"index" json:"feature_key,omitempty"`
	Description string  `json:"description"`

	// Cross references
	AttemptID *uint `json:"attempt_id,omitempty"`
	RefundsID *uint `gorm:"index" json:"refunds_id,omitempty"` // debit compensated by this refund

	// Relations
	User User `json:"-"`
}

// FeaturePricing maps a feature key to its current credit cost. Admin-mutable;
// a key with no row here is a configuration error, not a free feature.
type FeaturePricing struct {
	gorm.Model
	FeatureKey  string `gorm:"uniqueIndex;not null" json:"feature_key"`
	Cost        int    `gorm:"not null" json:"cost"` // non-negative
	Description string `json:"description"`
}

// SeedFeaturePricing inserts the default price list during migration.
func SeedFeaturePricing(db *gorm.DB) error {
	defaults := []FeaturePricing{
		{
			FeatureKey:  FeatureWritingEvaluation,
			Cost:        5,
			Description: "AI band score and feedback for a writing attempt",
		},
		{
			FeatureKey:  FeatureSpeakingEvaluation,
			Cost:        5,
			Description: "AI band score and feedback for a speaking attempt",
		},
		{
			FeatureKey:  FeatureTextRewriter,
			Cost:        2,
			Description: "AI rewrite of a passage at a higher band",
		},
		{
			FeatureKey:  FeatureChartAnalysis,
			Cost:        3,
			Description: "AI validation and data extraction for a Task 1 chart image",
		},
		{
			FeatureKey:  FeatureMockTest,
			Cost:        0,
			Description: "Full mock test session (premium only)",
		},
	}
	for _, pricing := range defaults {
		if err := db.FirstOrCreate(&pricing, "feature_key = ?", pricing.FeatureKey).Error; err != nil {
			return err
		}
	}
	return nil
}
