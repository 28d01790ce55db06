package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bandup/models"
)

// PricingCatalog is the read-mostly feature_key -> cost lookup consulted
// before every billed operation. A key without a row is an UnknownFeatureError
// (hard configuration error); free features are explicit cost-0 rows.
type PricingCatalog struct {
	DB *gorm.DB
}

func NewPricingCatalog(db *gorm.DB) *PricingCatalog {
	return &PricingCatalog{DB: db}
}

// Cost returns the current credit cost of a feature.
func (pc *PricingCatalog) Cost(ctx context.Context, featureKey string) (int, error) {
	var pricing models.FeaturePricing
	err := pc.DB.WithContext(ctx).Where("feature_key = ?", featureKey).First(&pricing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &UnknownFeatureError{Key: featureKey}
		}
		return 0, fmt.Errorf("lookup pricing for %s: %w", featureKey, err)
	}
	return pricing.Cost, nil
}

// SetCost updates (or creates) the price of a feature. Admin-only at the
// route layer.
func (pc *PricingCatalog) SetCost(ctx context.Context, featureKey string, cost int) (*models.FeaturePricing, error) {
	if cost < 0 {
		return nil, ErrInvalidAmount
	}

	var pricing models.FeaturePricing
	db := pc.DB.WithContext(ctx)
	err := db.Where("feature_key = ?", featureKey).First(&pricing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		pricing = models.FeaturePricing{FeatureKey: featureKey, Cost: cost}
		if err := db.Create(&pricing).Error; err != nil {
			return nil, fmt.Errorf("create pricing for %s: %w", featureKey, err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup pricing for %s: %w", featureKey, err)
	default:
		if err := db.Model(&pricing).Update("cost", cost).Error; err != nil {
			return nil, fmt.Errorf("update pricing for %s: %w", featureKey, err)
		}
		pricing.Cost = cost
	}
	return &pricing, nil
}

// List returns the full price list.
func (pc *PricingCatalog) List(ctx context.Context) ([]models.FeaturePricing, error) {
	var pricing []models.FeaturePricing
	if err := pc.DB.WithContext(ctx).Order("feature_key").Find(&pricing).Error; err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	return pricing, nil
}
