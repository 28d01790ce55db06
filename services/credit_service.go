package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"bandup/models"
)

// CreditService is the sole writer of credit balances. Every mutation pairs a
// balance update with an append-only CreditTransaction row inside one database
// transaction, so balance == sum(ledger) holds at all times and a balance can
// never go negative.
type CreditService struct {
	DB      *gorm.DB
	Pricing *PricingCatalog
	Logger  *log.Logger
}

func NewCreditService(db *gorm.DB, pricing *PricingCatalog, logger *log.Logger) *CreditService {
	return &CreditService{
		DB:      db,
		Pricing: pricing,
		Logger:  logger,
	}
}

// BillUser debits the cost of featureKey from the user's balance and appends
// the usage_charge ledger entry. The check-then-debit is a single conditional
// UPDATE (credits_balance >= cost), so two concurrent calls for the same user
// cannot both win a balance that only covers one of them.
//
// attemptID, when non-nil, links the ledger entry to the evaluated attempt.
//
// InsufficientFundsError is the only expected failure; nothing is written on
// that path. Billing must complete before any AI call is made, never the
// other way around.
func (cs *CreditService) BillUser(ctx context.Context, userID uint, featureKey string, attemptID *uint) (*models.CreditTransaction, error) {
	cost, err := cs.Pricing.Cost(ctx, featureKey)
	if err != nil {
		return nil, err
	}

	var entry models.CreditTransaction
	err = cs.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cost > 0 {
			res := tx.Model(&models.User{}).
				Where("id = ? AND credits_balance >= ?", userID, cost).
				Update("credits_balance", gorm.Expr("credits_balance - ?", cost))
			if res.Error != nil {
				return fmt.Errorf("debit balance: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				// Either the user does not exist or they are short on credits.
				var user models.User
				if err := tx.First(&user, userID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return &NotFoundError{Resource: "user", ID: userID}
					}
					return fmt.Errorf("load user %d: %w", userID, err)
				}
				return &InsufficientFundsError{Required: cost, Available: user.CreditsBalance}
			}
		} else {
			// Zero-cost features still require an existing user and still get
			// a ledger entry, so usage stays auditable.
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("load user %d: %w", userID, err)
			}
			if count == 0 {
				return &NotFoundError{Resource: "user", ID: userID}
			}
		}

		entry = models.CreditTransaction{
			UserID:      userID,
			Amount:      -cost,
			Type:        models.TransactionUsageCharge,
			FeatureKey:  &featureKey,
			AttemptID:   attemptID,
			Description: fmt.Sprintf("Charge for %s", featureKey),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cs.Logger.Printf("billed user %d: %s (-%d credits)", userID, featureKey, cost)
	return &entry, nil
}

// CreditUser adds amount credits to the user's balance: signup grants, admin
// top-ups, refunds. Always succeeds for a non-negative amount and an existing
// user.
func (cs *CreditService) CreditUser(ctx context.Context, userID uint, amount int, txType, description string) (*models.CreditTransaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	var entry models.CreditTransaction
	err := cs.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("credits_balance", gorm.Expr("credits_balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("credit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "user", ID: userID}
		}

		entry = models.CreditTransaction{
			UserID:      userID,
			Amount:      amount,
			Type:        txType,
			Description: description,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cs.Logger.Printf("credited user %d: +%d credits (%s)", userID, amount, txType)
	return &entry, nil
}

// Refund emits the compensating positive entry for a prior usage_charge
// debit. The original row is never touched, and a debit can be compensated at
// most once.
func (cs *CreditService) Refund(ctx context.Context, userID uint, originalTransactionID uint) (*models.CreditTransaction, error) {
	var entry models.CreditTransaction
	err := cs.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original models.CreditTransaction
		err := tx.Where("id = ? AND user_id = ?", originalTransactionID, userID).First(&original).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "transaction", ID: originalTransactionID}
			}
			return fmt.Errorf("load transaction %d: %w", originalTransactionID, err)
		}
		if original.Type != models.TransactionUsageCharge || original.Amount >= 0 {
			return ErrNotRefundable
		}

		var refunded int64
		if err := tx.Model(&models.CreditTransaction{}).
			Where("refunds_id = ?", original.ID).
			Count(&refunded).Error; err != nil {
			return fmt.Errorf("check prior refunds: %w", err)
		}
		if refunded > 0 {
			return ErrAlreadyRefunded
		}

		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("credits_balance", gorm.Expr("credits_balance + ?", -original.Amount))
		if res.Error != nil {
			return fmt.Errorf("credit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "user", ID: userID}
		}

		entry = models.CreditTransaction{
			UserID:      userID,
			Amount:      -original.Amount,
			Type:        models.TransactionRefund,
			FeatureKey:  original.FeatureKey,
			RefundsID:   &original.ID,
			Description: fmt.Sprintf("Refund of transaction %d", original.ID),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cs.Logger.Printf("refunded user %d: transaction %d (+%d credits)", userID, originalTransactionID, entry.Amount)
	return &entry, nil
}

// Balance reads the user's current credit balance.
func (cs *CreditService) Balance(ctx context.Context, userID uint) (int, error) {
	var user models.User
	if err := cs.DB.WithContext(ctx).Select("credits_balance").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &NotFoundError{Resource: "user", ID: userID}
		}
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user.CreditsBalance, nil
}

// Transactions returns the user's ledger, newest first.
func (cs *CreditService) Transactions(ctx context.Context, userID uint) ([]models.CreditTransaction, error) {
	var entries []models.CreditTransaction
	err := cs.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}
