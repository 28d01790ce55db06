package services

import (
	"errors"
	"fmt"
)

// InsufficientFundsError is the one expected, recoverable billing failure.
// Callers branch on it: persist the user's work, skip the paid operation,
// and report a distinct reason code instead of a generic error.
type InsufficientFundsError struct {
	Required  int
	Available int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Available)
}

// AsInsufficientFunds unwraps err into an InsufficientFundsError, if it is one.
func AsInsufficientFunds(err error) (*InsufficientFundsError, bool) {
	var target *InsufficientFundsError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// NotFoundError reports a missing (or not owned) user, exercise or attempt.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// UnknownFeatureError reports a feature key with no pricing catalog entry.
// This is a configuration error, never a cost-0 default.
type UnknownFeatureError struct {
	Key string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("feature %q has no pricing entry", e.Key)
}

func IsUnknownFeature(err error) bool {
	var target *UnknownFeatureError
	return errors.As(err, &target)
}

var (
	// ErrPremiumRequired gates premium-only features regardless of balance.
	ErrPremiumRequired = errors.New("premium subscription required")

	// ErrAlreadyEvaluated rejects Submit on an evaluated attempt; re-scoring
	// goes through Reevaluate, which bills again.
	ErrAlreadyEvaluated = errors.New("attempt already evaluated")

	// ErrNoContent rejects evaluation of an attempt that has no saved content.
	ErrNoContent = errors.New("attempt has no content")

	ErrEmptyContent = errors.New("content must not be empty")

	ErrInvalidAmount = errors.New("amount must not be negative")

	// ErrNotRefundable rejects refunds of anything but a usage_charge debit.
	ErrNotRefundable = errors.New("transaction is not a refundable charge")

	// ErrAlreadyRefunded guards against a double compensating credit for the
	// same original debit.
	ErrAlreadyRefunded = errors.New("transaction already refunded")
)
