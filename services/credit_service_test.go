package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bandup/models"
)

func TestBillUser_DebitsBalanceAndAppendsLedger(t *testing.T) {
	db, cs := newTestCreditService(t)
	user := createUser(t, cs, 10)

	entry, err := cs.BillUser(context.Background(), user.ID, models.FeatureWritingEvaluation, nil)
	if err != nil {
		t.Fatalf("BillUser: %v", err)
	}
	if entry.Amount != -5 {
		t.Fatalf("expected amount -5, got %d", entry.Amount)
	}
	if entry.Type != models.TransactionUsageCharge {
		t.Fatalf("expected usage_charge, got %q", entry.Type)
	}
	if entry.FeatureKey == nil || *entry.FeatureKey != models.FeatureWritingEvaluation {
		t.Fatalf("expected feature key on ledger entry")
	}
	if balance := currentBalance(t, db, user.ID); balance != 5 {
		t.Fatalf("expected balance 5, got %d", balance)
	}
	assertLedgerConsistent(t, db, user.ID)
}

func TestBillUser_InsufficientCreditsWritesNothing(t *testing.T) {
	db, cs := newTestCreditService(t)
	user := createUser(t, cs, 3)

	_, err := cs.BillUser(context.Background(), user.ID, models.FeatureWritingEvaluation, nil)
	shortfall, ok := AsInsufficientFunds(err)
	if !ok {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if shortfall.Required != 5 || shortfall.Available != 3 {
		t.Fatalf("unexpected shortfall: need %d have %d", shortfall.Required, shortfall.Available)
	}
	if balance := currentBalance(t, db, user.ID); balance != 3 {
		t.Fatalf("balance changed on failed debit: %d", balance)
	}
	if charges := ledgerEntries(t, db, user.ID, models.TransactionUsageCharge); len(charges) != 0 {
		t.Fatalf("expected no usage_charge rows, got %d", len(charges))
	}
	assertLedgerConsistent(t, db, user.ID)
}

func TestBillUser_UnknownFeatureIsHardError(t *testing.T) {
	db, cs := newTestCreditService(t)
	user := createUser(t, cs, 10)

	_, err := cs.BillUser(context.Background(), user.ID, "grammar_checker", nil)
	if !IsUnknownFeature(err) {
		t.Fatalf("expected UnknownFeatureError, got %v", err)
	}
	if balance := currentBalance(t, db, user.ID); balance != 10 {
		t.Fatalf("balance changed on unknown feature: %d", balance)
	}
}

func TestBillUser_ZeroCostStillRecordsUsage(t *testing.T) {
	db, cs := newTestCreditService(t)
	user := createUser(t, cs, 0)

	entry, err := cs.BillUser(context.Background(), user.ID, models.FeatureMockTest, nil)
	if err != nil {
		t.Fatalf("BillUser: %v", err)
	}
	if entry.Amount != 0 {
		t.Fatalf("expected amount 0, got %d", entry.Amount)
	}
	if charges := ledgerEntries(t, db, user.ID, models.TransactionUsageCharge); len(charges) != 1 {
		t.Fatalf("expected one usage_charge row, got %d", len(charges))
	}
	assertLedgerConsistent(t, db, user.ID)
}

func TestBillUser_MissingUser(t *testing.T) {
	_, cs := newTestCreditService(t)

	_, err := cs.BillUser(context.Background(), 9999, models.FeatureWritingEvaluation, nil)
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

// Two concurrent debits against a balance that only covers one: exactly one
// wins and the balance never goes negative.
func TestBillUser_ConcurrentDebitsExactlyOneWinner(t *testing.T) {
	db, cs := newTestCreditService(t)
	user := createUser(t, cs, 5)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cs.BillUser(context.Background(), user.ID, models.FeatureWritingEvaluation, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, shortfalls int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			if _, ok := AsInsufficientFunds(err); !ok {
				t.Fatalf("unexpected error: %v", err)
			}
			shortfalls++
		}
	}
	if wins != 1 || shortfalls != 1 {
		t.Fatalf("expected 1 win and 1 shortfall, got %d/%d", wins, shortfalls)
	}
	if balance := currentBalance(t, db, user.ID); balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
	assertLedgerConsistent(t, db, user.ID)
}

func TestCreditUser_RejectsNegativeAmount(t *testing.T) {
	_, cs := newTestCreditService(t)
	user := createUser(t, cs, 0)

	if _, err := cs.CreditUser(context.Background(), user.ID, -5, models.TransactionCreditAdded, "bad"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRefund_CompensatesChargeExactlyOnce(t *testing.T) {
	db, cs := newTestCreditService(t)
	user := createUser(t, cs, 10)

	charge, err := cs.BillUser(context.Background(), user.ID, models.FeatureWritingEvaluation, nil)
	if err != nil {
		t.Fatalf("BillUser: %v", err)
	}

	refund, err := cs.Refund(context.Background(), user.ID, charge.ID)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refund.Amount != 5 {
		t.Fatalf("expected refund amount 5, got %d", refund.Amount)
	}
	if refund.RefundsID == nil || *refund.RefundsID != charge.ID {
		t.Fatalf("refund does not reference original charge")
	}
	if balance := currentBalance(t, db, user.ID); balance != 10 {
		t.Fatalf("expected balance restored to 10, got %d", balance)
	}

	// The original debit row is untouched.
	var original models.CreditTransaction
	if err := db.First(&original, charge.ID).Error; err != nil {
		t.Fatalf("reload charge: %v", err)
	}
	if original.Amount != -5 || original.Type != models.TransactionUsageCharge {
		t.Fatalf("original ledger entry was mutated: %+v", original)
	}

	if _, err := cs.Refund(context.Background(), user.ID, charge.ID); !errors.Is(err, ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}
	assertLedgerConsistent(t, db, user.ID)
}

func TestRefund_RejectsNonChargeEntries(t *testing.T) {
	_, cs := newTestCreditService(t)
	user := createUser(t, cs, 0)

	grant, err := cs.CreditUser(context.Background(), user.ID, 20, models.TransactionCreditAdded, "top-up")
	if err != nil {
		t.Fatalf("CreditUser: %v", err)
	}
	if _, err := cs.Refund(context.Background(), user.ID, grant.ID); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("expected ErrNotRefundable, got %v", err)
	}
}

func TestRefund_ForeignTransactionNotFound(t *testing.T) {
	_, cs := newTestCreditService(t)
	owner := createUser(t, cs, 10)
	other := createUser(t, cs, 10)

	charge, err := cs.BillUser(context.Background(), owner.ID, models.FeatureWritingEvaluation, nil)
	if err != nil {
		t.Fatalf("BillUser: %v", err)
	}
	if _, err := cs.Refund(context.Background(), other.ID, charge.ID); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestTransactions_NewestFirst(t *testing.T) {
	_, cs := newTestCreditService(t)
	user := createUser(t, cs, 10)

	if _, err := cs.BillUser(context.Background(), user.ID, models.FeatureTextRewriter, nil); err != nil {
		t.Fatalf("BillUser: %v", err)
	}

	entries, err := cs.Transactions(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].Type != models.TransactionUsageCharge {
		t.Fatalf("expected newest entry first, got %q", entries[0].Type)
	}
}
