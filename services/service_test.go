package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bandup/config"
	"bandup/models"
	"bandup/utils"
)

// newTestDB opens a per-test in-memory database. A single connection keeps
// concurrent transactions serialized instead of failing with SQLITE_BUSY.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestCreditService(t *testing.T) (*gorm.DB, *CreditService) {
	t.Helper()
	db := newTestDB(t)
	pricing := NewPricingCatalog(db)
	return db, NewCreditService(db, pricing, testLogger())
}

var userSeq int

// createUser inserts a user and funds it through the ledger, so the
// balance == sum(ledger) invariant holds from the first row.
func createUser(t *testing.T, cs *CreditService, balance int) *models.User {
	t.Helper()

	userSeq++
	user := models.User{
		Email:        fmt.Sprintf("student%d@example.com", userSeq),
		PasswordHash: "x",
		IsActive:     true,
	}
	if err := cs.DB.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if balance > 0 {
		if _, err := cs.CreditUser(context.Background(), user.ID, balance, models.TransactionCreditAdded, "Signup grant"); err != nil {
			t.Fatalf("fund user: %v", err)
		}
		user.CreditsBalance = balance
	}
	return &user
}

func currentBalance(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user %d: %v", userID, err)
	}
	return user.CreditsBalance
}

// assertLedgerConsistent checks the core invariant: the stored balance equals
// the sum of the user's ledger entries.
func assertLedgerConsistent(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()

	var sum int
	err := db.Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		t.Fatalf("sum ledger: %v", err)
	}
	if balance := currentBalance(t, db, userID); balance != sum {
		t.Fatalf("ledger inconsistent: balance=%d sum(ledger)=%d", balance, sum)
	}
}

func ledgerEntries(t *testing.T, db *gorm.DB, userID uint, txType string) []models.CreditTransaction {
	t.Helper()
	var entries []models.CreditTransaction
	if err := db.Where("user_id = ? AND type = ?", userID, txType).Order("id").Find(&entries).Error; err != nil {
		t.Fatalf("list %s entries: %v", txType, err)
	}
	return entries
}

// stubAI implements AIService with canned responses.
type stubAI struct {
	evaluation    utils.Evaluation
	evaluateErr   error
	evaluateCalls int

	rewritten  string
	rewriteErr error

	analysis   utils.ChartAnalysis
	analyzeErr error
}

func (s *stubAI) Evaluate(ctx context.Context, content string, exercise *models.Exercise) (*utils.Evaluation, error) {
	s.evaluateCalls++
	if s.evaluateErr != nil {
		return nil, s.evaluateErr
	}
	eval := s.evaluation
	return &eval, nil
}

func (s *stubAI) RewriteContent(ctx context.Context, text string) (string, error) {
	if s.rewriteErr != nil {
		return "", s.rewriteErr
	}
	return s.rewritten, nil
}

func (s *stubAI) AnalyzeChartImage(ctx context.Context, image []byte, mimeType string) (*utils.ChartAnalysis, error) {
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	analysis := s.analysis
	return &analysis, nil
}
