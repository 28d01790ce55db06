package services

import (
	"context"
	"errors"
	"testing"

	"bandup/models"
	"bandup/utils"
)

func newTestToolsService(t *testing.T, ai *stubAI) (*AIToolsService, *CreditService) {
	t.Helper()
	_, cs := newTestCreditService(t)
	return NewAIToolsService(cs, ai, testLogger()), cs
}

func TestRewrite_BillsAndReturnsRewrite(t *testing.T) {
	ai := &stubAI{rewritten: "A markedly better paragraph."}
	ts, cs := newTestToolsService(t, ai)
	user := createUser(t, cs, 10)

	rewritten, err := ts.Rewrite(context.Background(), user, "a mediocre paragraph")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if rewritten != "A markedly better paragraph." {
		t.Fatalf("unexpected rewrite: %q", rewritten)
	}
	if balance := currentBalance(t, cs.DB, user.ID); balance != 8 {
		t.Fatalf("expected balance 8 after rewrite, got %d", balance)
	}
	assertLedgerConsistent(t, cs.DB, user.ID)
}

// A rewrite that bills but delivers nothing is compensated automatically: the
// ledger shows the charge and its refund, and the balance is restored.
func TestRewrite_AutoRefundsOnAIFailure(t *testing.T) {
	ai := &stubAI{rewriteErr: errors.New("upstream timeout")}
	ts, cs := newTestToolsService(t, ai)
	user := createUser(t, cs, 10)

	if _, err := ts.Rewrite(context.Background(), user, "some text"); err == nil {
		t.Fatalf("expected AI error")
	}
	if balance := currentBalance(t, cs.DB, user.ID); balance != 10 {
		t.Fatalf("expected balance restored to 10, got %d", balance)
	}
	if charges := ledgerEntries(t, cs.DB, user.ID, models.TransactionUsageCharge); len(charges) != 1 {
		t.Fatalf("expected the charge to remain on the ledger, got %d", len(charges))
	}
	if refunds := ledgerEntries(t, cs.DB, user.ID, models.TransactionRefund); len(refunds) != 1 {
		t.Fatalf("expected one refund entry, got %d", len(refunds))
	}
	assertLedgerConsistent(t, cs.DB, user.ID)
}

func TestRewrite_RejectsEmptyText(t *testing.T) {
	ts, cs := newTestToolsService(t, &stubAI{})
	user := createUser(t, cs, 10)

	if _, err := ts.Rewrite(context.Background(), user, "  \n "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if balance := currentBalance(t, cs.DB, user.ID); balance != 10 {
		t.Fatalf("empty text was billed: balance %d", balance)
	}
}

func TestRewrite_InsufficientCreditsNeverCallsAI(t *testing.T) {
	ai := &stubAI{rewritten: "never delivered"}
	ts, cs := newTestToolsService(t, ai)
	user := createUser(t, cs, 1)

	_, err := ts.Rewrite(context.Background(), user, "text")
	if _, ok := AsInsufficientFunds(err); !ok {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
}

func TestAnalyzeChart_BillsAndReturnsAnalysis(t *testing.T) {
	ai := &stubAI{analysis: utils.ChartAnalysis{
		IsValid:   true,
		ChartType: "bar",
		DataPoints: []utils.ChartDataPoint{
			{Label: "2019", Value: 42},
		},
	}}
	ts, cs := newTestToolsService(t, ai)
	user := createUser(t, cs, 10)

	analysis, err := ts.AnalyzeChart(context.Background(), user, []byte{0x89, 0x50}, "image/png")
	if err != nil {
		t.Fatalf("AnalyzeChart: %v", err)
	}
	if !analysis.IsValid || analysis.ChartType != "bar" {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if balance := currentBalance(t, cs.DB, user.ID); balance != 7 {
		t.Fatalf("expected balance 7 after chart analysis, got %d", balance)
	}
	assertLedgerConsistent(t, cs.DB, user.ID)
}

func TestAnalyzeChart_AutoRefundsOnAIFailure(t *testing.T) {
	ai := &stubAI{analyzeErr: errors.New("upstream timeout")}
	ts, cs := newTestToolsService(t, ai)
	user := createUser(t, cs, 10)

	if _, err := ts.AnalyzeChart(context.Background(), user, []byte{0x89, 0x50}, "image/png"); err == nil {
		t.Fatalf("expected AI error")
	}
	if balance := currentBalance(t, cs.DB, user.ID); balance != 10 {
		t.Fatalf("expected balance restored to 10, got %d", balance)
	}
	assertLedgerConsistent(t, cs.DB, user.ID)
}
