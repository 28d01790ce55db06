package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bandup/models"
	"bandup/utils"
)

// AIToolsService runs the stateless billed AI features: text rewriting and
// chart image analysis. Unlike evaluations there is no persisted artifact, so
// a failed AI call after a successful debit is automatically compensated with
// a refund before the error is returned.
type AIToolsService struct {
	Credits *CreditService
	AI      AIService
	Logger  *log.Logger
}

func NewAIToolsService(credits *CreditService, ai AIService, logger *log.Logger) *AIToolsService {
	return &AIToolsService{
		Credits: credits,
		AI:      ai,
		Logger:  logger,
	}
}

// Rewrite bills text_rewriter and returns the higher-band rewrite.
func (ts *AIToolsService) Rewrite(ctx context.Context, user *models.User, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}

	charge, err := ts.Credits.BillUser(ctx, user.ID, models.FeatureTextRewriter, nil)
	if err != nil {
		return "", err
	}

	rewritten, err := ts.AI.RewriteContent(ctx, text)
	if err != nil {
		ts.refundCharge(ctx, user.ID, charge.ID)
		return "", fmt.Errorf("rewrite text: %w", err)
	}
	return rewritten, nil
}

// AnalyzeChart bills chart_analysis and validates an uploaded Task 1 chart
// image.
func (ts *AIToolsService) AnalyzeChart(ctx context.Context, user *models.User, image []byte, mimeType string) (*utils.ChartAnalysis, error) {
	if len(image) == 0 {
		return nil, ErrEmptyContent
	}

	charge, err := ts.Credits.BillUser(ctx, user.ID, models.FeatureChartAnalysis, nil)
	if err != nil {
		return nil, err
	}

	analysis, err := ts.AI.AnalyzeChartImage(ctx, image, mimeType)
	if err != nil {
		ts.refundCharge(ctx, user.ID, charge.ID)
		return nil, fmt.Errorf("analyze chart: %w", err)
	}
	return analysis, nil
}

// refundCharge compensates a debit whose AI call delivered nothing. A failed
// refund is logged, not surfaced: the caller already has the AI error and
// support can replay the refund from the ledger.
func (ts *AIToolsService) refundCharge(ctx context.Context, userID, transactionID uint) {
	if _, err := ts.Credits.Refund(ctx, userID, transactionID); err != nil {
		ts.Logger.Printf("failed to refund transaction %d for user %d: %v", transactionID, userID, err)
	}
}
