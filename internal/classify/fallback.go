package classify

import (
	"context"
	"log/slog"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// TextFallback chains a primary text classifier (typically the trained model
// client) with a secondary used when the primary errors. The chain itself
// never fails as long as the secondary is the heuristic.
type TextFallback struct {
	Primary   domain.TextClassifier
	Secondary domain.TextClassifier
	Logger    *slog.Logger
}

var _ domain.TextClassifier = TextFallback{}

func (f TextFallback) ScoreText(ctx context.Context, text string) (domain.TextAnalysis, error) {
	analysis, err := f.Primary.ScoreText(ctx, text)
	if err == nil {
		return analysis, nil
	}
	if f.Logger != nil {
		f.Logger.Warn("primary text classifier failed, using fallback", "error", err)
	}
	return f.Secondary.ScoreText(ctx, text)
}
