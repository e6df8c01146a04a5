package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

func TestScoreText_HazardVocabulary(t *testing.T) {
	var h TextHeuristic

	got, err := h.ScoreText(context.Background(), "Huge waves and flooding near the harbor, water receding fast")
	require.NoError(t, err)

	assert.Greater(t, got.HazardProbs[domain.HazardHighWaves], 0.0)
	assert.Greater(t, got.HazardProbs[domain.HazardFlood], 0.0)
	assert.Greater(t, got.HazardProbs[domain.HazardTsunami], 0.0, "receding water reads as tsunami precursor")
	assert.NotEmpty(t, got.Keywords)
	assert.Greater(t, got.Confidence, 0.0)
}

func TestScoreText_UrgencyRaisesConfidence(t *testing.T) {
	var h TextHeuristic
	ctx := context.Background()

	calm, err := h.ScoreText(ctx, "flooding on the coastal road")
	require.NoError(t, err)
	urgent, err := h.ScoreText(ctx, "emergency! urgent help needed, flooding on the coastal road")
	require.NoError(t, err)

	assert.Greater(t, urgent.Urgency, calm.Urgency)
	assert.Greater(t, urgent.Confidence, calm.Confidence)
}

func TestScoreText_IrrelevantTextScoresZero(t *testing.T) {
	var h TextHeuristic

	got, err := h.ScoreText(context.Background(), "lovely sunset at the beach today")
	require.NoError(t, err)

	assert.Empty(t, got.HazardProbs)
	assert.Zero(t, got.Urgency)
	assert.Zero(t, got.Confidence)
}

func TestScoreText_UrgencyAloneStaysLow(t *testing.T) {
	var h TextHeuristic

	got, err := h.ScoreText(context.Background(), "urgent emergency right now")
	require.NoError(t, err)

	assert.Empty(t, got.HazardProbs)
	assert.LessOrEqual(t, got.Confidence, 0.3, "no hazard terms caps confidence at the urgency share")
}

func TestScoreText_ProbabilitiesBounded(t *testing.T) {
	var h TextHeuristic

	// Every cyclone term at once must still clamp at 1.
	got, err := h.ScoreText(context.Background(), "cyclone hurricane typhoon storm gale warning")
	require.NoError(t, err)

	assert.LessOrEqual(t, got.HazardProbs[domain.HazardCyclone], 1.0)
	assert.LessOrEqual(t, got.Confidence, 1.0)
}

func TestScoreText_CaseInsensitive(t *testing.T) {
	var h TextHeuristic
	ctx := context.Background()

	upper, err := h.ScoreText(ctx, "TSUNAMI WARNING")
	require.NoError(t, err)
	lower, err := h.ScoreText(ctx, "tsunami warning")
	require.NoError(t, err)

	assert.Equal(t, lower, upper)
}

func TestScoreImage(t *testing.T) {
	var h ImageHeuristic
	ctx := context.Background()

	cases := []struct {
		name string
		url  string
		want float64
	}{
		{"no media", "", 0},
		{"jpeg", "https://cdn.example.com/wave.JPG", mediaImageScore},
		{"png with query", "https://cdn.example.com/flood.png?sig=abc", mediaImageScore},
		{"video link", "https://cdn.example.com/clip.mp4", mediaUnknownScore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := h.ScoreImage(ctx, tc.url)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Confidence)
		})
	}
}
