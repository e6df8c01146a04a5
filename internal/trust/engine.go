// Package trust derives reporter credibility from append-only verification
// logs. Scores are pure functions of the event list and the clock; the log
// itself is the durable source of truth and is never mutated here.
package trust

import (
	"math"
	"sort"
	"time"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

const (
	baseScore = 3.0
	maxScore  = 5.0
	minScore  = 0.5

	// decayRate halves roughly every 14 months of inactivity; applied per
	// 30-day period since the last event.
	decayRate = 0.95

	// recentWindow bounds the "recent activity" slice of the log.
	recentWindow = 90 * 24 * time.Hour

	// confidenceSaturation is the event count at which profile confidence
	// reaches 1.0.
	confidenceSaturation = 20
)

// sourceWeights discounts verification outcomes by who performed the
// verification. Unknown sources get a conservative 0.5.
var sourceWeights = map[string]float64{
	"analyst":     1.0,
	"volunteer":   0.8,
	"peer_review": 0.7,
	"automated":   0.6,
}

// Compute derives a reporter's trust profile from their verification events.
// An empty log yields the neutral new-user profile: base score 3.0,
// confidence 0.1, trend "new_user".
func Compute(userID string, events []domain.TrustEvent) domain.TrustProfile {
	if len(events) == 0 {
		return domain.TrustProfile{
			UserID:     userID,
			Score:      baseScore,
			Confidence: 0.1,
			Trend:      domain.TrendNewUser,
			Level:      domain.TrustLevel(baseScore),
			Breakdown:  emptyBreakdown(),
		}
	}

	sorted := make([]domain.TrustEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})

	now := domain.Now()
	var recent []domain.TrustEvent
	for _, e := range sorted {
		if now.Sub(e.OccurredAt) < recentWindow {
			recent = append(recent, e)
		}
	}

	breakdown := domain.TrustBreakdown{
		Accuracy:    accuracyScore(sorted),
		Consistency: consistencyScore(sorted),
		Timeliness:  timelinessScore(sorted),
		Complexity:  complexityScore(sorted),
		Recency:     recencyScore(sorted, recent, now),
	}

	score := breakdown.Accuracy*0.35 +
		breakdown.Consistency*0.25 +
		breakdown.Timeliness*0.15 +
		breakdown.Complexity*0.15 +
		breakdown.Recency*0.10
	score = clampScore(score)

	profile := domain.TrustProfile{
		UserID:           userID,
		Score:            score,
		Confidence:       math.Min(1.0, float64(len(sorted))/confidenceSaturation),
		TotalReports:     len(sorted),
		VerificationRate: verificationRate(sorted),
		Trend:            trend(sorted),
		Level:            domain.TrustLevel(score),
		Breakdown:        breakdown,
		RecentActivity:   len(recent),
		LastReportAt:     sorted[len(sorted)-1].OccurredAt,
	}
	profile.Recommendations = recommendations(profile)
	return profile
}

// outcomeScore is the base 0.5–5.0 value for a verification outcome.
// Unverified events are neutral.
func outcomeScore(outcome domain.VerificationOutcome) float64 {
	switch outcome {
	case domain.VerifiedCorrect:
		return 5.0
	case domain.PartiallyCorrect:
		return 3.5
	case domain.VerifiedIncorrect:
		return 2.0
	case domain.FalseAlarm:
		return 1.0
	default:
		return baseScore
	}
}

// accuracyScore is the weighted mean of per-event base scores, scaled by
// event confidence and location accuracy and weighted by verification
// source reliability.
func accuracyScore(events []domain.TrustEvent) float64 {
	var scoreSum, weightSum float64
	for _, e := range events {
		weight, ok := sourceWeights[e.Source]
		if !ok {
			weight = 0.5
		}
		eventScore := outcomeScore(e.Outcome) * (e.Confidence*0.7 + e.LocationAccuracy*0.3)
		scoreSum += eventScore * weight
		weightSum += weight
	}
	return scoreSum / math.Max(1, weightSum)
}

// consistencyScore rewards stable rolling-window accuracy: it is the inverse
// of the variance across windows of max(5, n/4) events, rescaled to the
// 0.5–5.0 band around the base score.
func consistencyScore(events []domain.TrustEvent) float64 {
	if len(events) < 3 {
		return baseScore
	}

	window := len(events) / 4
	if window < 5 {
		window = 5
	}

	var accuracies []float64
	for i := 0; i+window <= len(events); i++ {
		correct := 0
		for _, e := range events[i : i+window] {
			if e.Outcome == domain.VerifiedCorrect {
				correct++
			}
		}
		accuracies = append(accuracies, float64(correct)/float64(window))
	}
	if len(accuracies) == 0 {
		return baseScore
	}

	consistency := math.Max(0, 1-variance(accuracies)*2)
	return baseScore + (consistency-0.5)*4
}

// timelinessScore is a step function of mean verification latency.
func timelinessScore(events []domain.TrustEvent) float64 {
	var totalHours float64
	var count int
	for _, e := range events {
		if e.TimeToVerify > 0 {
			totalHours += e.TimeToVerify.Hours()
			count++
		}
	}
	if count == 0 {
		return baseScore
	}

	switch avg := totalHours / float64(count); {
	case avg <= 1:
		return 5.0
	case avg <= 6:
		return 4.0
	case avg <= 24:
		return 3.0
	case avg <= 72:
		return 2.0
	default:
		return 1.0
	}
}

// complexityScore is a bonus or penalty on accuracy restricted to
// high-complexity events (complexity > 0.7). Reporters with no complex
// reports stay at the base.
func complexityScore(events []domain.TrustEvent) float64 {
	var complexTotal, complexCorrect int
	for _, e := range events {
		if e.Complexity > 0.7 {
			complexTotal++
			if e.Outcome == domain.VerifiedCorrect {
				complexCorrect++
			}
		}
	}
	if complexTotal == 0 {
		return baseScore
	}
	accuracy := float64(complexCorrect) / float64(complexTotal)
	return baseScore + (accuracy-0.5)*4
}

// recencyScore is the recent-window accuracy score multiplied by an
// exponential decay over 30-day periods since the last event.
func recencyScore(all, recent []domain.TrustEvent, now time.Time) float64 {
	last := all[len(all)-1]
	daysSince := now.Sub(last.OccurredAt).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}
	decay := math.Pow(decayRate, daysSince/30)

	recentScore := baseScore
	if len(recent) > 0 {
		correct := 0
		for _, e := range recent {
			if e.Outcome == domain.VerifiedCorrect {
				correct++
			}
		}
		accuracy := float64(correct) / float64(len(recent))
		recentScore = baseScore + (accuracy-0.5)*4
	}
	return recentScore * decay
}

// verificationRate is the fraction of resolved events that were verified
// correct.
func verificationRate(events []domain.TrustEvent) float64 {
	var correct, resolved int
	for _, e := range events {
		switch e.Outcome {
		case domain.VerifiedCorrect:
			correct++
			resolved++
		case domain.VerifiedIncorrect, domain.FalseAlarm:
			resolved++
		}
	}
	if resolved == 0 {
		return 0
	}
	return float64(correct) / float64(resolved)
}

// trend compares first-half and second-half accuracy of the chronological
// log: a shift of more than ±0.1 reads as improving or declining.
func trend(events []domain.TrustEvent) string {
	if len(events) < 5 {
		return domain.TrendInsufficientData
	}

	mid := len(events) / 2
	early := accuracyFraction(events[:mid])
	late := accuracyFraction(events[mid:])

	switch diff := late - early; {
	case diff > 0.1:
		return domain.TrendImproving
	case diff < -0.1:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func accuracyFraction(events []domain.TrustEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	correct := 0
	for _, e := range events {
		if e.Outcome == domain.VerifiedCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(events))
}

// recommendations suggests how a reporter can improve their standing.
func recommendations(p domain.TrustProfile) []string {
	var recs []string
	if p.Breakdown.Accuracy < 3.0 {
		recs = append(recs, "Focus on accuracy - verify information before reporting")
	}
	if p.Breakdown.Consistency < 3.0 {
		recs = append(recs, "Maintain consistent reporting quality over time")
	}
	if p.Breakdown.Timeliness < 3.0 {
		recs = append(recs, "Respond to verification requests promptly")
	}
	if p.RecentActivity < 5 {
		recs = append(recs, "Increase reporting activity to build trust history")
	}
	if p.Score < 2.5 {
		recs = append(recs, "Consider additional training or mentorship")
	}
	return recs
}

func emptyBreakdown() domain.TrustBreakdown {
	return domain.TrustBreakdown{
		Accuracy:    baseScore,
		Consistency: baseScore,
		Timeliness:  baseScore,
		Complexity:  baseScore,
		Recency:     baseScore,
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return sq / float64(len(values))
}
