package domain

import "time"

// VerificationOutcome tags how a reporter's past signal was resolved.
type VerificationOutcome string

const (
	VerifiedCorrect   VerificationOutcome = "verified_correct"
	VerifiedIncorrect VerificationOutcome = "verified_incorrect"
	PartiallyCorrect  VerificationOutcome = "partially_correct"
	Unverified        VerificationOutcome = "unverified"
	FalseAlarm        VerificationOutcome = "false_alarm"
)

// TrustEvent is one entry in a reporter's append-only verification log, the
// durable source of truth for credibility.
type TrustEvent struct {
	UserID           string              `json:"user_id"`
	Outcome          VerificationOutcome `json:"outcome"`
	OccurredAt       time.Time           `json:"occurred_at"`
	Confidence       float64             `json:"confidence"`        // 0–1
	Complexity       float64             `json:"complexity"`        // 0–1, how difficult the report was
	Source           string              `json:"source"`            // analyst, volunteer, automated, peer_review
	LocationAccuracy float64             `json:"location_accuracy"` // 0–1
	TimeToVerify     time.Duration       `json:"time_to_verify"`
}

// TrustBreakdown exposes the weighted components behind a trust score, each
// on the 0.5–5.0 scale.
type TrustBreakdown struct {
	Accuracy    float64 `json:"accuracy"`
	Consistency float64 `json:"consistency"`
	Timeliness  float64 `json:"timeliness"`
	Complexity  float64 `json:"complexity"`
	Recency     float64 `json:"recency"`
}

// Reliability trend labels.
const (
	TrendNewUser          = "new_user"
	TrendInsufficientData = "insufficient_data"
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
)

// TrustProfile is the derived credibility view of a reporter, recomputed on
// demand from the event log.
type TrustProfile struct {
	UserID           string         `json:"user_id"`
	Score            float64        `json:"score"`      // bounded [0.5, 5.0]
	Confidence       float64        `json:"confidence"` // 0–1, saturates at 20 events
	TotalReports     int            `json:"total_reports"`
	VerificationRate float64        `json:"verification_rate"` // 0–1
	Trend            string         `json:"trend"`
	Level            string         `json:"level"`
	Breakdown        TrustBreakdown `json:"breakdown"`
	RecentActivity   int            `json:"recent_activity"`
	LastReportAt     time.Time      `json:"last_report_at,omitzero"`
	Recommendations  []string       `json:"recommendations,omitempty"`
}

// CredibilityFactor converts the 0.5–5.0 trust score into the 0–1 reporter
// credibility term used by the threat scorer.
func (p TrustProfile) CredibilityFactor() float64 {
	return Clamp01(p.Score / 5.0)
}

// TrustLevel maps a trust score to its categorical label.
func TrustLevel(score float64) string {
	switch {
	case score >= 4.5:
		return "excellent"
	case score >= 4.0:
		return "very_good"
	case score >= 3.5:
		return "good"
	case score >= 2.5:
		return "fair"
	case score >= 1.5:
		return "poor"
	default:
		return "very_poor"
	}
}
