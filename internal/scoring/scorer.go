// Package scoring computes composite threat scores: per-signal confidence on
// the 0–1 scale and per-cluster risk on the 0–10 scale. Both are pure
// functions of their inputs; see the domain package doc for the scale
// convention.
package scoring

import (
	"math"

	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/geo"
)

// Composite score weights. They must sum to 1 so an all-ones input maxes out
// at exactly 1.0.
const (
	textWeight          = 0.40
	imageWeight         = 0.30
	credibilityWeight   = 0.15
	densityWeight       = 0.10
	corroborationWeight = 0.05
)

// Cluster risk bonuses on the 0–10 scale.
const (
	densityBonusCap      = 3.0
	verificationBonusMax = 2.0
	countBonusCap        = 2.0
)

// Context carries the situational factors a signal is scored against.
type Context struct {
	Credibility   float64 // reporter trust factor, 0–1
	LocalDensity  float64 // nearby-signal density, 0–1
	Corroboration float64 // independent social corroboration, 0–1
}

// ScoreSignal computes the trust-weighted composite for one signal. Output is
// always within [0, 1], including for all-zero sub-scores.
func ScoreSignal(sig domain.Signal, sctx Context) float64 {
	composite := textWeight*domain.Clamp01(sig.TextConfidence) +
		imageWeight*domain.Clamp01(sig.ImageConfidence) +
		credibilityWeight*domain.Clamp01(sctx.Credibility) +
		densityWeight*domain.Clamp01(sctx.LocalDensity) +
		corroborationWeight*domain.Clamp01(sctx.Corroboration)
	return domain.Clamp01(composite)
}

// DeriveContext computes the density and corroboration factors for a signal
// from its recent neighbors. Density saturates at 10 neighbors within
// radiusKm; corroboration at 5 independent social posts.
func DeriveContext(sig domain.Signal, neighbors []domain.Signal, radiusKm, credibility float64) Context {
	var nearby, social int
	for _, n := range neighbors {
		if n.ID == sig.ID {
			continue
		}
		if geo.DistanceKm(sig.Location, n.Location) > radiusKm {
			continue
		}
		nearby++
		if n.Source == domain.SourceSocial {
			social++
		}
	}
	return Context{
		Credibility:   domain.Clamp01(credibility),
		LocalDensity:  math.Min(1, float64(nearby)/10),
		Corroboration: math.Min(1, float64(social)/5),
	}
}

// ClusterStats summarizes the member signals feeding a cluster risk score.
type ClusterStats struct {
	AvgConfidence    float64 // mean member composite, 0–1
	Count            int
	RadiusKm         float64
	VerificationRate float64 // 0–1
}

// StatsFromSignals aggregates cluster member signals into scoring inputs.
func StatsFromSignals(signals []domain.Signal, centroid domain.GeoPoint) ClusterStats {
	if len(signals) == 0 {
		return ClusterStats{}
	}

	var confSum float64
	var verified int
	var radius float64
	for _, s := range signals {
		confSum += domain.Clamp01(s.Composite)
		if s.Verified {
			verified++
		}
		if d := geo.DistanceKm(centroid, s.Location); d > radius {
			radius = d
		}
	}
	return ClusterStats{
		AvgConfidence:    confSum / float64(len(signals)),
		Count:            len(signals),
		RadiusKm:         radius,
		VerificationRate: float64(verified) / float64(len(signals)),
	}
}

// ScoreCluster computes the 0–10 risk score: mean confidence converted to the
// risk scale, plus density, verification, and count bonuses, capped at 10.
//
//	densityBonus      = min(0.5·count/(radiusKm+1), 3.0)
//	verificationBonus = verificationRate·2.0
//	countBonus        = min(0.2·count, 2.0)
func ScoreCluster(stats ClusterStats) domain.RiskScore {
	base := float64(domain.RiskFromConfidence(stats.AvgConfidence))

	densityBonus := math.Min(0.5*float64(stats.Count)/(stats.RadiusKm+1), densityBonusCap)
	verificationBonus := domain.Clamp01(stats.VerificationRate) * verificationBonusMax
	countBonus := math.Min(0.2*float64(stats.Count), countBonusCap)

	total := base + densityBonus + verificationBonus + countBonus
	if total > 10 {
		total = 10
	}
	if total < 0 || math.IsNaN(total) {
		total = 0
	}
	return domain.RiskScore(total)
}
