package domain

// HazardType identifies the kind of ocean hazard a signal or zone refers to.
type HazardType string

const (
	HazardTsunami    HazardType = "tsunami"
	HazardStormSurge HazardType = "storm_surge"
	HazardHighWaves  HazardType = "high_waves"
	HazardFlood      HazardType = "flood"
	HazardCyclone    HazardType = "cyclone"
	HazardOilSpill   HazardType = "oil_spill"
	HazardOther      HazardType = "other"
)

// KnownHazards lists every hazard type the classifiers can emit, in a fixed
// order so probability maps serialize deterministically.
var KnownHazards = []HazardType{
	HazardTsunami,
	HazardStormSurge,
	HazardHighWaves,
	HazardFlood,
	HazardCyclone,
	HazardOilSpill,
	HazardOther,
}

// RiskLevel is the categorical severity shared by cluster risk scores and
// escalation probabilities.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskScore is a cluster risk value on the 0–10 scale.
type RiskScore float64

// RiskFromConfidence converts a 0–1 confidence into the 0–10 risk scale.
// This and [RiskScore.Normalized] are the only scale conversions in the system.
func RiskFromConfidence(confidence float64) RiskScore {
	return RiskScore(Clamp01(confidence) * 10)
}

// Normalized returns the risk score back on the 0–1 scale, for comparison
// against thresholds expressed as probabilities (e.g. the auto-alert
// threshold).
func (r RiskScore) Normalized() float64 {
	return Clamp01(float64(r) / 10)
}

// Level maps a 0–10 risk score to its categorical level.
func (r RiskScore) Level() RiskLevel {
	switch {
	case r >= 8.5:
		return RiskCritical
	case r >= 7.0:
		return RiskHigh
	case r >= 5.0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// LevelFromProbability maps a 0–1 escalation probability to its level.
func LevelFromProbability(p float64) RiskLevel {
	switch {
	case p >= 0.8:
		return RiskCritical
	case p >= 0.6:
		return RiskHigh
	case p >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Clamp01 bounds v to [0, 1]. NaN clamps to 0 so degraded inputs can never
// propagate an unbounded score.
func Clamp01(v float64) float64 {
	if !(v > 0) { // catches NaN as well as negatives
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// hazardActions maps each hazard type to its operator guidance. Derived from
// the response playbooks used by the coastal authorities this system reports
// to.
var hazardActions = map[HazardType][]string{
	HazardTsunami:    {"Activate tsunami warning system", "Clear coastal areas"},
	HazardCyclone:    {"Secure loose objects", "Prepare shelters"},
	HazardOilSpill:   {"Deploy containment booms", "Notify environmental agencies"},
	HazardFlood:      {"Monitor water levels", "Prepare sandbags"},
	HazardStormSurge: {"Close coastal roads", "Move vessels to safe harbor"},
	HazardHighWaves:  {"Suspend small-craft operations", "Warn beachgoers"},
}

// RecommendedActions returns operator guidance for a risk score and hazard
// type, most severe actions first.
func RecommendedActions(risk RiskScore, hazard HazardType) []string {
	var actions []string

	switch {
	case risk >= 8.5:
		actions = append(actions,
			"Immediate evacuation alert",
			"Deploy emergency response teams",
			"Establish safety perimeter",
			"Activate emergency broadcast system",
		)
	case risk >= 7.0:
		actions = append(actions,
			"Issue high-priority alert",
			"Prepare evacuation routes",
			"Increase monitoring",
			"Notify emergency services",
		)
	case risk >= 5.0:
		actions = append(actions,
			"Issue area warning",
			"Monitor situation",
			"Prepare response resources",
		)
	}

	if specific, ok := hazardActions[hazard]; ok {
		actions = append(actions, specific...)
	}
	if len(actions) == 0 {
		actions = append(actions, "Continue routine monitoring")
	}
	return actions
}
