// Package domain models crowd-sourced ocean hazard observations and the
// derived artifacts the engine produces from them: signals, clusters, zones,
// trust profiles, and escalation forecasts.
//
// # Data Source
//
// Signals originate from two feeds published to the Kafka source topic by the
// collector services: citizen reports submitted through the mobile/web portal
// and geolocated social media posts. Both arrive as flat JSON
// ([RawSignal]) and are normalized into a [Signal] at ingest.
//
// # Scoring Scales
//
// Two scales coexist in this system and exactly one conversion between them
// is permitted:
//
//	Per-signal scores (text confidence, image confidence, urgency, composite)
//	are probabilities on [0, 1].
//
//	Per-cluster risk is on [0, 10]: the mean member composite ×10 plus
//	density, verification, and count bonuses, capped at 10. See
//	[RiskFromConfidence] and [RiskScore.Normalized], the only two places the
//	×10 / ÷10 conversion happens.
//
// Risk levels on the 0–10 scale: ≥8.5 critical, ≥7.0 high, ≥5.0 medium,
// else low. Escalation probabilities map on the 0–1 scale: ≥0.8 critical,
// ≥0.6 high, ≥0.4 medium, else low.
//
// Trust scores are on [0.5, 5.0] with a neutral base of 3.0; a reporter's
// credibility factor inside the composite score is trust/5.
//
// All scores are clamped at their bounds and are never NaN, including for
// empty inputs.
//
// # ID Generation
//
// Signal IDs are deterministic SHA-256 hashes of source|reporter|lat|lon|time.
// This enables idempotent upserts downstream and replay safety when the
// source topic is reconsumed. See [GenerateSignalID]. Zone IDs are random
// UUIDs because zones are created exactly once by the partition-serialized
// clustering pass.
package domain
