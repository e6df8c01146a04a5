package domain

import "time"

// Cluster is a transient density-connected group of signals, recomputed each
// clustering pass. Clusters are never persisted directly; qualifying clusters
// are promoted into zones.
type Cluster struct {
	ID               string
	SignalIDs        []string
	Centroid         GeoPoint
	Polygon          []GeoPoint // convex hull, buffered
	Count            int
	RadiusKm         float64 // max member distance from centroid
	AvgConfidence    float64 // mean member composite, 0–1
	VerificationRate float64
	Risk             RiskScore
	Level            RiskLevel
	Hazard           HazardType
	HazardCounts     map[HazardType]int
	PartitionKey     string
}

// ZoneType distinguishes auto-alert hazard zones from advisory ones.
type ZoneType string

const (
	ZoneHazard   ZoneType = "hazard"
	ZoneAdvisory ZoneType = "advisory"
)

// Zone is a persisted geographic area derived from a cluster that crossed the
// auto-alert threshold. Its radius never shrinks while reinforcing clusters
// arrive; it only resets via expiry and recreation.
type Zone struct {
	ID                    string     `json:"id"`
	Type                  ZoneType   `json:"type"`
	Name                  string     `json:"name"`
	Centroid              GeoPoint   `json:"centroid"`
	Polygon               []GeoPoint `json:"polygon"`
	AvgConfidence         float64    `json:"avg_confidence"`
	ReportCount           int        `json:"report_count"`
	RadiusKm              float64    `json:"radius_km"`
	Hazard                HazardType `json:"hazard"`
	EvacuationRecommended bool       `json:"evacuation_recommended"`
	Active                bool       `json:"active"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	ExpiresAt             time.Time  `json:"expires_at"`
}

// Expired reports whether the zone's TTL has elapsed at the given instant.
// Expiry is a pure time check; callers may evaluate it lazily on read.
func (z Zone) Expired(at time.Time) bool {
	return !z.ExpiresAt.IsZero() && at.After(z.ExpiresAt)
}

// ZoneEventKind enumerates zone lifecycle transitions emitted for broadcast.
type ZoneEventKind string

const (
	ZoneCreated ZoneEventKind = "zone_created"
	ZoneUpdated ZoneEventKind = "zone_updated"
	ZoneExpired ZoneEventKind = "zone_expired"
)

// ZoneEvent is published to the sink topic on every zone transition.
type ZoneEvent struct {
	Kind ZoneEventKind `json:"kind"`
	Zone Zone          `json:"zone"`
	At   time.Time     `json:"at"`
}
