// Package zone maintains the persisted hazard-zone lifecycle: promotion of
// qualifying clusters into zones, in-place reinforcement of existing zones,
// and TTL expiry. Every transition is emitted as a domain.ZoneEvent so
// downstream consumers can broadcast without polling.
package zone

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/geo"
)

// Params tune zone promotion and expiry.
type Params struct {
	AutoAlertThreshold float64       // normalized cluster risk that creates a hazard zone
	AdvisoryThreshold  float64       // normalized risk that creates an advisory zone
	MatchEpsilonKm     float64       // extra matching slack beyond a zone's radius
	MinRadiusKm        float64       // floor for a zone's effective radius
	EvacuationRisk     float64       // 0–10 risk at which evacuation is recommended
	TTL                time.Duration // zone lifetime, extended on reinforcement
}

// DefaultParams match the platform's production tuning.
func DefaultParams() Params {
	return Params{
		AutoAlertThreshold: 0.75,
		AdvisoryThreshold:  0.5,
		MatchEpsilonKm:     0.5,
		MinRadiusKm:        1.0,
		EvacuationRisk:     8.0,
		TTL:                24 * time.Hour,
	}
}

// Store is the durable zone repository. Implementations must make UpsertZone
// atomic per zone ID.
type Store interface {
	UpsertZone(ctx context.Context, z domain.Zone) error
	GetZone(ctx context.Context, id string) (domain.Zone, error)
	ActiveZones(ctx context.Context) ([]domain.Zone, error)
	MarkExpired(ctx context.Context, id string, at time.Time) error
}

// Manager applies clustering output to the zone store.
type Manager struct {
	store  Store
	params Params
}

// NewManager creates a Manager. Zero-valued params fall back to defaults.
func NewManager(store Store, p Params) *Manager {
	def := DefaultParams()
	if p.AutoAlertThreshold <= 0 {
		p.AutoAlertThreshold = def.AutoAlertThreshold
	}
	if p.AdvisoryThreshold <= 0 {
		p.AdvisoryThreshold = def.AdvisoryThreshold
	}
	if p.MatchEpsilonKm <= 0 {
		p.MatchEpsilonKm = def.MatchEpsilonKm
	}
	if p.MinRadiusKm <= 0 {
		p.MinRadiusKm = def.MinRadiusKm
	}
	if p.EvacuationRisk <= 0 {
		p.EvacuationRisk = def.EvacuationRisk
	}
	if p.TTL <= 0 {
		p.TTL = def.TTL
	}
	return &Manager{store: store, params: p}
}

// Apply promotes qualifying clusters into zones and reinforces matching
// active zones. Clusters below the advisory threshold are ignored. The
// returned events reflect every transition made, in processing order.
func (m *Manager) Apply(ctx context.Context, clusters []domain.Cluster, now time.Time) ([]domain.ZoneEvent, error) {
	active, events, err := m.liveZones(ctx, now)
	if err != nil {
		return events, err
	}

	for _, cl := range clusters {
		normalized := cl.Risk.Normalized()
		if normalized < m.params.AdvisoryThreshold {
			continue
		}

		if idx := m.match(active, cl); idx >= 0 {
			updated := m.reinforce(active[idx], cl, now)
			if err := m.store.UpsertZone(ctx, updated); err != nil {
				return events, fmt.Errorf("reinforce zone %s: %w", updated.ID, err)
			}
			active[idx] = updated
			events = append(events, domain.ZoneEvent{Kind: domain.ZoneUpdated, Zone: updated, At: now})
			continue
		}

		created := m.promote(cl, normalized, now)
		if err := m.store.UpsertZone(ctx, created); err != nil {
			return events, fmt.Errorf("create zone: %w", err)
		}
		active = append(active, created)
		events = append(events, domain.ZoneEvent{Kind: domain.ZoneCreated, Zone: created, At: now})
	}
	return events, nil
}

// Active returns the live zones, lazily expiring any whose TTL elapsed. The
// expiry events for swept zones are returned alongside the survivors.
func (m *Manager) Active(ctx context.Context, now time.Time) ([]domain.Zone, []domain.ZoneEvent, error) {
	return m.activeWithEvents(ctx, now)
}

// Get looks up one zone by ID, applying lazy expiry. Expired zones are
// returned with Active=false; unknown IDs yield domain.ErrZoneNotFound.
func (m *Manager) Get(ctx context.Context, id string, now time.Time) (domain.Zone, error) {
	z, err := m.store.GetZone(ctx, id)
	if err != nil {
		return domain.Zone{}, err
	}
	if z.Active && z.Expired(now) {
		if err := m.store.MarkExpired(ctx, z.ID, now); err != nil {
			return domain.Zone{}, fmt.Errorf("expire zone %s: %w", z.ID, err)
		}
		z.Active = false
		z.UpdatedAt = now
	}
	return z, nil
}

// Sweep expires every active zone past its TTL and returns the expiry
// events. Intended to run on a schedule in addition to lazy expiry.
func (m *Manager) Sweep(ctx context.Context, now time.Time) ([]domain.ZoneEvent, error) {
	_, events, err := m.activeWithEvents(ctx, now)
	return events, err
}

func (m *Manager) liveZones(ctx context.Context, now time.Time) ([]domain.Zone, []domain.ZoneEvent, error) {
	return m.activeWithEvents(ctx, now)
}

func (m *Manager) activeWithEvents(ctx context.Context, now time.Time) ([]domain.Zone, []domain.ZoneEvent, error) {
	zones, err := m.store.ActiveZones(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list active zones: %w", err)
	}

	var live []domain.Zone
	var events []domain.ZoneEvent
	for _, z := range zones {
		if !z.Expired(now) {
			live = append(live, z)
			continue
		}
		if err := m.store.MarkExpired(ctx, z.ID, now); err != nil {
			return live, events, fmt.Errorf("expire zone %s: %w", z.ID, err)
		}
		z.Active = false
		z.UpdatedAt = now
		events = append(events, domain.ZoneEvent{Kind: domain.ZoneExpired, Zone: z, At: now})
	}
	return live, events, nil
}

// match finds the first live zone of the same hazard whose coverage, padded
// by the match epsilon, contains the cluster centroid.
func (m *Manager) match(zones []domain.Zone, cl domain.Cluster) int {
	for i, z := range zones {
		if z.Hazard != cl.Hazard {
			continue
		}
		if geo.DistanceKm(z.Centroid, cl.Centroid) <= z.RadiusKm+m.params.MatchEpsilonKm {
			return i
		}
	}
	return -1
}

// promote builds a new zone from a qualifying cluster.
func (m *Manager) promote(cl domain.Cluster, normalized float64, now time.Time) domain.Zone {
	radius := math.Max(m.params.MinRadiusKm, cl.RadiusKm)

	zoneType := domain.ZoneAdvisory
	if normalized >= m.params.AutoAlertThreshold {
		zoneType = domain.ZoneHazard
	}

	return domain.Zone{
		ID:                    uuid.NewString(),
		Type:                  zoneType,
		Name:                  zoneName(cl.Hazard, cl.Level),
		Centroid:              cl.Centroid,
		Polygon:               geo.CircleRing(cl.Centroid, radius),
		AvgConfidence:         cl.AvgConfidence,
		ReportCount:           cl.Count,
		RadiusKm:              radius,
		Hazard:                cl.Hazard,
		EvacuationRecommended: float64(cl.Risk) >= m.params.EvacuationRisk,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
		ExpiresAt:             now.Add(m.params.TTL),
	}
}

// reinforce merges a new cluster observation into an existing zone. The
// radius is monotonic: it grows to cover the new cluster but never shrinks
// while the zone lives.
func (m *Manager) reinforce(z domain.Zone, cl domain.Cluster, now time.Time) domain.Zone {
	required := geo.DistanceKm(z.Centroid, cl.Centroid) + cl.RadiusKm
	radius := math.Max(z.RadiusKm, math.Max(m.params.MinRadiusKm, required))

	z.RadiusKm = radius
	z.Polygon = geo.CircleRing(z.Centroid, radius)
	z.AvgConfidence = cl.AvgConfidence
	z.ReportCount = cl.Count
	z.Name = zoneName(z.Hazard, cl.Level)
	if cl.Risk.Normalized() >= m.params.AutoAlertThreshold {
		z.Type = domain.ZoneHazard
	}
	if float64(cl.Risk) >= m.params.EvacuationRisk {
		z.EvacuationRecommended = true
	}
	z.UpdatedAt = now
	z.ExpiresAt = now.Add(m.params.TTL)
	return z
}

func zoneName(h domain.HazardType, level domain.RiskLevel) string {
	return fmt.Sprintf("%s %s zone", level, h)
}

// IsNotFound reports whether err indicates a missing zone.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrZoneNotFound)
}
