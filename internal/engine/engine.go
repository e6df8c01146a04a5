// Package engine orchestrates the hazard pipeline: signal ingest and
// scoring, scheduled clustering with zone promotion, escalation forecasting,
// and reporter trust queries. It owns the concurrency rules; the packages it
// composes are synchronous and stateless.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/atlas-alert/hazard-engine/internal/cluster"
	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/forecast"
	"github.com/atlas-alert/hazard-engine/internal/geo"
	"github.com/atlas-alert/hazard-engine/internal/ingest"
	"github.com/atlas-alert/hazard-engine/internal/observability"
	"github.com/atlas-alert/hazard-engine/internal/scoring"
	"github.com/atlas-alert/hazard-engine/internal/trust"
	"github.com/atlas-alert/hazard-engine/internal/zone"
)

// neighborRadiusKm bounds the context lookup around a new signal for density
// and corroboration factors.
const neighborRadiusKm = 1.0

// forecastRadiusKm bounds which recent signals feed an escalation forecast.
const forecastRadiusKm = 10.0

// Store is the durable state the engine operates on. The sqlite adapter
// implements it; zone rows are managed through the zone.Manager instead.
type Store interface {
	InsertSignal(ctx context.Context, sig domain.Signal) error
	GetSignal(ctx context.Context, id string) (domain.Signal, error)
	RecentSignals(ctx context.Context, since time.Time) ([]domain.Signal, error)
	MarkVerified(ctx context.Context, signalID string) error
	AppendTrustEvent(ctx context.Context, e domain.TrustEvent) error
	TrustEvents(ctx context.Context, userID string) ([]domain.TrustEvent, error)
}

// ZoneEventPublisher delivers zone transitions to the broadcast topic.
type ZoneEventPublisher interface {
	PublishZoneEvents(ctx context.Context, events []domain.ZoneEvent) error
}

// Engine wires the pipeline stages together behind the public operations.
type Engine struct {
	store      Store
	normalizer *ingest.Normalizer
	clusterer  *cluster.Clusterer
	zones      *zone.Manager
	forecaster *forecast.Forecaster
	publisher  ZoneEventPublisher
	notifier   domain.NotificationSink
	logger     *slog.Logger
	metrics    *observability.Metrics

	partitions *partitionLocks
	window     time.Duration
}

// Options bundle the engine's collaborators. Notifier is optional; when set,
// evacuation-level zone events also go out through it.
type Options struct {
	Store      Store
	Normalizer *ingest.Normalizer
	Clusterer  *cluster.Clusterer
	Zones      *zone.Manager
	Forecaster *forecast.Forecaster
	Publisher  ZoneEventPublisher
	Notifier   domain.NotificationSink
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Window     time.Duration
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Window <= 0 {
		opts.Window = 3 * time.Hour
	}
	return &Engine{
		store:      opts.Store,
		normalizer: opts.Normalizer,
		clusterer:  opts.Clusterer,
		zones:      opts.Zones,
		forecaster: opts.Forecaster,
		publisher:  opts.Publisher,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		partitions: newPartitionLocks(),
		window:     opts.Window,
	}
}

// IngestSignal normalizes, scores, and stores one raw signal. The composite
// folds in reporter credibility and the current neighborhood, so the same
// text scores differently in a quiet area than in a corroborated hotspot.
func (e *Engine) IngestSignal(ctx context.Context, raw domain.RawSignal) (domain.Signal, error) {
	sig, err := e.normalizer.Normalize(ctx, raw)
	if err != nil {
		return domain.Signal{}, err
	}

	credibility := trust.Compute(sig.ReporterID, nil).CredibilityFactor()
	if sig.ReporterID != "" {
		events, err := e.store.TrustEvents(ctx, sig.ReporterID)
		if err != nil {
			return domain.Signal{}, fmt.Errorf("load trust log: %w", err)
		}
		credibility = trust.Compute(sig.ReporterID, events).CredibilityFactor()
	}

	neighbors, err := e.store.RecentSignals(ctx, domain.Now().Add(-e.window))
	if err != nil {
		return domain.Signal{}, fmt.Errorf("load recent signals: %w", err)
	}

	sctx := scoring.DeriveContext(sig, neighbors, neighborRadiusKm, credibility)
	sig = sig.WithComposite(scoring.ScoreSignal(sig, sctx))

	if err := e.store.InsertSignal(ctx, sig); err != nil {
		return domain.Signal{}, err
	}
	e.metrics.SignalsStored.Inc()
	return sig, nil
}

// RunClustering executes one clustering pass over every geographic partition
// with eligible signals. Busy partitions are skipped; they are being
// processed by a concurrent pass already. Returns all zone events emitted.
func (e *Engine) RunClustering(ctx context.Context) ([]domain.ZoneEvent, error) {
	now := domain.Now()
	start := time.Now()

	recent, err := e.store.RecentSignals(ctx, now.Add(-e.window))
	if err != nil {
		return nil, fmt.Errorf("load recent signals: %w", err)
	}
	eligible := e.clusterer.Eligible(recent, now)

	cells := occupiedCells(eligible)

	var all []domain.ZoneEvent
	var clustersTotal int
	for _, cell := range cells {
		key := cluster.CellKey(cell[0], cell[1])
		events, found, err := e.clusterPartition(ctx, key, partitionWithHalo(eligible, cell), now)
		if errors.Is(err, domain.ErrPartitionBusy) {
			e.metrics.PartitionContention.Inc()
			e.logger.Debug("partition busy, skipping", "partition", key)
			continue
		}
		if err != nil {
			return all, err
		}
		all = append(all, events...)
		clustersTotal += found
	}

	e.metrics.ClusteringRuns.Inc()
	e.metrics.ClusteringDuration.Observe(time.Since(start).Seconds())
	e.metrics.ClustersFound.Observe(float64(clustersTotal))
	e.updateActiveZonesGauge(ctx, now)

	if clustersTotal > 0 {
		e.logger.Info("clustering pass complete",
			"partitions", len(cells), "clusters", clustersTotal, "zone_events", len(all))
	}
	return all, nil
}

// occupiedCells lists the partition cells holding eligible signals, in
// deterministic row-then-column order.
func occupiedCells(signals []domain.Signal) [][2]int {
	seen := make(map[[2]int]bool)
	for _, s := range signals {
		row, col := cluster.PartitionCell(s.Location)
		seen[[2]int{row, col}] = true
	}
	cells := make([][2]int, 0, len(seen))
	for cell := range seen {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i][0] != cells[j][0] {
			return cells[i][0] < cells[j][0]
		}
		return cells[i][1] < cells[j][1]
	})
	return cells
}

// partitionWithHalo keeps the signals in the cell and its eight neighbors,
// preserving input order. The halo lets a pass see density-connected groups
// straddling the cell boundary; the clusterer's seed-ownership filter keeps
// each such group with exactly one partition.
func partitionWithHalo(signals []domain.Signal, cell [2]int) []domain.Signal {
	var out []domain.Signal
	for _, s := range signals {
		row, col := cluster.PartitionCell(s.Location)
		if abs(row-cell[0]) <= 1 && abs(col-cell[1]) <= 1 {
			out = append(out, s)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TriggerClustering runs an on-demand pass for the partition containing the
// given point. Returns domain.ErrPartitionBusy when a pass for that area is
// already in flight.
func (e *Engine) TriggerClustering(ctx context.Context, p domain.GeoPoint) ([]domain.ZoneEvent, error) {
	now := domain.Now()
	row, col := cluster.PartitionCell(p)
	key := cluster.CellKey(row, col)

	recent, err := e.store.RecentSignals(ctx, now.Add(-e.window))
	if err != nil {
		return nil, fmt.Errorf("load recent signals: %w", err)
	}
	partition := partitionWithHalo(e.clusterer.Eligible(recent, now), [2]int{row, col})

	events, _, err := e.clusterPartition(ctx, key, partition, now)
	if errors.Is(err, domain.ErrPartitionBusy) {
		e.metrics.PartitionContention.Inc()
	}
	return events, err
}

func (e *Engine) clusterPartition(ctx context.Context, key string, signals []domain.Signal, now time.Time) ([]domain.ZoneEvent, int, error) {
	release, err := e.partitions.acquire(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	clusters := e.clusterer.ClusterOwned(signals, key)
	events, err := e.zones.Apply(ctx, clusters, now)
	if err != nil {
		return events, len(clusters), fmt.Errorf("apply clusters for %s: %w", key, err)
	}
	if err := e.publish(ctx, events); err != nil {
		return events, len(clusters), err
	}
	return events, len(clusters), nil
}

// ActiveZones lists the live zones, sweeping any that expired since the last
// read.
func (e *Engine) ActiveZones(ctx context.Context) ([]domain.Zone, error) {
	zones, events, err := e.zones.Active(ctx, domain.Now())
	if err != nil {
		return nil, err
	}
	if err := e.publish(ctx, events); err != nil {
		return zones, err
	}
	e.metrics.ActiveZones.Set(float64(len(zones)))
	return zones, nil
}

// GetZone returns one zone by ID with lazy expiry applied.
func (e *Engine) GetZone(ctx context.Context, id string) (domain.Zone, error) {
	return e.zones.Get(ctx, id, domain.Now())
}

// SweepZones expires stale zones and publishes their expiry events. Runs on
// the cron schedule.
func (e *Engine) SweepZones(ctx context.Context) error {
	now := domain.Now()
	events, err := e.zones.Sweep(ctx, now)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		e.logger.Info("zone sweep expired zones", "count", len(events))
	}
	if err := e.publish(ctx, events); err != nil {
		return err
	}
	e.updateActiveZonesGauge(ctx, now)
	return nil
}

// PredictEscalation forecasts hazard escalation around a location using the
// recent signals near it.
func (e *Engine) PredictEscalation(ctx context.Context, loc domain.GeoPoint) (domain.EscalationForecast, error) {
	now := domain.Now()
	recent, err := e.store.RecentSignals(ctx, now.Add(-e.window))
	if err != nil {
		return domain.EscalationForecast{}, fmt.Errorf("load recent signals: %w", err)
	}

	var nearby []domain.Signal
	for _, s := range recent {
		if geo.DistanceKm(loc, s.Location) <= forecastRadiusKm {
			nearby = append(nearby, s)
		}
	}

	fc, err := e.forecaster.Predict(ctx, nearby, loc, now)
	if err != nil {
		return domain.EscalationForecast{}, err
	}
	e.metrics.ForecastRequests.WithLabelValues(fc.ModelSource).Inc()
	return fc, nil
}

// ComputeTrustScore derives a reporter's current trust profile from their
// verification log.
func (e *Engine) ComputeTrustScore(ctx context.Context, userID string) (domain.TrustProfile, error) {
	events, err := e.store.TrustEvents(ctx, userID)
	if err != nil {
		return domain.TrustProfile{}, fmt.Errorf("load trust log: %w", err)
	}
	return trust.Compute(userID, events), nil
}

// RecordVerification appends a verification outcome to the reporter's log
// and, when the outcome confirms the signal, marks the stored signal
// verified so later cluster passes count it. Definitive outcomes also feed
// the forecaster's retrain queue.
func (e *Engine) RecordVerification(ctx context.Context, signalID string, event domain.TrustEvent) error {
	if err := e.store.AppendTrustEvent(ctx, event); err != nil {
		return err
	}
	if signalID == "" {
		return nil
	}
	if event.Outcome == domain.VerifiedCorrect || event.Outcome == domain.PartiallyCorrect {
		if err := e.store.MarkVerified(ctx, signalID); err != nil {
			return err
		}
	}
	e.observeOutcome(ctx, signalID, event.Outcome)
	return nil
}

// observeOutcome turns a definitive verification into a labeled training
// example for the escalation model. Best effort: a missing signal or a full
// retrain queue never fails the verification write.
func (e *Engine) observeOutcome(ctx context.Context, signalID string, outcome domain.VerificationOutcome) {
	var escalated bool
	switch outcome {
	case domain.VerifiedCorrect, domain.PartiallyCorrect:
		escalated = true
	case domain.VerifiedIncorrect, domain.FalseAlarm:
		escalated = false
	default:
		return
	}

	sig, err := e.store.GetSignal(ctx, signalID)
	if err != nil {
		return
	}
	now := domain.Now()
	recent, err := e.store.RecentSignals(ctx, now.Add(-e.window))
	if err != nil {
		return
	}
	var nearby []domain.Signal
	for _, s := range recent {
		if geo.DistanceKm(sig.Location, s.Location) <= forecastRadiusKm {
			nearby = append(nearby, s)
		}
	}
	e.forecaster.ObserveOutcome(ctx, nearby, sig.Location, escalated, now)
}

func (e *Engine) publish(ctx context.Context, events []domain.ZoneEvent) error {
	if len(events) == 0 || e.publisher == nil {
		return nil
	}
	if err := e.publisher.PublishZoneEvents(ctx, events); err != nil {
		return fmt.Errorf("publish zone events: %w", err)
	}
	for _, ev := range events {
		e.metrics.ZoneEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
	e.notify(ctx, events)
	return nil
}

// notify pushes evacuation-level zone transitions to the alert sink. Delivery
// failures are logged and dropped; the sink must never fail a clustering pass.
func (e *Engine) notify(ctx context.Context, events []domain.ZoneEvent) {
	if e.notifier == nil {
		return
	}
	for _, ev := range events {
		if ev.Kind == domain.ZoneExpired || !ev.Zone.EvacuationRecommended {
			continue
		}
		msg := fmt.Sprintf("%s: %s hazard, risk %.1f, evacuation recommended",
			ev.Zone.Name, ev.Zone.Hazard, domain.RiskFromConfidence(ev.Zone.AvgConfidence))
		if err := e.notifier.Send(ctx, "broadcast", ev.Zone.ID, msg); err != nil {
			e.logger.Warn("alert notification failed", "zone", ev.Zone.ID, "error", err)
		}
	}
}

func (e *Engine) updateActiveZonesGauge(ctx context.Context, now time.Time) {
	zones, _, err := e.zones.Active(ctx, now)
	if err != nil {
		return
	}
	e.metrics.ActiveZones.Set(float64(len(zones)))
}
