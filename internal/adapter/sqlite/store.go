// Package sqlite is the durable storage adapter: hazard zones, normalized
// signals, and the append-only trust event log, in a single embedded
// database. The driver is pure Go, so deployments stay a single static
// binary.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS zones (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	name          TEXT NOT NULL,
	lat           REAL NOT NULL,
	lon           REAL NOT NULL,
	polygon       TEXT NOT NULL,
	avg_confidence REAL NOT NULL,
	report_count  INTEGER NOT NULL,
	radius_km     REAL NOT NULL,
	hazard        TEXT NOT NULL,
	evacuation    INTEGER NOT NULL,
	active        INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	expires_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_zones_active ON zones(active);

CREATE TABLE IF NOT EXISTS signals (
	id               TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	reporter_id      TEXT NOT NULL,
	lat              REAL NOT NULL,
	lon              REAL NOT NULL,
	occurred_at      TEXT NOT NULL,
	text             TEXT NOT NULL,
	media_url        TEXT NOT NULL,
	text_confidence  REAL NOT NULL,
	image_confidence REAL NOT NULL,
	urgency          REAL NOT NULL,
	hazard_probs     TEXT NOT NULL,
	hazard           TEXT NOT NULL,
	verified         INTEGER NOT NULL,
	composite        REAL NOT NULL,
	scored           INTEGER NOT NULL,
	ingested_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_occurred ON signals(occurred_at);

CREATE TABLE IF NOT EXISTS trust_events (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           TEXT NOT NULL,
	outcome           TEXT NOT NULL,
	occurred_at       TEXT NOT NULL,
	confidence        REAL NOT NULL,
	complexity        REAL NOT NULL,
	source            TEXT NOT NULL,
	location_accuracy REAL NOT NULL,
	time_to_verify_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trust_events_user ON trust_events(user_id);
`

// Store wraps the embedded database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the HTTP read path proceed while a clustering pass writes.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertZone inserts or replaces a zone row.
func (s *Store) UpsertZone(ctx context.Context, z domain.Zone) error {
	polygon, err := json.Marshal(z.Polygon)
	if err != nil {
		return fmt.Errorf("marshal polygon: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO zones (id, type, name, lat, lon, polygon, avg_confidence, report_count,
			radius_km, hazard, evacuation, active, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, name = excluded.name,
			lat = excluded.lat, lon = excluded.lon, polygon = excluded.polygon,
			avg_confidence = excluded.avg_confidence, report_count = excluded.report_count,
			radius_km = excluded.radius_km, hazard = excluded.hazard,
			evacuation = excluded.evacuation, active = excluded.active,
			updated_at = excluded.updated_at, expires_at = excluded.expires_at`,
		z.ID, string(z.Type), z.Name, z.Centroid.Lat, z.Centroid.Lon, string(polygon),
		z.AvgConfidence, z.ReportCount, z.RadiusKm, string(z.Hazard),
		boolInt(z.EvacuationRecommended), boolInt(z.Active),
		formatTime(z.CreatedAt), formatTime(z.UpdatedAt), formatTime(z.ExpiresAt))
	if err != nil {
		return fmt.Errorf("upsert zone %s: %w", z.ID, err)
	}
	return nil
}

// GetZone loads one zone by ID.
func (s *Store) GetZone(ctx context.Context, id string) (domain.Zone, error) {
	row := s.db.QueryRowContext(ctx, zoneSelect+` WHERE id = ?`, id)
	z, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Zone{}, fmt.Errorf("zone %s: %w", id, domain.ErrZoneNotFound)
	}
	return z, err
}

// ActiveZones lists active zones ordered by creation time.
func (s *Store) ActiveZones(ctx context.Context) ([]domain.Zone, error) {
	rows, err := s.db.QueryContext(ctx, zoneSelect+` WHERE active = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query active zones: %w", err)
	}
	defer rows.Close()

	var zones []domain.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// MarkExpired deactivates a zone.
func (s *Store) MarkExpired(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE zones SET active = 0, updated_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark zone %s expired: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("zone %s: %w", id, domain.ErrZoneNotFound)
	}
	return nil
}

// InsertSignal stores a normalized signal. Replays of the same raw message
// produce the same deterministic ID and overwrite in place, so the topic can
// be reprocessed without double counting.
func (s *Store) InsertSignal(ctx context.Context, sig domain.Signal) error {
	probs, err := json.Marshal(sig.HazardProbs)
	if err != nil {
		return fmt.Errorf("marshal hazard probs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signals (id, source, reporter_id, lat, lon, occurred_at, text, media_url,
			text_confidence, image_confidence, urgency, hazard_probs, hazard, verified,
			composite, scored, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text_confidence = excluded.text_confidence,
			image_confidence = excluded.image_confidence,
			urgency = excluded.urgency, hazard_probs = excluded.hazard_probs,
			hazard = excluded.hazard, verified = excluded.verified,
			composite = excluded.composite, scored = excluded.scored`,
		sig.ID, string(sig.Source), sig.ReporterID, sig.Location.Lat, sig.Location.Lon,
		formatTime(sig.OccurredAt), sig.Text, sig.MediaURL,
		sig.TextConfidence, sig.ImageConfidence, sig.Urgency, string(probs), string(sig.Hazard),
		boolInt(sig.Verified), sig.Composite, boolInt(sig.Scored), formatTime(sig.IngestedAt))
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", sig.ID, err)
	}
	return nil
}

// GetSignal loads one signal by ID.
func (s *Store) GetSignal(ctx context.Context, id string) (domain.Signal, error) {
	row := s.db.QueryRowContext(ctx, signalSelect+` WHERE id = ?`, id)
	sig, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Signal{}, fmt.Errorf("signal %s: %w", id, domain.ErrSignalNotFound)
	}
	return sig, err
}

// RecentSignals returns signals that occurred at or after the cutoff,
// ordered by occurrence time then ID. The order is stable, which the
// clusterer depends on for reproducible output.
func (s *Store) RecentSignals(ctx context.Context, since time.Time) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		signalSelect+` WHERE occurred_at >= ? ORDER BY occurred_at, id`,
		formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query recent signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// MarkVerified flags a stored signal as verified by an analyst.
func (s *Store) MarkVerified(ctx context.Context, signalID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE signals SET verified = 1 WHERE id = ?`, signalID)
	if err != nil {
		return fmt.Errorf("mark signal %s verified: %w", signalID, err)
	}
	return nil
}

// AppendTrustEvent appends one verification outcome to a reporter's log.
// The log is insert-only; corrections arrive as new events.
func (s *Store) AppendTrustEvent(ctx context.Context, e domain.TrustEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_events (user_id, outcome, occurred_at, confidence, complexity,
			source, location_accuracy, time_to_verify_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, string(e.Outcome), formatTime(e.OccurredAt), e.Confidence, e.Complexity,
		e.Source, e.LocationAccuracy, e.TimeToVerify.Milliseconds())
	if err != nil {
		return fmt.Errorf("append trust event for %s: %w", e.UserID, err)
	}
	return nil
}

// TrustEvents loads a reporter's full verification log in chronological
// order.
func (s *Store) TrustEvents(ctx context.Context, userID string) ([]domain.TrustEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, outcome, occurred_at, confidence, complexity, source,
			location_accuracy, time_to_verify_ms
		FROM trust_events WHERE user_id = ? ORDER BY occurred_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query trust events for %s: %w", userID, err)
	}
	defer rows.Close()

	var events []domain.TrustEvent
	for rows.Next() {
		var e domain.TrustEvent
		var outcome, occurredAt string
		var verifyMs int64
		if err := rows.Scan(&e.UserID, &outcome, &occurredAt, &e.Confidence, &e.Complexity,
			&e.Source, &e.LocationAccuracy, &verifyMs); err != nil {
			return nil, fmt.Errorf("scan trust event: %w", err)
		}
		e.Outcome = domain.VerificationOutcome(outcome)
		e.TimeToVerify = time.Duration(verifyMs) * time.Millisecond
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const signalSelect = `
	SELECT id, source, reporter_id, lat, lon, occurred_at, text, media_url,
		text_confidence, image_confidence, urgency, hazard_probs, hazard, verified,
		composite, scored, ingested_at
	FROM signals`

func scanSignal(row rowScanner) (domain.Signal, error) {
	var sig domain.Signal
	var source, occurredAt, probs, hazard, ingestedAt string
	var verified, scored int
	if err := row.Scan(&sig.ID, &source, &sig.ReporterID, &sig.Location.Lat, &sig.Location.Lon,
		&occurredAt, &sig.Text, &sig.MediaURL, &sig.TextConfidence, &sig.ImageConfidence,
		&sig.Urgency, &probs, &hazard, &verified, &sig.Composite, &scored, &ingestedAt); err != nil {
		return domain.Signal{}, err
	}
	sig.Source = domain.SourceKind(source)
	sig.Hazard = domain.HazardType(hazard)
	sig.Verified = verified != 0
	sig.Scored = scored != 0

	var err error
	if sig.OccurredAt, err = parseTime(occurredAt); err != nil {
		return domain.Signal{}, err
	}
	if sig.IngestedAt, err = parseTime(ingestedAt); err != nil {
		return domain.Signal{}, err
	}
	if probs != "null" && probs != "" {
		if err := json.Unmarshal([]byte(probs), &sig.HazardProbs); err != nil {
			return domain.Signal{}, fmt.Errorf("unmarshal hazard probs: %w", err)
		}
	}
	return sig, nil
}

const zoneSelect = `
	SELECT id, type, name, lat, lon, polygon, avg_confidence, report_count,
		radius_km, hazard, evacuation, active, created_at, updated_at, expires_at
	FROM zones`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZone(row rowScanner) (domain.Zone, error) {
	var z domain.Zone
	var zoneType, hazard, polygon, createdAt, updatedAt, expiresAt string
	var evacuation, active int
	if err := row.Scan(&z.ID, &zoneType, &z.Name, &z.Centroid.Lat, &z.Centroid.Lon, &polygon,
		&z.AvgConfidence, &z.ReportCount, &z.RadiusKm, &hazard, &evacuation, &active,
		&createdAt, &updatedAt, &expiresAt); err != nil {
		return domain.Zone{}, err
	}
	z.Type = domain.ZoneType(zoneType)
	z.Hazard = domain.HazardType(hazard)
	z.EvacuationRecommended = evacuation != 0
	z.Active = active != 0
	if err := json.Unmarshal([]byte(polygon), &z.Polygon); err != nil {
		return domain.Zone{}, fmt.Errorf("unmarshal polygon: %w", err)
	}

	var err error
	if z.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Zone{}, err
	}
	if z.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Zone{}, err
	}
	if z.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return domain.Zone{}, err
	}
	return z, nil
}

// Timestamps are stored as RFC 3339 UTC strings.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
