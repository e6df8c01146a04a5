package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SourceKind distinguishes the two signal feeds.
type SourceKind string

const (
	SourceReport SourceKind = "report"
	SourceSocial SourceKind = "social"
)

// GeoPoint is a WGS-84 latitude/longitude coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RawSignal represents the flat JSON structure published by the collector
// services: a citizen report or a geolocated social post, before any scoring.
type RawSignal struct {
	Source       SourceKind `json:"source"`
	ReporterID   string     `json:"reporter_id,omitempty"`
	Text         string     `json:"text"`
	MediaURL     string     `json:"media_url,omitempty"`
	Lat          float64    `json:"lat"`
	Lon          float64    `json:"lon"`
	LocationName string     `json:"location_name,omitempty"` // geocoded when coords are missing
	HazardHint   HazardType `json:"hazard_hint,omitempty"`   // reporter-selected type, advisory only
	OccurredAt   time.Time  `json:"occurred_at"`
}

// RawEvent is an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// TextAnalysis is the output of a text classifier run over signal text.
type TextAnalysis struct {
	HazardProbs map[HazardType]float64 `json:"hazard_probs"`
	Urgency     float64                `json:"urgency"`
	Keywords    []string               `json:"keywords,omitempty"`
	Confidence  float64                `json:"confidence"`
}

// ImageAnalysis is the output of an image classifier run over attached media.
type ImageAnalysis struct {
	Labels     map[string]float64 `json:"labels,omitempty"`
	Confidence float64            `json:"confidence"`
}

// Signal is a normalized, located, timestamped observation with its raw
// classifier sub-scores. The raw fields are immutable after ingest; scoring
// produces a new revision via [Signal.WithComposite] rather than mutating in
// place.
type Signal struct {
	ID         string     `json:"id"`
	Source     SourceKind `json:"source"`
	ReporterID string     `json:"reporter_id,omitempty"`
	Location   GeoPoint   `json:"location"`
	OccurredAt time.Time  `json:"occurred_at"`
	Text       string     `json:"text,omitempty"`
	MediaURL   string     `json:"media_url,omitempty"`

	// Classifier sub-scores, all on [0, 1].
	TextConfidence  float64                `json:"text_confidence"`
	ImageConfidence float64                `json:"image_confidence"`
	Urgency         float64                `json:"urgency"`
	HazardProbs     map[HazardType]float64 `json:"hazard_probs,omitempty"`
	Hazard          HazardType             `json:"hazard"`

	Verified bool `json:"verified"`

	// Composite is the trust-weighted threat score, set once by the scorer.
	Composite float64 `json:"composite"`
	Scored    bool    `json:"scored"`

	IngestedAt time.Time `json:"ingested_at"`
}

// WithComposite returns a scored revision of the signal. The receiver is not
// modified.
func (s Signal) WithComposite(composite float64) Signal {
	s.Composite = Clamp01(composite)
	s.Scored = true
	return s
}

// DominantHazard returns the hazard type with the highest probability, or
// HazardOther when the distribution is empty. Ties break on the fixed
// [KnownHazards] order so the result is deterministic.
func (s Signal) DominantHazard() HazardType {
	best := HazardOther
	bestProb := 0.0
	for _, h := range KnownHazards {
		if p, ok := s.HazardProbs[h]; ok && p > bestProb {
			best = h
			bestProb = p
		}
	}
	return best
}

// ValidateRawSignal rejects signals that must never reach scoring: missing or
// out-of-range coordinates and empty text.
func ValidateRawSignal(raw RawSignal) error {
	if raw.Lat < -90 || raw.Lat > 90 {
		return fmt.Errorf("%w: lat %.4f", ErrInvalidCoordinates, raw.Lat)
	}
	if raw.Lon < -180 || raw.Lon > 180 {
		return fmt.Errorf("%w: lon %.4f", ErrInvalidCoordinates, raw.Lon)
	}
	if raw.Text == "" {
		return ErrEmptyText
	}
	switch raw.Source {
	case SourceReport, SourceSocial:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, raw.Source)
	}
	return nil
}

// GenerateSignalID produces a deterministic ID from the signal's key fields.
// Reprocessing the same raw message yields the same ID, so replaying the
// source topic cannot double-count a report.
func GenerateSignalID(source SourceKind, reporterID string, lat, lon float64, occurredAt time.Time) string {
	input := fmt.Sprintf("%s|%s|%.5f|%.5f|%d", source, reporterID, lat, lon, occurredAt.UTC().UnixNano())
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	return string(source) + "-" + short
}
