// Package ingest normalizes raw collector messages into scored-ready
// signals: validation, geocoding of text-only locations, classifier
// sub-scores, and deterministic ID assignment.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// Normalizer turns RawSignals into Signals. Classifier and geocoder failures
// degrade rather than reject: a signal with a valid location and text always
// survives ingest, possibly with zeroed sub-scores.
type Normalizer struct {
	text     domain.TextClassifier
	image    domain.ImageClassifier
	geocoder domain.Geocoder
	log      *slog.Logger
}

// NewNormalizer wires a Normalizer. The geocoder may be nil when the
// deployment has no text-only location sources.
func NewNormalizer(text domain.TextClassifier, image domain.ImageClassifier, geocoder domain.Geocoder, log *slog.Logger) *Normalizer {
	return &Normalizer{text: text, image: image, geocoder: geocoder, log: log}
}

// Normalize validates and enriches one raw signal. Signals without
// coordinates are geocoded from their location name before validation, so a
// named location that resolves is as good as a GPS fix.
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawSignal) (domain.Signal, error) {
	if raw.Lat == 0 && raw.Lon == 0 && raw.LocationName != "" {
		resolved, err := n.resolve(ctx, raw.LocationName)
		if err != nil {
			return domain.Signal{}, fmt.Errorf("geocode %q: %w", raw.LocationName, err)
		}
		// Providers report "no match" as a zero result with a nil error.
		// Without this check the signal would score and cluster at 0,0.
		if resolved.Lat == 0 && resolved.Lon == 0 {
			return domain.Signal{}, fmt.Errorf("geocode %q: no match: %w", raw.LocationName, domain.ErrInvalidCoordinates)
		}
		raw.Lat, raw.Lon = resolved.Lat, resolved.Lon
	}

	if err := domain.ValidateRawSignal(raw); err != nil {
		return domain.Signal{}, err
	}

	sig := domain.Signal{
		ID:         domain.GenerateSignalID(raw.Source, raw.ReporterID, raw.Lat, raw.Lon, raw.OccurredAt),
		Source:     raw.Source,
		ReporterID: raw.ReporterID,
		Location:   domain.GeoPoint{Lat: raw.Lat, Lon: raw.Lon},
		OccurredAt: raw.OccurredAt,
		Text:       raw.Text,
		MediaURL:   raw.MediaURL,
		IngestedAt: domain.Now(),
	}

	analysis, err := n.text.ScoreText(ctx, raw.Text)
	if err != nil {
		n.warn("text classification failed", "signal_id", sig.ID, "error", err)
	} else {
		sig.TextConfidence = analysis.Confidence
		sig.Urgency = analysis.Urgency
		sig.HazardProbs = analysis.HazardProbs
	}

	if raw.MediaURL != "" && n.image != nil {
		imageAnalysis, err := n.image.ScoreImage(ctx, raw.MediaURL)
		if err != nil {
			n.warn("image classification failed", "signal_id", sig.ID, "error", err)
		} else {
			sig.ImageConfidence = imageAnalysis.Confidence
		}
	}

	sig.Hazard = pickHazard(sig, raw.HazardHint)
	return sig, nil
}

func (n *Normalizer) resolve(ctx context.Context, name string) (domain.GeocodingResult, error) {
	if n.geocoder == nil {
		return domain.GeocodingResult{}, domain.ErrInvalidCoordinates
	}
	return n.geocoder.Resolve(ctx, name)
}

// pickHazard prefers the classifier's distribution; the reporter's own hint
// only decides when classification saw nothing.
func pickHazard(sig domain.Signal, hint domain.HazardType) domain.HazardType {
	if len(sig.HazardProbs) > 0 {
		return sig.DominantHazard()
	}
	for _, h := range domain.KnownHazards {
		if hint == h {
			return hint
		}
	}
	return domain.HazardOther
}

func (n *Normalizer) warn(msg string, args ...any) {
	if n.log != nil {
		n.log.Warn(msg, args...)
	}
}
