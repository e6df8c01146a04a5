package domain

import "context"

// TextClassifier scores free text for hazard relevance. Two implementations
// exist, a trained model client and a keyword heuristic, selected by
// availability at startup.
type TextClassifier interface {
	ScoreText(ctx context.Context, text string) (TextAnalysis, error)
}

// ImageClassifier scores attached media for hazard evidence.
type ImageClassifier interface {
	ScoreImage(ctx context.Context, mediaURL string) (ImageAnalysis, error)
}

// WeatherProvider returns current marine conditions for a coordinate.
// Implementations are expected to be wrapped in a TTL cache; lookups must
// never block the clustering critical section.
type WeatherProvider interface {
	Get(ctx context.Context, lat, lon float64) (WeatherObservation, error)
}

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat        float64
	Lon        float64
	PlaceName  string
	Confidence float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves place names to coordinates for signals that arrive
// without a usable location.
type Geocoder interface {
	Resolve(ctx context.Context, name string) (GeocodingResult, error)
}

// NotificationSink delivers alert messages over an external channel
// (SMS, email, push). The engine pushes evacuation-level zone transitions to
// it; delivery itself is plumbing outside this service.
type NotificationSink interface {
	Send(ctx context.Context, channel, target, message string) error
}
