// Package forecast projects whether hazard activity around a location will
// escalate. A Forecaster extracts a fixed feature vector from recent signals
// and current marine weather, runs it through a predictor (trained model
// client or the built-in heuristic), and expands the result into horizon
// projections and an affected-area polygon.
package forecast

import (
	"context"
	"math"
	"time"

	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/geo"
)

const (
	// featureWindow bounds the recent-signal slice feeding frequency and
	// density features.
	featureWindow = 6 * time.Hour

	// historicalFreq is the assumed monthly hazard baseline for an area.
	// TODO: derive per-cell baselines from the zone archive once it spans a
	// full season.
	historicalFreq = 3.0

	// retrainQueueSize bounds pending outcome batches before Submit drops.
	retrainQueueSize = 16
)

// Prediction is a predictor's raw output before horizon expansion.
type Prediction struct {
	Probability float64 // 0–1 escalation probability
	ZoneKm2     float64 // projected affected area
}

// Outcome is a verified escalation result used for online retraining.
type Outcome struct {
	Features  domain.FeatureVector
	Escalated bool
}

// Predictor turns a feature vector into an escalation prediction.
type Predictor interface {
	Predict(ctx context.Context, fv domain.FeatureVector) (Prediction, error)
	Train(outcomes []Outcome)
	Source() string
}

// Forecaster owns the prediction pipeline: feature extraction, model
// invocation with heuristic fallback, and the serialized retrain loop.
type Forecaster struct {
	weather  domain.WeatherProvider
	model    Predictor
	fallback *Heuristic
	retrain  chan []Outcome
}

// New builds a Forecaster around the given predictor. A nil model selects
// the heuristic outright.
func New(weather domain.WeatherProvider, model Predictor) *Forecaster {
	fallback := NewHeuristic()
	if model == nil {
		model = fallback
	}
	return &Forecaster{
		weather:  weather,
		model:    model,
		fallback: fallback,
		retrain:  make(chan []Outcome, retrainQueueSize),
	}
}

// Predict forecasts escalation around a location from the recent signals
// near it. Weather provider failures degrade to the neutral default
// observation; model failures fall back to the heuristic and are visible in
// the forecast's ModelSource.
func (f *Forecaster) Predict(ctx context.Context, signals []domain.Signal, loc domain.GeoPoint, now time.Time) (domain.EscalationForecast, error) {
	weather := domain.DefaultWeather
	if f.weather != nil {
		if obs, err := f.weather.Get(ctx, loc.Lat, loc.Lon); err == nil {
			weather = obs
		}
	}

	fv := ExtractFeatures(signals, loc, weather, now)

	model := f.model
	pred, err := model.Predict(ctx, fv)
	if err != nil && model != f.fallback {
		model = f.fallback
		pred, err = model.Predict(ctx, fv)
	}
	if err != nil {
		return domain.EscalationForecast{}, err
	}

	radiusKm := math.Sqrt(pred.ZoneKm2 / math.Pi)
	level := domain.LevelFromProbability(pred.Probability)

	return domain.EscalationForecast{
		Location:         loc,
		Probability:      pred.Probability,
		Level:            level,
		Confidence:       math.Min(pred.Probability*1.2, 1.0),
		AffectedRadiusKm: radiusKm,
		AffectedZone:     geo.CircleRing(loc, radiusKm),
		Horizons:         horizons(pred.Probability, weather),
		Recommendations:  recommendations(level),
		ModelSource:      model.Source(),
		GeneratedAt:      now,
	}, nil
}

// ObserveOutcome extracts features for one labeled escalation result and
// queues it for retraining. Used by the verification path, where the label
// arrives long after the original forecast.
func (f *Forecaster) ObserveOutcome(ctx context.Context, signals []domain.Signal, loc domain.GeoPoint, escalated bool, now time.Time) bool {
	weather := domain.DefaultWeather
	if f.weather != nil {
		if obs, err := f.weather.Get(ctx, loc.Lat, loc.Lon); err == nil {
			weather = obs
		}
	}
	fv := ExtractFeatures(signals, loc, weather, now)
	return f.SubmitOutcomes([]Outcome{{Features: fv, Escalated: escalated}})
}

// SubmitOutcomes queues a verified outcome batch for retraining. The queue
// is bounded; when full the batch is dropped rather than blocking the
// caller, since outcomes reappear in later batches.
func (f *Forecaster) SubmitOutcomes(batch []Outcome) bool {
	if len(batch) == 0 {
		return true
	}
	select {
	case f.retrain <- batch:
		return true
	default:
		return false
	}
}

// Run is the model-owner loop: it applies queued outcome batches to the
// predictor one at a time, so Train implementations never race. Blocks until
// the context is canceled.
func (f *Forecaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-f.retrain:
			f.model.Train(batch)
			if f.model != f.fallback {
				f.fallback.Train(batch)
			}
		}
	}
}

// ExtractFeatures builds the fixed-order predictor input from signals near
// the location. Only signals inside the feature window count toward
// frequency and density; urgency averages over everything supplied, with a
// neutral 0.5 when no signals exist.
func ExtractFeatures(signals []domain.Signal, loc domain.GeoPoint, weather domain.WeatherObservation, now time.Time) domain.FeatureVector {
	cutoff := now.Add(-featureWindow)

	var recent []domain.Signal
	for _, s := range signals {
		if !s.OccurredAt.Before(cutoff) {
			recent = append(recent, s)
		}
	}

	freq := float64(len(recent)) / featureWindow.Hours()

	density := 1.0
	if len(recent) > 1 {
		var distSum float64
		for _, s := range recent {
			distSum += geo.DistanceKm(loc, s.Location)
		}
		avgDist := distSum / float64(len(recent))
		density = float64(len(recent)) / math.Max(1, avgDist*avgDist)
	}

	urgency := 0.5
	if len(signals) > 0 {
		var sum float64
		for _, s := range signals {
			sum += s.Urgency
		}
		urgency = sum / float64(len(signals))
	}

	return domain.FeatureVector{
		ReportFreqPerHour:  freq,
		ReportDensityPerKm: density,
		MeanUrgency:        urgency,
		WaveHeightM:        weather.WaveHeightM,
		WindSpeedKmh:       weather.WindSpeedKmh,
		PressureHPa:        weather.PressureHPa,
		HistoricalFreq:     historicalFreq,
		HourOfDay:          now.UTC().Hour(),
		DayOfWeek:          int(now.UTC().Weekday()),
	}
}

// horizons projects the base probability forward. Six hours out activity
// tends to build, twelve hours out the sea state dominates, and by a day
// out it decays unless already sustained.
func horizons(base float64, weather domain.WeatherObservation) []domain.HorizonForecast {
	sixHour := math.Min(base*1.1, 1.0)

	waveFactor := 1.0 + (weather.WaveHeightM-2)*0.1
	twelveHour := domain.Clamp01(base * waveFactor)

	dayFactor := 0.8
	if base >= 0.7 {
		dayFactor = 0.9
	}
	dayOut := base * dayFactor

	return []domain.HorizonForecast{
		{Horizon: 0, Probability: base, Level: domain.LevelFromProbability(base)},
		{Horizon: 6 * time.Hour, Probability: sixHour, Level: domain.LevelFromProbability(sixHour)},
		{Horizon: 12 * time.Hour, Probability: twelveHour, Level: domain.LevelFromProbability(twelveHour)},
		{Horizon: 24 * time.Hour, Probability: dayOut, Level: domain.LevelFromProbability(dayOut)},
	}
}

func recommendations(level domain.RiskLevel) []string {
	switch level {
	case domain.RiskCritical:
		return []string{
			"Immediate emergency response activation required",
			"Evacuate high-risk areas immediately",
			"Issue emergency broadcast alerts",
			"Coordinate with coast guard for large-scale response",
		}
	case domain.RiskHigh:
		return []string{
			"Activate emergency response teams",
			"Issue public safety warnings",
			"Prepare evacuation plans",
			"Monitor situation continuously",
		}
	case domain.RiskMedium:
		return []string{
			"Increase monitoring frequency",
			"Alert emergency services to standby",
			"Issue advisory warnings to public",
		}
	default:
		return []string{
			"Continue routine monitoring",
			"Verify reports with additional sources",
		}
	}
}
