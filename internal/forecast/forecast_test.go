package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

var forecastNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

type stubWeather struct {
	obs domain.WeatherObservation
	err error
}

func (s stubWeather) Get(context.Context, float64, float64) (domain.WeatherObservation, error) {
	return s.obs, s.err
}

type failingModel struct{}

func (failingModel) Predict(context.Context, domain.FeatureVector) (Prediction, error) {
	return Prediction{}, errors.New("model endpoint down")
}
func (failingModel) Train([]Outcome) {}
func (failingModel) Source() string  { return "trained" }

func nearbySignals(n int, urgency float64) []domain.Signal {
	out := make([]domain.Signal, n)
	for i := range out {
		out[i] = domain.Signal{
			ID:         string(rune('a' + i)),
			Location:   domain.GeoPoint{Lat: 19.07, Lon: 72.87},
			Urgency:    urgency,
			OccurredAt: forecastNow.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestExtractFeatures(t *testing.T) {
	loc := domain.GeoPoint{Lat: 19.07, Lon: 72.87}

	signals := nearbySignals(12, 0.8)
	// Stale signal outside the 6h window must not count toward frequency.
	signals = append(signals, domain.Signal{
		Location:   loc,
		Urgency:    0.8,
		OccurredAt: forecastNow.Add(-7 * time.Hour),
	})

	fv := ExtractFeatures(signals, loc, domain.DefaultWeather, forecastNow)

	assert.InDelta(t, 2.0, fv.ReportFreqPerHour, 1e-9, "12 recent signals over 6 hours")
	assert.InDelta(t, 12.0, fv.ReportDensityPerKm, 1e-9, "co-located signals use the 1 km floor")
	assert.InDelta(t, 0.8, fv.MeanUrgency, 1e-9)
	assert.Equal(t, domain.DefaultWeather.WaveHeightM, fv.WaveHeightM)
	assert.Equal(t, 12, fv.HourOfDay)
	assert.Equal(t, int(time.Sunday), fv.DayOfWeek)
}

func TestExtractFeatures_NoSignals(t *testing.T) {
	fv := ExtractFeatures(nil, domain.GeoPoint{}, domain.DefaultWeather, forecastNow)

	assert.Zero(t, fv.ReportFreqPerHour)
	assert.InDelta(t, 1.0, fv.ReportDensityPerKm, 1e-9)
	assert.InDelta(t, 0.5, fv.MeanUrgency, 1e-9, "neutral urgency without signals")
}

func TestHeuristicPredict_Bounds(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	calm, err := h.Predict(ctx, domain.FeatureVector{PressureHPa: 1013})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calm.Probability, 0.0)

	storm, err := h.Predict(ctx, domain.FeatureVector{
		ReportFreqPerHour:  50,
		ReportDensityPerKm: 50,
		MeanUrgency:        1,
		WaveHeightM:        8,
		WindSpeedKmh:       90,
		PressureHPa:        1013,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, storm.Probability, "saturated features max out")
	assert.Equal(t, 50.0, storm.ZoneKm2)
	assert.Greater(t, storm.Probability, calm.Probability)
}

func TestHeuristicPredict_ZoneFloor(t *testing.T) {
	h := NewHeuristic()
	p, err := h.Predict(context.Background(), domain.FeatureVector{PressureHPa: 800})
	require.NoError(t, err)
	assert.Equal(t, minZoneKm2, p.ZoneKm2)
}

func TestHeuristicTrain_Calibration(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	fv := domain.FeatureVector{MeanUrgency: 0.5, PressureHPa: 1013}
	before, err := h.Predict(ctx, fv)
	require.NoError(t, err)

	// Every calm-feature observation actually escalated: predictions shift up.
	outcomes := make([]Outcome, 10)
	for i := range outcomes {
		outcomes[i] = Outcome{Features: fv, Escalated: true}
	}
	h.Train(outcomes)

	after, err := h.Predict(ctx, fv)
	require.NoError(t, err)
	assert.Greater(t, after.Probability, before.Probability)
	assert.LessOrEqual(t, after.Probability-before.Probability, calibrationLimit+1e-9)
}

func TestHeuristic_MonotoneInSeaStateAndFrequency(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	base := domain.FeatureVector{
		ReportFreqPerHour: 2, ReportDensityPerKm: 1, MeanUrgency: 0.5,
		WaveHeightM: 1, WindSpeedKmh: 5, PressureHPa: 1013,
	}

	cases := []struct {
		name   string
		set    func(fv *domain.FeatureVector, v float64)
		values []float64
	}{
		{"wave height", func(fv *domain.FeatureVector, v float64) { fv.WaveHeightM = v }, []float64{0, 1, 2.5, 5, 8}},
		{"wind speed", func(fv *domain.FeatureVector, v float64) { fv.WindSpeedKmh = v }, []float64{0, 5, 10, 20, 40}},
		{"report frequency", func(fv *domain.FeatureVector, v float64) { fv.ReportFreqPerHour = v }, []float64{0, 1, 4, 10, 25}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prev := -1.0
			for _, v := range tc.values {
				fv := base
				tc.set(&fv, v)
				p, err := h.Predict(ctx, fv)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, p.Probability, prev,
					"probability must not decrease as %s grows", tc.name)
				prev = p.Probability
			}
		})
	}
}

func TestForecaster_Predict(t *testing.T) {
	weather := stubWeather{obs: domain.WeatherObservation{WaveHeightM: 4, WindSpeedKmh: 30, PressureHPa: 990}}
	f := New(weather, nil)

	got, err := f.Predict(context.Background(), nearbySignals(12, 0.9), domain.GeoPoint{Lat: 19.07, Lon: 72.87}, forecastNow)
	require.NoError(t, err)

	assert.Equal(t, "heuristic", got.ModelSource)
	assert.Greater(t, got.Probability, 0.5)
	assert.Equal(t, domain.LevelFromProbability(got.Probability), got.Level)
	assert.Greater(t, got.AffectedRadiusKm, 0.0)
	assert.Len(t, got.AffectedZone, 17, "closed 16-segment ring")
	assert.NotEmpty(t, got.Recommendations)
	assert.Equal(t, forecastNow, got.GeneratedAt)
	assert.InDelta(t, min(got.Probability*1.2, 1.0), got.Confidence, 1e-9)
}

func TestForecaster_Horizons(t *testing.T) {
	weather := stubWeather{obs: domain.WeatherObservation{WaveHeightM: 4, WindSpeedKmh: 30, PressureHPa: 990}}
	f := New(weather, nil)

	got, err := f.Predict(context.Background(), nearbySignals(12, 0.9), domain.GeoPoint{Lat: 19.07, Lon: 72.87}, forecastNow)
	require.NoError(t, err)
	require.Len(t, got.Horizons, 4)

	base := got.Probability
	assert.Equal(t, base, got.Horizons[0].Probability)
	assert.InDelta(t, min(base*1.1, 1.0), got.Horizons[1].Probability, 1e-9, "+6h builds")
	assert.InDelta(t, domain.Clamp01(base*1.2), got.Horizons[2].Probability, 1e-9, "+12h follows 4m waves")
	assert.Less(t, got.Horizons[3].Probability, base, "+24h decays")
	for _, hz := range got.Horizons {
		assert.Equal(t, domain.LevelFromProbability(hz.Probability), hz.Level)
	}
}

func TestForecaster_WeatherFailureUsesDefault(t *testing.T) {
	f := New(stubWeather{err: errors.New("provider down")}, nil)

	got, err := f.Predict(context.Background(), nil, domain.GeoPoint{}, forecastNow)
	require.NoError(t, err)
	assert.Greater(t, got.Probability, 0.0, "neutral weather still scores")
}

func TestForecaster_ModelFailureFallsBack(t *testing.T) {
	f := New(stubWeather{obs: domain.DefaultWeather}, failingModel{})

	got, err := f.Predict(context.Background(), nearbySignals(6, 0.5), domain.GeoPoint{Lat: 19.07, Lon: 72.87}, forecastNow)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", got.ModelSource)
}

func TestForecaster_RetrainLoop(t *testing.T) {
	f := New(stubWeather{obs: domain.DefaultWeather}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	fv := domain.FeatureVector{PressureHPa: 1013}
	outcomes := make([]Outcome, 8)
	for i := range outcomes {
		outcomes[i] = Outcome{Features: fv, Escalated: true}
	}
	require.True(t, f.SubmitOutcomes(outcomes))
	assert.True(t, f.SubmitOutcomes(nil), "empty batch is a no-op")

	assert.Eventually(t, func() bool {
		p, err := f.fallback.Predict(context.Background(), fv)
		return err == nil && p.Probability > 0.06
	}, time.Second, 10*time.Millisecond, "calibration shifts after retrain")

	cancel()
	<-done
}

func TestForecaster_ObserveOutcome(t *testing.T) {
	f := New(stubWeather{obs: domain.DefaultWeather}, nil)
	loc := domain.GeoPoint{Lat: 19.07, Lon: 72.87}

	assert.True(t, f.ObserveOutcome(context.Background(), nearbySignals(4, 0.8), loc, true, forecastNow))

	// Nobody drains the queue here; it fills after retrainQueueSize batches.
	for i := 0; i < retrainQueueSize-1; i++ {
		f.ObserveOutcome(context.Background(), nil, loc, false, forecastNow)
	}
	assert.False(t, f.ObserveOutcome(context.Background(), nil, loc, true, forecastNow),
		"full queue drops instead of blocking")
}
