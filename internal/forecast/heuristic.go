package forecast

import (
	"context"
	"math"
	"sync"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// Escalation score weights over the feature vector. They sum to 1 so a
// worst-case sea state saturates at probability 1.0 before calibration.
const (
	freqWeight     = 0.3
	densityWeight  = 0.2
	urgencyWeight  = 0.2
	waveWeight     = 0.15
	windWeight     = 0.1
	pressureWeight = 0.05
)

const (
	// zoneSizeFactor converts an escalation score into a projected affected
	// area in square kilometers.
	zoneSizeFactor = 50.0
	minZoneKm2     = 1.0

	// calibrationLimit bounds how far online outcomes may shift the raw
	// score in either direction.
	calibrationLimit = 0.2
)

// Heuristic is the weighted-feature escalation model. It needs no external
// service and is the fallback whenever a trained model is unavailable. The
// calibration offset is adjusted from verified outcomes; all other state is
// immutable, so Predict is safe for concurrent use.
type Heuristic struct {
	mu          sync.RWMutex
	calibration float64
}

var _ Predictor = (*Heuristic)(nil)

// NewHeuristic returns an uncalibrated heuristic model.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Source identifies heuristic predictions in forecast output.
func (h *Heuristic) Source() string { return "heuristic" }

// Predict scores the feature vector. Each feature saturates at a fixed
// ceiling: 10 reports/hour, 5 reports/km², 5 m waves, 20 km/h wind. The
// pressure term peaks at standard sea-level pressure and falls off with
// deviation in either direction.
func (h *Heuristic) Predict(_ context.Context, fv domain.FeatureVector) (Prediction, error) {
	score := freqWeight*math.Min(fv.ReportFreqPerHour/10, 1) +
		densityWeight*math.Min(fv.ReportDensityPerKm/5, 1) +
		urgencyWeight*domain.Clamp01(fv.MeanUrgency) +
		waveWeight*math.Min(fv.WaveHeightM/5, 1) +
		windWeight*math.Min(fv.WindSpeedKmh/20, 1) +
		pressureWeight*(1-math.Abs(fv.PressureHPa-1013)/50)

	h.mu.RLock()
	score += h.calibration
	h.mu.RUnlock()

	prob := domain.Clamp01(score)
	return Prediction{
		Probability: prob,
		ZoneKm2:     math.Max(minZoneKm2, prob*zoneSizeFactor),
	}, nil
}

// Train shifts the calibration offset toward the observed escalation rate.
// Callers must serialize Train invocations; the Forecaster's retrain loop
// does this by construction.
func (h *Heuristic) Train(outcomes []Outcome) {
	if len(outcomes) == 0 {
		return
	}

	var predicted, observed float64
	for _, o := range outcomes {
		p, _ := h.Predict(context.Background(), o.Features)
		predicted += p.Probability
		if o.Escalated {
			observed++
		}
	}
	n := float64(len(outcomes))
	drift := observed/n - predicted/n

	h.mu.Lock()
	h.calibration = clampAbs(h.calibration+drift*0.5, calibrationLimit)
	h.mu.Unlock()
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
