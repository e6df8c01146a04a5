package domain

import "time"

// WeatherObservation holds the marine weather features used by the
// escalation predictor.
type WeatherObservation struct {
	WaveHeightM  float64 `json:"wave_height_m"`
	WindSpeedKmh float64 `json:"wind_speed_kmh"`
	PressureHPa  float64 `json:"pressure_hpa"`
}

// DefaultWeather is the neutral observation substituted when the provider is
// unavailable: calm seas at standard pressure. Degraded forecasts stay
// bounded instead of propagating missing data.
var DefaultWeather = WeatherObservation{
	WaveHeightM:  0.5,
	WindSpeedKmh: 10,
	PressureHPa:  1013,
}

// FeatureVector is the fixed-order predictor input. Field order mirrors the
// trained model's expected columns, so changes here require a retrain.
type FeatureVector struct {
	ReportFreqPerHour  float64 `json:"report_freq_per_hour"`
	ReportDensityPerKm float64 `json:"report_density_per_km2"`
	MeanUrgency        float64 `json:"mean_urgency"`
	WaveHeightM        float64 `json:"wave_height_m"`
	WindSpeedKmh       float64 `json:"wind_speed_kmh"`
	PressureHPa        float64 `json:"pressure_hpa"`
	HistoricalFreq     float64 `json:"historical_freq"`
	HourOfDay          int     `json:"hour_of_day"`
	DayOfWeek          int     `json:"day_of_week"`
}

// HorizonForecast is the escalation projection at one future offset.
type HorizonForecast struct {
	Horizon     time.Duration `json:"horizon"`
	Probability float64       `json:"probability"`
	Level       RiskLevel     `json:"level"`
}

// EscalationForecast is the transient, per-request escalation estimate for a
// location or zone.
type EscalationForecast struct {
	Location         GeoPoint          `json:"location"`
	ZoneID           string            `json:"zone_id,omitempty"`
	Probability      float64           `json:"probability"` // 0–1
	Level            RiskLevel         `json:"level"`
	Confidence       float64           `json:"confidence"`
	AffectedRadiusKm float64           `json:"affected_radius_km"`
	AffectedZone     []GeoPoint        `json:"affected_zone,omitempty"`
	Horizons         []HorizonForecast `json:"horizons"`
	Recommendations  []string          `json:"recommendations,omitempty"`
	ModelSource      string            `json:"model_source"` // "trained" or "heuristic"
	GeneratedAt      time.Time         `json:"generated_at"`
}
