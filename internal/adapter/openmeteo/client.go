// Package openmeteo implements domain.WeatherProvider against the Open-Meteo
// marine and forecast APIs. No API key is required; production deployments
// wrap the client in the TTL cache from this package so clustering and
// forecasting never hammer the upstream.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// Client fetches current marine conditions. Wave height comes from the
// marine API, wind and pressure from the forecast API.
type Client struct {
	httpClient  *http.Client
	marineURL   string
	forecastURL string
	logger      *slog.Logger
}

var _ domain.WeatherProvider = (*Client)(nil)

// NewClient creates an Open-Meteo client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		marineURL:   "https://marine-api.open-meteo.com/v1/marine",
		forecastURL: "https://api.open-meteo.com/v1/forecast",
		logger:      logger,
	}
}

// Get returns the current observation for a coordinate. A marine API failure
// is tolerated with the default wave height, since inland coordinates have
// no marine coverage; a forecast API failure fails the lookup.
func (c *Client) Get(ctx context.Context, lat, lon float64) (domain.WeatherObservation, error) {
	obs := domain.WeatherObservation{WaveHeightM: domain.DefaultWeather.WaveHeightM}

	var marine marineResponse
	if err := c.fetch(ctx, c.marineURL, lat, lon, "wave_height", &marine); err != nil {
		c.logger.Debug("marine lookup failed, using default wave height",
			"lat", lat, "lon", lon, "error", err)
	} else {
		obs.WaveHeightM = marine.Current.WaveHeight
	}

	var forecast forecastResponse
	if err := c.fetch(ctx, c.forecastURL, lat, lon, "wind_speed_10m,surface_pressure", &forecast); err != nil {
		return domain.WeatherObservation{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	obs.WindSpeedKmh = forecast.Current.WindSpeed
	obs.PressureHPa = forecast.Current.SurfacePressure
	return obs, nil
}

func (c *Client) fetch(ctx context.Context, base string, lat, lon float64, fields string, out any) error {
	params := url.Values{
		"latitude":  {fmt.Sprintf("%.4f", lat)},
		"longitude": {fmt.Sprintf("%.4f", lon)},
		"current":   {fields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Open-Meteo API response types.

type marineResponse struct {
	Current struct {
		WaveHeight float64 `json:"wave_height"`
	} `json:"current"`
}

type forecastResponse struct {
	Current struct {
		WindSpeed       float64 `json:"wind_speed_10m"`
		SurfacePressure float64 `json:"surface_pressure"`
	} `json:"current"`
}
