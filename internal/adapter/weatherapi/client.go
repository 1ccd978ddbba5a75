// Package weatherapi implements destination weather lookups against the
// Open-Meteo geocoding and forecast APIs.
package weatherapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stylist-orchestrator/internal/domain"
)

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

// weatherConditions maps Open-Meteo WMO weather codes to human-readable
// conditions.
var weatherConditions = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "foggy",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	71: "slight snow",
	73: "moderate snow",
	75: "heavy snow",
	80: "rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	95: "thunderstorm",
}

// Client implements domain.WeatherClient against Open-Meteo.
type Client struct {
	GeocodeURL  string
	ForecastURL string
	Client      *http.Client
	logger      *slog.Logger
}

// NewClient constructs a weather Client. If client is nil, a default
// http.Client is created with the given timeout.
func NewClient(geocodeURL, forecastURL string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *Client {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &Client{
		GeocodeURL:  strings.TrimRight(geocodeURL, "/"),
		ForecastURL: strings.TrimRight(forecastURL, "/"),
		Client:      c,
		logger:      logger,
	}
}

// Lookup geocodes the location, fetches the current forecast, and derives a
// packing hint from the temperature.
func (c *Client) Lookup(ctx context.Context, location string) (*domain.WeatherReport, error) {
	start := time.Now()

	lat, lon, name, err := c.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	forecastURL := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&current_weather=true", c.ForecastURL, lat, lon)
	var forecast forecastResponse
	if err := c.getJSON(ctx, forecastURL, &forecast); err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}

	temp := forecast.CurrentWeather.Temperature
	condition, ok := weatherConditions[forecast.CurrentWeather.WeatherCode]
	if !ok {
		condition = "unknown"
	}

	report := &domain.WeatherReport{
		Location:    name,
		Temperature: fmt.Sprintf("%.0f°C", temp),
		Condition:   condition,
		Summary:     summarize(name, temp, condition),
	}

	c.logger.Info("weather_lookup_completed",
		slog.String("location", name),
		slog.Float64("temperature", temp),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return report, nil
}

func (c *Client) geocode(ctx context.Context, location string) (lat, lon float64, name string, err error) {
	geocodeURL := fmt.Sprintf("%s?name=%s&count=1", c.GeocodeURL, url.QueryEscape(location))
	var geo geocodeResponse
	if err := c.getJSON(ctx, geocodeURL, &geo); err != nil {
		return 0, 0, "", fmt.Errorf("failed to geocode location: %w", err)
	}
	if len(geo.Results) == 0 {
		return 0, 0, "", fmt.Errorf("no geocode results for %q", location)
	}
	r := geo.Results[0]
	return r.Latitude, r.Longitude, r.Name, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call weather api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather api returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode weather response: %w", err)
	}
	return nil
}

// summarize turns the raw reading into a packing hint for outfit planning.
func summarize(location string, temp float64, condition string) string {
	base := fmt.Sprintf("%s: %.0f°C, %s.", location, temp, condition)
	switch {
	case temp > 30:
		return base + " Hot weather, prefer breathable cotton and linen."
	case temp < 15:
		return base + " Cool weather, plan for layering."
	default:
		return base + " Pleasant weather, most fabrics work well."
	}
}

var _ domain.WeatherClient = (*Client)(nil)
